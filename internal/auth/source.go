// ABOUTME: Bearer token resolution from config, token file, or environment
// ABOUTME: First non-empty source wins; results are re-read per request

package auth

import (
	"os"
	"path/filepath"
	"strings"
)

// EnvToken is the environment variable consulted when no configured
// token or token file yields one.
const EnvToken = "ATELIER_TOKEN"

// Source resolves the bearer token for backend requests. The zero
// value falls back to the default token file and the environment.
type Source struct {
	// Token, when set, is used verbatim.
	Token string

	// TokenFile is read on each resolution so a refreshed token is
	// picked up without restarting.
	TokenFile string
}

// NewSource builds a Source from configured values.
func NewSource(token, tokenFile string) *Source {
	return &Source{Token: token, TokenFile: tokenFile}
}

// Get returns the current token, or empty when no source yields one.
func (s *Source) Get() string {
	if s.Token != "" {
		return s.Token
	}

	path := s.TokenFile
	if path == "" {
		path = defaultTokenPath()
	}
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if tok := strings.TrimSpace(string(data)); tok != "" {
				return tok
			}
		}
	}

	return os.Getenv(EnvToken)
}

// defaultTokenPath returns ~/.config/atelier/token, or empty when the
// config dir cannot be determined.
func defaultTokenPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "atelier", "token")
}
