// ABOUTME: Interactive terminal client for the chat backend.
// ABOUTME: Wires config, auth, storage, tools, and the conversation engine.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/lanternworks/atelier/internal/auth"
	"github.com/lanternworks/atelier/internal/builtins"
	"github.com/lanternworks/atelier/internal/chat"
	"github.com/lanternworks/atelier/internal/config"
	"github.com/lanternworks/atelier/internal/engine"
	"github.com/lanternworks/atelier/internal/store"
	"github.com/lanternworks/atelier/internal/tools"
	"github.com/lanternworks/atelier/internal/toolserver"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the client config file.
// Priority: ATELIER_CONFIG env var > XDG_CONFIG_HOME/atelier/config.yaml > ~/.config/atelier/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ATELIER_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "atelier", "config.yaml")
}

func main() {
	configPath := flag.String("config", "", "Config file path (default: ATELIER_CONFIG or ~/.config/atelier/config.yaml)")
	endpoint := flag.String("endpoint", "", "Override the backend chat endpoint")
	model := flag.String("model", "", "Override the model name")
	project := flag.String("project", ".", "Project root for the file tools")
	scenePath := flag.String("scene", "", "Scene document to edit (JSON)")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("atelier %s\n", version)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *endpoint, *model, *project, *scenePath, *noColor); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, endpoint, model, project, scenePath string, noColor bool) error {
	if configPath == "" {
		configPath = getConfigPath()
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	settings := loadSettings(settingsPath())
	if noColor || settings.NoColor {
		color.NoColor = true
	}
	if endpoint != "" {
		cfg.Backend.Endpoint = endpoint
	}
	if model != "" {
		cfg.Backend.Model = model
	} else if settings.Model != "" {
		cfg.Backend.Model = settings.Model
	}

	logger := setupLogger(cfg.Logging)

	tokenSource := auth.NewSource(cfg.Auth.Token, cfg.Auth.TokenFile)
	if token := tokenSource.Get(); token != "" {
		if warning, checkErr := auth.Check(token); checkErr != nil {
			fmt.Println(color.YellowString("Auth: %v", checkErr))
		} else if warning != "" {
			fmt.Println(color.YellowString("Auth: %s", warning))
		} else {
			fmt.Println("Auth: token configured")
		}
	} else {
		fmt.Printf("Auth: none (set %s for authentication)\n", auth.EnvToken)
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	saver := store.NewSaver(db, store.DefaultSaveDelay, logger)
	defer saver.Close()

	registry, err := buildRegistry(project, scenePath, logger)
	if err != nil {
		return err
	}

	if cfg.ToolServer.Enabled {
		srv := toolserver.NewServer(registry, logger)
		if err := srv.Start(cfg.ToolServer.Addr); err != nil {
			return fmt.Errorf("starting tool server: %w", err)
		}
		defer func() { _ = srv.Stop(context.Background()) }()
		fmt.Printf("Tool server listening on %s\n", srv.Addr())
	}

	log := chat.NewLog()
	broadcaster := chat.NewBroadcaster(logger)
	defer broadcaster.Close()

	eng := engine.NewEngine(engine.Config{
		Endpoint:        cfg.Backend.Endpoint,
		StopEndpoint:    cfg.Backend.StopEndpoint,
		Model:           cfg.Backend.Model,
		MaxChainedTurns: cfg.Backend.MaxChainedTurns,
		StopTimeout:     cfg.Backend.StopTimeout,
	}, log, registry, broadcaster, logger,
		engine.WithTokenSource(tokenSource.Get),
		engine.WithIdentityHeaders(identityHeaders(project)),
	)

	app := newApp(cfg, eng, log, db, saver, broadcaster, settings, logger)

	fmt.Printf("atelier %s connected to %s (model %s)\n", version, cfg.Backend.Endpoint, cfg.Backend.Model)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	if err := app.run(ctx); err != nil {
		return err
	}

	fmt.Println("\nGoodbye!")
	return nil
}

// loadConfig reads the config file, falling back to defaults when the
// file does not exist. A malformed file is still an error.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		if verr := cfg.Validate(); verr != nil {
			return nil, verr
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

// buildRegistry registers the builtin packs for the session.
func buildRegistry(project, scenePath string, logger *slog.Logger) (*tools.Registry, error) {
	registry := tools.NewRegistry(logger)

	root, err := filepath.Abs(project)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	if err := registry.RegisterPack(builtins.FilesPack(root)); err != nil {
		return nil, err
	}

	scene := builtins.NewScene("", nil)
	if scenePath != "" {
		data, readErr := os.ReadFile(scenePath)
		if readErr != nil {
			return nil, fmt.Errorf("reading scene: %w", readErr)
		}
		scene, err = builtins.LoadScene(data)
		if err != nil {
			return nil, fmt.Errorf("parsing scene: %w", err)
		}
	}
	if err := registry.RegisterPack(builtins.ScenePack(scene)); err != nil {
		return nil, err
	}

	return registry, nil
}

// identityHeaders carries user and project identity on every turn.
func identityHeaders(project string) map[string]string {
	headers := map[string]string{}
	if root, err := filepath.Abs(project); err == nil {
		headers["X-Project-Root"] = root
	}
	if host, err := os.Hostname(); err == nil {
		headers["X-Machine-ID"] = host
	}
	if user := os.Getenv("USER"); user != "" {
		headers["X-User-ID"] = user
	}
	return headers
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
// Logs go to stderr so they never interleave with the chat transcript.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(os.Stderr, buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
