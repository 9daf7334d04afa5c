// Package config handles configuration loading for atelier.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  token: "${ATELIER_TOKEN}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	backend:
//	  stop_timeout: "10s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Backend settings:
//
//	backend:
//	  endpoint: "http://localhost:8000/chat"
//	  stop_endpoint: "http://localhost:8000/stop"
//	  model: "default"
//	  max_chained_turns: 8   # 0 = unbounded
//
// Authentication (first non-empty source wins):
//
//	auth:
//	  token: "${ATELIER_TOKEN}"
//	  token_file: "~/.config/atelier/token"
//
// Conversation persistence:
//
//	database:
//	  path: "./atelier.db"
//
// Local tool listener:
//
//	tool_server:
//	  enabled: false
//	  addr: "127.0.0.1:8001"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path, falling back to defaults when no
// file is used:
//
//	cfg, err := config.Load("atelier.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
