// Package config handles configuration loading for afrik-gateway.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from the AFRIK_CONFIG environment variable
//  2. ./config.yaml
//  3. ./config.toml
//
// Files ending in .toml are parsed as TOML, everything else as YAML. Both
// formats use the same keys.
//
// # Environment
//
// A .env file beside the config file, then one in the working directory,
// is loaded before parsing. Variables already set in the process win.
// Values can reference environment variables:
//
//	auth:
//	  api_key: "${AFRIK_API_KEY}"
//	backend:
//	  base_url: "${AFRIK_BACKEND_URL:-https://api.afrikmoney.com/api}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	dialogue:
//	  poll_interval: "3s"
//	  idle_expiry: "24h"
//
// # Example
//
//	server:
//	  http_addr: ":3001"
//
//	backend:
//	  base_url: "https://api.afrikmoney.com/api"
//	  max_retries: 3
//
//	sessions:
//	  dir: "./sessions"
//	  max_sessions: 20
//	  reconnect_base: "1s"
//	  reconnect_max: "1m"
//
//	dialogue:
//	  poll_interval: "3s"
//	  poll_max_attempts: 20
//
//	auth:
//	  api_key: "${AFRIK_API_KEY}"
//	  jwt_secret: "${AFRIK_JWT_SECRET}"
//
//	rate_limit:
//	  global_requests: 100
//	  global_window: "15m"
//	  instance_requests: 10
//	  instance_window: "1m"
//
//	database:
//	  path: "./afrik-gateway.db"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text or json
//
// Unset values take the defaults shown above. Validation requires at least
// one of auth.api_key and auth.jwt_secret.
package config
