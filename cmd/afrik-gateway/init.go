// ABOUTME: Interactive first-run setup writing config.yaml and a .env with fresh credentials
// ABOUTME: Secrets stay in .env; the config file references them through ${VAR} expansion

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

type initOptions struct {
	HTTPAddr   string
	BackendURL string
	SessionDir string
	DBPath     string
	LogLevel   string
	LogFormat  string
}

func runInit(args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	return initConfig(bufio.NewReader(os.Stdin), os.Stdout, dir)
}

func initConfig(in *bufio.Reader, out io.Writer, dir string) error {
	fmt.Fprintln(out, "afrik-gateway configuration setup")
	fmt.Fprintln(out, "=================================")
	fmt.Fprintln(out)

	configPath := filepath.Join(dir, "config.yaml")
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(configPath); err == nil {
		overwrite := prompt(in, out, "config.yaml exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	opts := initOptions{
		HTTPAddr:   prompt(in, out, "Management API address", ":3001"),
		BackendURL: prompt(in, out, "Backend base URL", "https://api.afrikmoney.com/api"),
		SessionDir: prompt(in, out, "WhatsApp session directory", "./sessions"),
		DBPath:     prompt(in, out, "SQLite database path", "./afrik-gateway.db"),
		LogLevel:   prompt(in, out, "Log level (debug/info/warn/error)", "info"),
		LogFormat:  prompt(in, out, "Log format (text/json)", "text"),
	}

	apiKey, err := randomHex(16)
	if err != nil {
		return fmt.Errorf("generating API key: %w", err)
	}
	jwtSecret, err := randomHex(32)
	if err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(renderConfig(opts)), 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	env := map[string]string{
		"AFRIK_API_KEY":    apiKey,
		"AFRIK_JWT_SECRET": jwtSecret,
	}
	if err := godotenv.Write(env, envPath); err != nil {
		return fmt.Errorf("writing %s: %w", envPath, err)
	}
	if err := os.Chmod(envPath, 0o600); err != nil {
		return fmt.Errorf("restricting %s: %w", envPath, err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", configPath)
	fmt.Fprintf(out, "Credentials written to %s\n", envPath)
	fmt.Fprintf(out, "API key: %s\n", apiKey)
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  afrik-gateway serve")
	return nil
}

func renderConfig(o initOptions) string {
	var b strings.Builder
	b.WriteString("# afrik-gateway configuration\n")
	b.WriteString("# Generated by afrik-gateway init. Secrets live in .env.\n\n")

	fmt.Fprintf(&b, "server:\n  http_addr: %q\n\n", o.HTTPAddr)
	fmt.Fprintf(&b, "backend:\n  base_url: %q\n  max_retries: 3\n  timeout: \"30s\"\n\n", o.BackendURL)
	fmt.Fprintf(&b, "sessions:\n  dir: %q\n  max_sessions: 20\n  reconnect_base: \"1s\"\n  reconnect_max: \"1m\"\n\n", o.SessionDir)
	b.WriteString("dialogue:\n  poll_interval: \"3s\"\n  poll_max_attempts: 20\n  idle_expiry: \"24h\"\n\n")
	b.WriteString("auth:\n  api_key: \"${AFRIK_API_KEY}\"\n  jwt_secret: \"${AFRIK_JWT_SECRET}\"\n\n")
	b.WriteString("rate_limit:\n  global_requests: 100\n  global_window: \"15m\"\n  instance_requests: 10\n  instance_window: \"1m\"\n\n")
	fmt.Fprintf(&b, "database:\n  path: %q\n\n", o.DBPath)
	fmt.Fprintf(&b, "logging:\n  level: %q\n  format: %q\n", o.LogLevel, o.LogFormat)
	return b.String()
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(in *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := in.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}
