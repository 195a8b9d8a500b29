// ABOUTME: Entry point for the aplmint Telegram assistant bot
// ABOUTME: Provides serve, init, and health subcommands

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/heliomancer/aplmint/internal/bot"
	"github.com/heliomancer/aplmint/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
             _           _       _
  __ _ _ __ | |_ __ ___ (_)_ __ | |_
 / _' | '_ \| | '_ ' _ \| | '_ \| __|
| (_| | |_) | | | | | | | | | | | |_
 \__,_| .__/|_|_| |_| |_|_|_| |_|\__|
      |_|
`

// getConfigPath returns the path to the aplmint config file.
// Priority: APLMINT_CONFIG env var > XDG_CONFIG_HOME/aplmint/aplmint.yaml > ~/.config/aplmint/aplmint.yaml
func getConfigPath() string {
	if envPath := os.Getenv("APLMINT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "aplmint.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "aplmint", "aplmint.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: aplmint <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the bot")
		fmt.Println("  init      Write a starter config file")
		fmt.Println("  health    Check a running bot's health endpoint")
		os.Exit(1)
	}

	// Secrets may live in a local .env during development.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Models:   %d (default %s)\n", len(cfg.Models), cfg.Models[0].Name)
	fmt.Println()

	logger.Info("starting aplmint",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"daily_limit", cfg.Quota.DailyLimit,
	)

	// Create and run the bot
	b, err := bot.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating bot: %w", err)
	}

	return b.Run(ctx)
}

// runInit writes a starter config file at the default location.
func runInit() error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	starter := `telegram:
  token: "${TELEGRAM_BOT_TOKEN}"

openrouter:
  api_key: "${OPENROUTER_API_KEY}"
  referer: "https://github.com/heliomancer/aplmint"
  title: "APLMinT Bot"
  timeout: "30s"

quota:
  daily_limit: 10

database:
  path: "aplmint.db"

server:
  http_addr: "127.0.0.1:8081"

logging:
  level: "info"
  format: "text"

metrics:
  enabled: true
  path: "/metrics"
`

	if err := os.WriteFile(path, []byte(starter), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Wrote starter config to %s\n", path)
	fmt.Println("Set TELEGRAM_BOT_TOKEN and OPENROUTER_API_KEY, then run: aplmint serve")
	return nil
}

// runHealth queries the health endpoint of a running bot.
func runHealth(ctx context.Context) error {
	addr := os.Getenv("APLMINT_HTTP_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8081"
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("bot is not reachable at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var health struct {
		Status   string `json:"status"`
		InFlight int    `json:"in_flight"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("parsing health response: %w", err)
	}

	fmt.Printf("status: %s, in-flight requests: %d\n", health.Status, health.InFlight)
	return nil
}

// setupLogger builds the process logger from config.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
