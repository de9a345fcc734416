// Package cmd provides the spurbot CLI commands.
//
// Commands:
//   - serve: HTTP API server for the support chat
//   - migrate: apply pending database migrations
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Execute is the main entry point for the spurbot CLI.
func Execute() error {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "migrate":
		return runMigrate()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("spurbot - Spur's customer support chat service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  spurbot serve [addr]  Start the HTTP API server (default: 127.0.0.1:3500)")
	fmt.Println("  spurbot migrate       Apply pending database migrations")
	fmt.Println("  spurbot --version     Show version information")
	fmt.Println("  spurbot --help        Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY   Required for serve: Gemini API key")
	fmt.Println("  DATABASE_URL     Optional: postgres:// connection URL")
	fmt.Println("  REDIS_URL        Optional: redis:// connection URL")
	fmt.Println("  DEBUG            Optional: enable debug logging")
}
