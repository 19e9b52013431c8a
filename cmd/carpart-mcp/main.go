package main

import (
	"fmt"
	"os"

	"github.com/ironsheep/carpart-tools/internal/config"
	"github.com/ironsheep/carpart-tools/internal/logging"
	"github.com/ironsheep/carpart-tools/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// envConfig names the environment variable holding the config file path.
const envConfig = "CARPART_CONFIG"

func main() {
	configPath := os.Getenv(envConfig)

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version", "-v", "version":
			fmt.Printf("carpart-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		case "--config", "-c":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a file path")
				os.Exit(2)
			}
			i++
			configPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown option %q (see --help)\n", args[i])
			os.Exit(2)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "carpart-mcp: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol, so logs go to stderr
	logger, err := logging.New("carpart-mcp", cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "carpart-mcp: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Debugw("starting", "version", Version, "built", BuildTime, "commit", GitCommit, "config", configPath)

	srv := server.NewWithConfig(cfg, logger, Version)
	if err := srv.Run(); err != nil {
		logger.Fatalw("server error", "error", err)
	}
}

func printHelp() {
	fmt.Println("carpart-mcp - MCP server for car photo framing analysis")
	fmt.Println()
	fmt.Println("Usage: carpart-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config, -c FILE  Read configuration from FILE (YAML)")
	fmt.Println("  --version, -v      Print version information")
	fmt.Println("  --help, -h         Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  CARPART_CONFIG=FILE          Configuration file (overridden by --config)")
	fmt.Println("  CARPART_LOG_LEVEL=debug      Override the configured log level")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}
