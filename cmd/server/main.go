package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override environment
	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Server host")
	root := flag.String("root", cfg.Bundles.Root, "Bundle root directory")
	manifests := flag.String("manifest", strings.Join(cfg.Bundles.ManifestPaths, ","), "Comma separated manifest paths")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Bundles.Root = *root
	cfg.Bundles.ManifestPaths = strings.Split(*manifests, ",")
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := srv.Run(ctx)
	if err := srv.Close(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	if runErr != nil {
		log.Fatalf("Server error: %v", runErr)
	}
}
