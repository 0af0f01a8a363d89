package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/origuard-ai/origuard/internal/config"
	"github.com/origuard-ai/origuard/internal/server"
	"github.com/origuard-ai/origuard/internal/telemetry"
)

func main() {
	addrFlag := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "origuard.yaml", "Path to OriGuard config file")
	flag.Parse()

	// Local .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded environment from .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	addr := cfg.Server.Addr
	if *addrFlag != "" {
		addr = *addrFlag
	}

	ctx := context.Background()

	tel, err := telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("failed to init telemetry: %v", err)
	}
	defer tel.Shutdown(ctx)

	srv, err := server.New(cfg, tel)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}
	defer srv.Close(ctx)

	log.Printf("Starting OriGuard on %s...", addr)
	if err := srv.Start(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
