package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"duelnet/internal/config"
	"duelnet/internal/observability"
	"duelnet/internal/server"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("no .env file found, using environment variables only")
		}
	} else {
		log.Println("loaded environment from ../.env")
	}

	log.Println("================================")
	log.Println(" DUELNET AUTHORITATIVE SERVER")
	log.Println("================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("simulation: tick=%dHz snapshot=%dHz speed=%.1f",
		cfg.Simulation.TickRate, cfg.Simulation.SnapshotRate, cfg.Simulation.PlayerSpeed)
	log.Printf("network: interpolation_delay=%dms jitter_buffer=%dms input_rate=%dHz reconcile_threshold=%.1f",
		cfg.Network.InterpolationDelayMs, cfg.Network.JitterBufferMs, cfg.Network.InputSendRate, cfg.Network.ReconcileThreshold)
	log.Printf("spatial: chunk_size=%.0f interest_radius=%d max_entities_per_snapshot=%d",
		cfg.Spatial.ChunkSize, cfg.Spatial.InterestRadius, cfg.Spatial.MaxEntitiesPerSnapshot)

	debugCfg := observability.DefaultConfig()
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := observability.StartDebugServer(debugCfg); err != nil {
			log.Printf("debug server disabled: %v", err)
		} else {
			log.Printf("debug server listening on %s (pprof + /metrics + /health)", debugCfg.ListenAddr)
		}
	}

	s := server.New(cfg)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Printf("listening on %s (max players: %d)", addr, cfg.Server.MaxPlayers)
		if err := s.Start(addr); err != nil {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("server ready, press Ctrl+C to stop")
	<-quit

	log.Println("shutting down...")
	s.Stop()
	log.Println("goodbye")
}
