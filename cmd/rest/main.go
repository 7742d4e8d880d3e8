package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"research-agent-be/internal/bootstrap"
	"research-agent-be/internal/config"
	"research-agent-be/internal/server"
	"research-agent-be/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Tracing)
	defer shutdownTracer(context.Background())

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to bootstrap: %v", err)
	}
	defer container.Close()

	// 4. Start Background Services
	if err := container.EventRelayService.Consume(ctx); err != nil {
		log.Printf("Background Event Relay Error: %v", err)
	}

	if cfg.App.DocsFolder != "" {
		go func() {
			res, err := container.DocumentService.Preload(ctx, cfg.App.DocsFolder)
			if err != nil {
				container.Logger.Warn("Main", "Document preload failed", map[string]interface{}{
					"folder": cfg.App.DocsFolder,
					"error":  err.Error(),
				})
				return
			}
			container.Logger.Info("Main", "Document preload finished", map[string]interface{}{
				"folder": res.Folder,
				"files":  len(res.Files),
				"chunks": res.Chunks,
			})
		}()
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
