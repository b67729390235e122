package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kba-plugin/internal/api"
	"kba-plugin/internal/config"
	"kba-plugin/internal/dal"
	"kba-plugin/internal/messaging"
	"kba-plugin/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Boot the kernel and serve the admin API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	// Init Metrics
	metrics.Init()

	// Init RabbitMQ when configured; events are dropped otherwise
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	var publisher dal.EventPublisher = dal.NoopPublisher{}
	var rabbitClient *messaging.RabbitClient
	if cfg.RabbitMQ.URL != "" {
		rabbitClient, err = messaging.NewRabbitClient(cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		defer rabbitClient.Close()
		publisher = rabbitClient
		log.Println("RabbitMQ connected")
	}

	cfg, st, k, err := bootstrap(parent, publisher)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start background loop for updating event queue depth metrics
	if rabbitClient != nil {
		go func() {
			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					for _, def := range k.Definitions().Definitions() {
						rabbitClient.UpdateQueueDepth(def.EntityName())
					}
				}
			}
		}()
	}

	// Init API
	apiHandler := api.NewAPI(k, cfg)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           apiHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 Starting admin API on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done() // Wait for interrupt signal
	log.Println("Shutdown initiated...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	log.Println("Graceful shutdown complete")
	return nil
}
