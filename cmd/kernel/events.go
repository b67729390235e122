package main

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kba-plugin/internal/config"
	"kba-plugin/internal/consumer"
	"kba-plugin/internal/dal"
	"kba-plugin/internal/messaging"
)

var prefetch int

var eventsCmd = &cobra.Command{
	Use:   "events <entity>",
	Short: "Tail entity-written events of one entity from RabbitMQ",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cfg.RabbitMQ.URL == "" {
			return fmt.Errorf("rabbitmq.url is not configured")
		}

		rabbitClient, err := messaging.NewRabbitClient(cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		defer rabbitClient.Close()

		entity := args[0]
		if err := rabbitClient.DeclareQueue(entity); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		c := consumer.New(entity, func(event *dal.EntityWrittenEvent) error {
			_, err := fmt.Fprintf(out, "%s %s %s %v\n", event.WrittenAt.Format("2006-01-02T15:04:05.000Z07:00"), event.EntityName, event.Operation, event.IDs)
			return err
		}, consumer.WithPrefetch(prefetch))
		if err := c.Start(ctx, rabbitClient.GetConnection()); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
		case <-c.Done():
		}
		if err := c.Stop(); err != nil {
			log.Printf("Failed to close consumer channel: %v", err)
		}
		log.Println("Event consumer stopped")
		return nil
	},
}

func init() {
	eventsCmd.Flags().IntVar(&prefetch, "prefetch", consumer.DefaultPrefetch, "unacknowledged deliveries held at once")
}
