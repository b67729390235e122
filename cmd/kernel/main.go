package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"kba-plugin/internal/config"
	"kba-plugin/internal/dal"
	"kba-plugin/internal/kernel"
	"kba-plugin/internal/plugin"
	"kba-plugin/internal/storage"
	"kba-plugin/internal/testplugin"
)

// @title Kernel Admin API
// @version 1.0
// @description Admin API exposing the entities registered by kernel plugins
// @host localhost:8080
// @BasePath /
// @schemes http

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

// catalog lists every plugin compiled into the binary.
var catalog = []plugin.Plugin{
	testplugin.New(),
}

var configPath string

var rootCmd = &cobra.Command{
	Use:           "kernel",
	Short:         "Run the plugin kernel and manage its plugins",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(pluginCmd)
	rootCmd.AddCommand(eventsCmd)
}

func findPlugin(name string) (plugin.Plugin, error) {
	for _, p := range catalog {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", kernel.ErrUnknownPlugin, name)
}

// bootstrap loads the config, opens storage and boots a kernel with the
// plugins marked active in the database.
func bootstrap(ctx context.Context, publisher dal.EventPublisher) (*config.Config, *storage.Storage, *kernel.Kernel, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Println("Configuration loaded")

	st, err := storage.NewStorage(cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Println("PostgreSQL connected")

	k := kernel.New(kernel.Options{
		Environment: cfg.Kernel.Environment,
		Debug:       cfg.Kernel.Debug,
		Version:     cfg.Kernel.Version,
		ProjectDir:  cfg.Kernel.ProjectDir,
		Loader:      kernel.NewStoragePluginLoader(st, catalog...),
		DB:          st.DB,
		Publisher:   publisher,
	})
	if err := k.Boot(ctx); err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	return cfg, st, k, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
