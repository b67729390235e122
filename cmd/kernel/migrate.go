package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"kba-plugin/internal/config"
	"kba-plugin/internal/kernel"
	"kba-plugin/internal/plugin"
	"kba-plugin/internal/storage"
)

var destructive bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Install and activate the plugins listed in plugins.active",
	Long: `Install and activate the plugins listed in plugins.active, running their
pending migrations. With --destructive the destructive hooks run as well.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		st, err := storage.NewStorage(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer st.Close()

		var plugins []plugin.Plugin
		for _, name := range cfg.Plugins.Active {
			p, err := findPlugin(name)
			if err != nil {
				return err
			}
			plugins = append(plugins, p)
		}

		k := kernel.New(kernel.Options{
			Environment: cfg.Kernel.Environment,
			Loader:      kernel.NewStaticPluginLoader(plugins...),
			DB:          st.DB,
		})
		if err := k.Boot(ctx); err != nil {
			return err
		}
		lifecycle, err := k.Lifecycle()
		if err != nil {
			return err
		}

		for _, p := range plugins {
			if destructive {
				err = lifecycle.Update(ctx, p)
			} else {
				err = lifecycle.Install(ctx, p)
			}
			if err != nil {
				return err
			}
			if err := lifecycle.Activate(ctx, p.Name()); err != nil {
				return err
			}
		}
		log.Printf("Migrated %d plugin(s)", len(plugins))
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&destructive, "destructive", false, "also run destructive migrations")
}
