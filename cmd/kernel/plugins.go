package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kba-plugin/internal/config"
	"kba-plugin/internal/kernel"
	"kba-plugin/internal/storage"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Inspect and manage plugins",
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List compiled-in plugins with their install state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lifecycle, closeFn, err := openLifecycle()
		if err != nil {
			return err
		}
		defer closeFn()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVERSION\tINSTALLED\tACTIVE\tMIGRATIONS")
		for _, p := range catalog {
			installed, active := false, false
			state, err := lifecycle.State(ctx, p.Name())
			switch {
			case err == nil:
				installed, active = state.Installed(), state.Active
			case !errors.Is(err, storage.ErrPluginNotFound):
				return err
			}
			statuses, err := lifecycle.MigrationStatus(ctx, p)
			if err != nil {
				return err
			}
			done := 0
			for _, s := range statuses {
				if s.Updated {
					done++
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%d/%d\n", p.Name(), p.Version(), installed, active, done, len(statuses))
		}
		return w.Flush()
	},
}

var pluginDeactivateCmd = &cobra.Command{
	Use:   "deactivate <name>",
	Short: "Deactivate a plugin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lifecycle, closeFn, err := openLifecycle()
		if err != nil {
			return err
		}
		defer closeFn()
		return lifecycle.Deactivate(cmd.Context(), args[0])
	},
}

var pluginUninstallCmd = &cobra.Command{
	Use:   "uninstall <name>",
	Short: "Uninstall a plugin, keeping its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lifecycle, closeFn, err := openLifecycle()
		if err != nil {
			return err
		}
		defer closeFn()
		return lifecycle.Uninstall(cmd.Context(), args[0])
	},
}

func init() {
	pluginCmd.AddCommand(pluginListCmd)
	pluginCmd.AddCommand(pluginDeactivateCmd)
	pluginCmd.AddCommand(pluginUninstallCmd)
}

func openLifecycle() (*kernel.PluginLifecycle, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	st, err := storage.NewStorage(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	k := kernel.New(kernel.Options{Environment: cfg.Kernel.Environment, DB: st.DB})
	lifecycle, err := k.Lifecycle()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return lifecycle, func() { st.Close() }, nil
}
