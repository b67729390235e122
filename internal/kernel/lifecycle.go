// internal/kernel/lifecycle.go
package kernel

import (
	"context"
	"fmt"
	"log"
	"sync"

	"kba-plugin/internal/migration"
	"kba-plugin/internal/model"
	"kba-plugin/internal/plugin"
	"kba-plugin/internal/storage"
)

// PluginLifecycle installs, activates, updates and uninstalls plugins.
// Installing and updating run the plugin's migrations.
type PluginLifecycle struct {
	kernel  *Kernel
	storage *storage.Storage
	runner  *migration.Runner

	mu sync.Mutex
}

// Lifecycle returns the plugin lifecycle bound to the kernel's database.
func (k *Kernel) Lifecycle() (*PluginLifecycle, error) {
	if k.opts.DB == nil {
		return nil, ErrNoDatabase
	}
	return &PluginLifecycle{
		kernel:  k,
		storage: storage.NewWithDB(k.opts.DB),
		runner:  migration.NewRunner(k.opts.DB),
	}, nil
}

func (l *PluginLifecycle) source(p plugin.Plugin) (migration.Source, error) {
	if src, ok := l.kernel.MigrationSource(p.Name()); ok {
		return src, nil
	}
	registry, err := register(p)
	if err != nil {
		return migration.Source{}, err
	}
	return migration.NewSource(p.Name(), registry.Migrations()...), nil
}

// Install records the plugin, runs its pending migrations and marks it
// installed. Installing an installed plugin only runs what is pending.
func (l *PluginLifecycle) Install(ctx context.Context, p plugin.Plugin) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	src, err := l.source(p)
	if err != nil {
		return err
	}
	if _, err := l.storage.UpsertPlugin(ctx, p.Name(), p.Version()); err != nil {
		return err
	}
	n, err := l.runner.Migrate(ctx, src)
	if err != nil {
		return fmt.Errorf("install %s: %w", p.Name(), err)
	}
	if err := l.storage.MarkInstalled(ctx, p.Name(), true); err != nil {
		return err
	}

	log.Printf("[Kernel] Plugin %s %s installed (%d migration(s) executed)", p.Name(), p.Version(), n)
	return nil
}

// Update records the new version and runs pending and destructive migrations.
// A plugin that was never installed is marked installed afterwards.
func (l *PluginLifecycle) Update(ctx context.Context, p plugin.Plugin) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	src, err := l.source(p)
	if err != nil {
		return err
	}
	rec, err := l.storage.UpsertPlugin(ctx, p.Name(), p.Version())
	if err != nil {
		return err
	}
	if _, err := l.runner.Migrate(ctx, src); err != nil {
		return fmt.Errorf("update %s: %w", p.Name(), err)
	}
	if _, err := l.runner.MigrateDestructive(ctx, src); err != nil {
		return fmt.Errorf("update %s: %w", p.Name(), err)
	}
	if !rec.Installed() {
		if err := l.storage.MarkInstalled(ctx, p.Name(), true); err != nil {
			return err
		}
	}

	log.Printf("[Kernel] Plugin %s updated to %s", p.Name(), p.Version())
	return nil
}

func (l *PluginLifecycle) Activate(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.storage.GetPlugin(ctx, name)
	if err != nil {
		return err
	}
	if !rec.Installed() {
		return fmt.Errorf("activate %s: plugin is not installed", name)
	}
	if err := l.storage.SetActive(ctx, name, true); err != nil {
		return err
	}
	log.Printf("[Kernel] Plugin %s activated", name)
	return nil
}

func (l *PluginLifecycle) Deactivate(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.storage.SetActive(ctx, name, false); err != nil {
		return err
	}
	log.Printf("[Kernel] Plugin %s deactivated", name)
	return nil
}

// Uninstall marks the plugin uninstalled and inactive. Tables created by its
// migrations are kept.
func (l *PluginLifecycle) Uninstall(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.storage.MarkInstalled(ctx, name, false); err != nil {
		return err
	}
	log.Printf("[Kernel] Plugin %s uninstalled", name)
	return nil
}

// State returns the stored record of a plugin.
func (l *PluginLifecycle) State(ctx context.Context, name string) (*model.Plugin, error) {
	return l.storage.GetPlugin(ctx, name)
}

// States returns every stored plugin record.
func (l *PluginLifecycle) States(ctx context.Context) ([]model.Plugin, error) {
	return l.storage.ListPlugins(ctx)
}

// MigrationStatus lists the recorded migration steps of a plugin.
func (l *PluginLifecycle) MigrationStatus(ctx context.Context, p plugin.Plugin) ([]migration.Status, error) {
	src, err := l.source(p)
	if err != nil {
		return nil, err
	}
	return l.runner.Statuses(ctx, src)
}
