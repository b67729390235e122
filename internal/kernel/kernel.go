// Package kernel boots plugins and wires their entity definitions and
// migrations to the database.
package kernel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"kba-plugin/internal/dal"
	"kba-plugin/internal/metrics"
	"kba-plugin/internal/migration"
	"kba-plugin/internal/plugin"
)

var (
	ErrNotBooted     = errors.New("kernel not booted")
	ErrNoDatabase    = errors.New("kernel has no database connection")
	ErrUnknownPlugin = errors.New("unknown plugin")
)

type Options struct {
	Environment string
	Debug       bool
	Version     string
	ProjectDir  string
	Loader      PluginLoader
	DB          *sql.DB
	Publisher   dal.EventPublisher
}

type Kernel struct {
	opts        Options
	definitions *dal.DefinitionRegistry

	mu      sync.RWMutex
	booted  bool
	plugins []plugin.Plugin
	sources map[string]migration.Source
}

func New(opts Options) *Kernel {
	if opts.Environment == "" {
		opts.Environment = "prod"
	}
	if opts.Loader == nil {
		opts.Loader = NewStaticPluginLoader()
	}
	if opts.Publisher == nil {
		opts.Publisher = dal.NoopPublisher{}
	}
	return &Kernel{
		opts:        opts,
		definitions: dal.NewDefinitionRegistry(),
		sources:     make(map[string]migration.Source),
	}
}

func (k *Kernel) Environment() string { return k.opts.Environment }
func (k *Kernel) Debug() bool         { return k.opts.Debug }
func (k *Kernel) Version() string     { return k.opts.Version }
func (k *Kernel) ProjectDir() string  { return k.opts.ProjectDir }
func (k *Kernel) DB() *sql.DB         { return k.opts.DB }

// Boot loads the plugins and registers their contributions. It does not
// touch the database and is a no-op once the kernel is booted. A failed Boot
// leaves nothing registered, so it can be retried.
func (k *Kernel) Boot(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.booted {
		return nil
	}

	plugins, err := k.opts.Loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load plugins: %w", err)
	}

	definitions := dal.NewDefinitionRegistry()
	sources := make(map[string]migration.Source, len(plugins))
	for _, p := range plugins {
		registry, err := register(p)
		if err != nil {
			return err
		}
		for _, def := range registry.Definitions() {
			if _, err := definitions.Register(def); err != nil {
				return fmt.Errorf("plugin %s: %w", p.Name(), err)
			}
		}
		sources[p.Name()] = migration.NewSource(p.Name(), registry.Migrations()...)
	}

	k.definitions = definitions
	k.sources = sources
	k.plugins = plugins
	k.booted = true
	metrics.PluginsActive.Set(float64(len(plugins)))
	log.Printf("[Kernel] Booted %d plugin(s) in %s environment", len(plugins), k.opts.Environment)
	return nil
}

func register(p plugin.Plugin) (*plugin.Registry, error) {
	registry := plugin.NewRegistry()
	if err := p.Register(registry); err != nil {
		return nil, fmt.Errorf("register plugin %s: %w", p.Name(), err)
	}
	return registry, nil
}

func (k *Kernel) Booted() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.booted
}

// Plugins returns the booted plugins in load order.
func (k *Kernel) Plugins() []plugin.Plugin {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]plugin.Plugin, len(k.plugins))
	copy(out, k.plugins)
	return out
}

func (k *Kernel) Plugin(name string) (plugin.Plugin, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, p := range k.plugins {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

func (k *Kernel) Definitions() *dal.DefinitionRegistry {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.definitions
}

// MigrationSource returns the steps contributed by a booted plugin.
func (k *Kernel) MigrationSource(pluginName string) (migration.Source, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	src, ok := k.sources[pluginName]
	return src, ok
}

// Repository returns a repository for a registered entity.
func (k *Kernel) Repository(entityName string) (*dal.Repository, error) {
	if !k.Booted() {
		return nil, ErrNotBooted
	}
	if k.opts.DB == nil {
		return nil, ErrNoDatabase
	}
	def, err := k.Definitions().Get(entityName)
	if err != nil {
		return nil, err
	}
	return dal.NewRepository(k.opts.DB, def, k.opts.Publisher), nil
}
