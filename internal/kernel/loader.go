// internal/kernel/loader.go
package kernel

import (
	"context"
	"fmt"

	"kba-plugin/internal/plugin"
	"kba-plugin/internal/storage"
)

// PluginLoader decides which plugins the kernel boots.
type PluginLoader interface {
	Load(ctx context.Context) ([]plugin.Plugin, error)
}

// StaticPluginLoader boots every plugin it was given.
type StaticPluginLoader struct {
	plugins []plugin.Plugin
}

func NewStaticPluginLoader(plugins ...plugin.Plugin) *StaticPluginLoader {
	return &StaticPluginLoader{plugins: plugins}
}

func (l *StaticPluginLoader) Load(context.Context) ([]plugin.Plugin, error) {
	out := make([]plugin.Plugin, len(l.plugins))
	copy(out, l.plugins)
	return out, nil
}

// StoragePluginLoader boots the catalog plugins that are installed and
// active according to the plugin table.
type StoragePluginLoader struct {
	storage *storage.Storage
	catalog []plugin.Plugin
}

func NewStoragePluginLoader(st *storage.Storage, catalog ...plugin.Plugin) *StoragePluginLoader {
	return &StoragePluginLoader{storage: st, catalog: catalog}
}

func (l *StoragePluginLoader) Load(ctx context.Context) ([]plugin.Plugin, error) {
	records, err := l.storage.ListPlugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("load plugin states: %w", err)
	}
	active := make(map[string]bool, len(records))
	for _, r := range records {
		active[r.Name] = r.Active && r.Installed()
	}

	var out []plugin.Plugin
	for _, p := range l.catalog {
		if active[p.Name()] {
			out = append(out, p)
		}
	}
	return out, nil
}
