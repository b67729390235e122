// Package testplugin is the FMJStudiosTestPlugin: it contributes the
// k_b_a_data entity and the migration creating its table.
package testplugin

import (
	"kba-plugin/internal/plugin"
	"kba-plugin/internal/testplugin/kbadata"
	"kba-plugin/internal/testplugin/migration"
)

const (
	Name    = "FMJStudiosTestPlugin"
	Version = "1.0.0"
)

type Plugin struct{}

var _ plugin.Plugin = (*Plugin)(nil)

func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string {
	return Name
}

func (p *Plugin) Version() string {
	return Version
}

func (p *Plugin) Register(registry *plugin.Registry) error {
	registry.RegisterDefinition(kbadata.Definition{})
	registry.RegisterMigration(migration.Migration1722080412CreateKBADataTable{})
	return nil
}
