// Package plugin defines what a plugin contributes to the kernel.
package plugin

import (
	"kba-plugin/internal/dal"
	"kba-plugin/internal/migration"
)

// Plugin is a compiled-in extension of the kernel.
type Plugin interface {
	Name() string
	Version() string
	Register(registry *Registry) error
}

// Registry accumulates plugin contributions during registration.
type Registry struct {
	definitions []dal.EntityDefinition
	migrations  []migration.Step
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterDefinition adds an entity definition contributed by the plugin.
func (r *Registry) RegisterDefinition(def dal.EntityDefinition) {
	if def == nil {
		return
	}
	r.definitions = append(r.definitions, def)
}

// RegisterMigration adds a migration step contributed by the plugin.
func (r *Registry) RegisterMigration(step migration.Step) {
	if step == nil {
		return
	}
	r.migrations = append(r.migrations, step)
}

// Definitions returns a copy of registered definitions.
func (r *Registry) Definitions() []dal.EntityDefinition {
	out := make([]dal.EntityDefinition, len(r.definitions))
	copy(out, r.definitions)
	return out
}

// Migrations returns a copy of registered migration steps.
func (r *Registry) Migrations() []migration.Step {
	out := make([]migration.Step, len(r.migrations))
	copy(out, r.migrations)
	return out
}
