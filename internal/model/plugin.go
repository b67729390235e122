// internal/model/plugin.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Plugin is a row of the plugin table.
type Plugin struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Version     string     `db:"version" json:"version"`
	Active      bool       `db:"active" json:"active"`
	InstalledAt *time.Time `db:"installed_at" json:"installed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Installed reports whether the plugin has been installed and not uninstalled since.
func (p *Plugin) Installed() bool {
	return p.InstalledAt != nil
}
