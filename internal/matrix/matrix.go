// Package matrix builds the CI build matrix from the plugins and apps found
// in a project tree.
package matrix

import (
	"encoding/json"
	"io"
	"io/fs"
	"path"
	"strings"
)

const (
	PluginDir = "custom/plugins"
	AppDir    = "custom/apps"
)

// DefaultPHPVersions are the interpreter versions every job runs against.
var DefaultPHPVersions = []string{"8.2", "8.3"}

// Matrix is the JSON document consumed by the CI workflow.
type Matrix struct {
	PHPVersion []string `json:"php_version"`
	Plugin     []string `json:"plugin,omitempty"`
	App        []string `json:"app,omitempty"`
}

// Build assembles a matrix. plugin and app are left out when empty.
func Build(versions, plugins, apps []string) Matrix {
	m := Matrix{PHPVersion: append([]string{}, versions...)}
	if len(plugins) > 0 {
		m.Plugin = append([]string(nil), plugins...)
	}
	if len(apps) > 0 {
		m.App = append([]string(nil), apps...)
	}
	return m
}

// ListDirs returns the base names of the immediate subdirectories of dir in
// listing order. Hidden entries are skipped and symlinks are kept when they
// point at a directory. A dir that is missing, unreadable or not a directory
// yields no names.
func ListDirs(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() || isDirLink(fsys, dir, e) {
			names = append(names, e.Name())
		}
	}
	return names
}

func isDirLink(fsys fs.FS, dir string, e fs.DirEntry) bool {
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := fs.Stat(fsys, path.Join(dir, e.Name()))
	return err == nil && info.IsDir()
}

// Generate lists plugins and apps under the project root fsys.
func Generate(fsys fs.FS, versions []string) Matrix {
	return Build(versions, ListDirs(fsys, PluginDir), ListDirs(fsys, AppDir))
}

// Encode writes m as compact JSON without a trailing newline.
func Encode(w io.Writer, m Matrix) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
