package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kba-plugin/internal/matrix"
)

func TestRunPrintsMatrix(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "custom", "plugins", "A"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "custom", "plugins", "B"), 0o755))

	var stdout, stderr bytes.Buffer
	run(root, matrix.DefaultPHPVersions, &stdout, &stderr)

	assert.Equal(t, `{"php_version":["8.2","8.3"],"plugin":["A","B"]}`, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRunTreatsUnlistablePluginsAsEmpty(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "custom", "apps", "Shop"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "custom", "plugins"), []byte("file"), 0o644))

	var stdout, stderr bytes.Buffer
	run(root, matrix.DefaultPHPVersions, &stdout, &stderr)

	assert.Equal(t, `{"php_version":["8.2","8.3"],"app":["Shop"]}`, stdout.String())
	assert.Empty(t, stderr.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestRunReportsEncodeFailureOnStderr(t *testing.T) {
	root := t.TempDir()

	var stderr bytes.Buffer
	run(root, matrix.DefaultPHPVersions, failingWriter{}, &stderr)

	assert.Equal(t, "Could not generate matrix for project: "+filepath.Base(root)+".\nERROR: broken pipe\n", stderr.String())
}

func TestRootCommandUsesRootFlag(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "custom", "apps", "Shop"), 0o755))

	var stdout bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--root", root, "--php-version", "8.3"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, `{"php_version":["8.3"],"app":["Shop"]}`, stdout.String())
}

func TestRootCommandRejectsArguments(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"unexpected"})
	assert.Error(t, cmd.Execute())
}
