package testbootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kba-plugin/internal/dal"
	"kba-plugin/internal/kernel"
	"kba-plugin/internal/testplugin"
)

func TestBuilderDeduplicates(t *testing.T) {
	b := New().
		AddCallingPlugin(testplugin.New()).
		AddCallingPlugin(testplugin.New()).
		AddActivePlugins(testplugin.Name).
		SetForceInstallPlugins(true).
		SetDatabaseURL("postgres://example/test").
		SetPublisher(dal.NoopPublisher{})

	assert.Len(t, b.known, 1)
	assert.Equal(t, dal.NoopPublisher{}, b.publisher)
	assert.Equal(t, []string{testplugin.Name}, b.active)
	assert.True(t, b.forceInstall)
	assert.Equal(t, "postgres://example/test", b.DatabaseURL())
}

func TestNewReadsDatabaseURLFromEnv(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "postgres://env/test")
	assert.Equal(t, "postgres://env/test", New().DatabaseURL())
}

func TestBootstrapRejectsUnknownActivePlugins(t *testing.T) {
	b := New().
		SetDatabaseURL("postgres://unused/test").
		AddActivePlugins("SwagPayPal")

	_, err := b.Bootstrap(context.Background())
	require.ErrorIs(t, err, kernel.ErrUnknownPlugin)
	assert.Contains(t, err.Error(), "SwagPayPal")
	assert.Nil(t, b.Kernel())
}

func TestCloseWithoutBootstrap(t *testing.T) {
	assert.NoError(t, New().Close())
}
