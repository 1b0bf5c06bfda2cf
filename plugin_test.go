package tenantschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetDatabaseMigrationPlugin(t *testing.T) {
	p := NewPlugin(DefaultConfig())

	got, err := GetDatabaseMigrationPlugin(NewApp("some other plugin", p))
	require.NoError(t, err)
	assert.Same(t, p, got)

	_, err = GetDatabaseMigrationPlugin(NewApp("some other plugin"))
	assert.Equal(t, ErrImproperConfiguration, err)

	_, err = GetDatabaseMigrationPlugin(nil)
	assert.Equal(t, ErrImproperConfiguration, err)
}

func TestAppInit(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	c := testConfig(t)
	c.Logger = zap.New(core)
	app := NewApp(NewPlugin(c))
	require.NoError(t, app.Init())

	engine, ok := app.State[c.EngineAppStateKey].(*Engine)
	require.True(t, ok)
	maker, ok := app.State[c.SessionMakerAppStateKey].(SessionMaker)
	require.True(t, ok)

	session := maker()
	assert.Same(t, engine, session.Bind())
	require.NoError(t, session.Close())

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "database plugin initialized", entry.Message)
	assert.Equal(t, "default", entry.ContextMap()["bind_key"])
}
