package tenantschema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, "core", c.CoreSchemaName)
	assert.Equal(t, "tenant", c.TenantSchemaPrefix)
	assert.Equal(t, "_", c.TenantSchemaSeparator)
	assert.Equal(t, "organisation_slug", c.TenantPathParam)
	assert.Equal(t, "session_maker_class", c.SessionMakerAppStateKey)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty tenant prefix":    func(c *Config) { c.TenantSchemaPrefix = "" },
		"empty path param":       func(c *Config) { c.TenantPathParam = "" },
		"same revision names":    func(c *Config) { c.TenantRevisionName = c.CoreRevisionName },
		"core looks like tenant": func(c *Config) { c.CoreSchemaName = "tenant_core" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ScriptLocation, c.ScriptLocation)
	assert.Equal(t, DefaultConfig().VersionTable, c.VersionTable)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenantdb.yaml")
	const yaml = `
dsn: postgres://db.internal/app?sslmode=disable
tenant_schema_prefix: org
tenant_path_param: org_slug
script_location: db/migrations
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("TENANTDB_TENANT_PATH_PARAM", "tenant")

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://db.internal/app?sslmode=disable", c.DSN)
	assert.Equal(t, "org", c.TenantSchemaPrefix)
	assert.Equal(t, "tenant", c.TenantPathParam)
	assert.Equal(t, "db/migrations", c.ScriptLocation)
	assert.Equal(t, "core", c.CoreSchemaName)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("TENANTDB_CORE_SCHEMA_NAME", "tenant_x")
	_, err := LoadConfig("")
	assert.ErrorContains(t, err, "looks like a tenant schema")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
