package tenantschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSearchPath(t *testing.T) {
	cases := []struct {
		dsn, want string
	}{
		{
			"postgres://u:p@localhost/app?sslmode=disable",
			"postgres://u:p@localhost/app?search_path=tenant_acme%2Cpublic&sslmode=disable",
		},
		{
			"postgresql://localhost/app",
			"postgresql://localhost/app?search_path=tenant_acme%2Cpublic",
		},
		{
			"host=localhost dbname=app sslmode=disable",
			`host=localhost dbname=app sslmode=disable search_path='tenant_acme,public'`,
		},
		{
			"",
			`search_path='tenant_acme,public'`,
		},
	}
	for _, c := range cases {
		got, err := withSearchPath(c.dsn, "tenant_acme,public")
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	got, err := withSearchPath("dbname=app", `o'brien,public`)
	require.NoError(t, err)
	assert.Equal(t, `dbname=app search_path='o\'brien,public'`, got)
}

func TestFilterTenantSchemas(t *testing.T) {
	c := DefaultConfig()
	got := c.filterTenantSchemas([]string{"public", "tenant_zeta", "core", "tenant_acme", "tenants"})
	assert.Equal(t, []string{"tenant_acme", "tenant_zeta"}, got)
	assert.Empty(t, c.filterTenantSchemas([]string{"core", "public"}))
}

func TestDropSchemaStmt(t *testing.T) {
	assert.Equal(t, `DROP SCHEMA IF EXISTS "tenant_acme" CASCADE`, dropSchemaStmt("tenant_acme"))
	assert.Equal(t, `DROP SCHEMA IF EXISTS "we""ird" CASCADE`, dropSchemaStmt(`we"ird`))
}

func TestDropOrder(t *testing.T) {
	tenants := make([]string, 2, 3)
	copy(tenants, []string{"tenant_acme", "tenant_zeta"})
	order := dropOrder(tenants, "core")
	assert.Equal(t, []string{"tenant_acme", "tenant_zeta", "core"}, order)
	assert.Equal(t, "", tenants[:3][2], "dropOrder wrote into the caller's slice")

	var stmts []string
	for _, schema := range order {
		stmts = append(stmts, dropSchemaStmt(schema))
	}
	assert.Equal(t, []string{
		`DROP SCHEMA IF EXISTS "tenant_acme" CASCADE`,
		`DROP SCHEMA IF EXISTS "tenant_zeta" CASCADE`,
		`DROP SCHEMA IF EXISTS "core" CASCADE`,
	}, stmts)

	assert.Equal(t, []string{"core"}, dropOrder(nil, "core"))
}

func TestOpenSchemaDB(t *testing.T) {
	c := testConfig(t)
	db, err := c.OpenSchemaDB("tenant_acme")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	c.DSN = "postgres://%zz"
	_, err = c.OpenSchemaDB("tenant_acme")
	assert.Error(t, err)
}
