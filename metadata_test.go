package tenantschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTables(t *testing.T) {
	c := DefaultConfig()
	c.Metadata = NewMetadataRegistry()
	widgets := &Table{Name: "widgets"}
	users := &Table{Name: "users", Schema: "core"}
	c.Metadata.Get(c.BindKey).Add(widgets, users)
	c.Metadata.Get("other").Add(&Table{Name: "audit"})

	tables, missing := c.ResolveTables([]string{"widgets", "audit", "users", "widgets"})
	assert.Equal(t, []*Table{users, widgets}, tables)
	assert.Equal(t, []string{"audit"}, missing)

	tables, missing = c.ResolveTables([]string{"nope", "*"})
	assert.Equal(t, []*Table{users, widgets}, tables)
	assert.Empty(t, missing)

	tables, missing = c.ResolveTables(nil)
	assert.Empty(t, tables)
	assert.Empty(t, missing)
}

func TestMetadataAddReplaces(t *testing.T) {
	var md Metadata
	md.Add(&Table{Name: "a"}, &Table{Name: "b"})
	md.Add(&Table{Name: "a", Schema: "core"})

	assert.Equal(t, []string{"a", "b"}, md.Names())
	assert.Equal(t, "core", md.Table("a").Schema)
	assert.Nil(t, md.Table("c"))
}
