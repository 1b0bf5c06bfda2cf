package tenantschema

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		in, sep, want string
	}{
		{"acme", "_", "acme"},
		{"Acme Corp", "_", "acme_corp"},
		{"  Héllo   Wörld!! ", "_", "hello_world"},
		{"foo--bar", "_", "foo_bar"},
		{"foo - bar", "-", "foo-bar"},
		{"Café-Bar", "-", "cafe-bar"},
		{"already_snake", "_", "already_snake"},
		{"___x___", "_", "x"},
		{"a.b,c", "_", "abc"},
		{"日本", "_", ""},
		{"Acme\u00a0Corp", "_", "acme_corp"},
		{"\ufb01ne Foods", "-", "fine-foods"},
		{"", "_", ""},
	}
	for _, c := range cases {
		if got := Slugify(c.in, c.sep); got != c.want {
			t.Errorf("Slugify(%q, %q) = %q, want %q", c.in, c.sep, got, c.want)
		}
	}
}

func TestSchemaName(t *testing.T) {
	c := DefaultConfig()
	if got := c.SchemaName("Acme Corp"); got != "tenant_acme_corp" {
		t.Errorf("got %s, want tenant_acme_corp", got)
	}

	c.TenantSchemaPrefix = "org"
	c.TenantSchemaSeparator = "__"
	if got := c.SchemaName("big co"); got != "org__big__co" {
		t.Errorf("got %s, want org__big__co", got)
	}
}

func TestIsTenantSchema(t *testing.T) {
	c := DefaultConfig()
	cases := map[string]bool{
		"tenant_acme":  true,
		"tenant_":      true,
		"tenants":      false,
		"tenant":       false,
		"core":         false,
		"public":       false,
		"xtenant_acme": false,
	}
	for name, want := range cases {
		if got := c.IsTenantSchema(name); got != want {
			t.Errorf("IsTenantSchema(%q) = %v, want %v", name, got, want)
		}
	}
}
