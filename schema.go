package tenantschema

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var asciiOnly = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// Slugify turns s into a lowercase ASCII slug.
// Accents are stripped, punctuation is dropped,
// and runs of whitespace and hyphens become a single sep.
// Leading and trailing hyphens and underscores are trimmed.
func Slugify(s, sep string) string {
	folded, _, _ := transform.String(asciiOnly, s)
	folded = strings.ToLower(folded)

	var (
		b       strings.Builder
		pending bool // inside a run of whitespace or hyphens
	)
	for _, r := range folded {
		switch {
		case r == '-' || unicode.IsSpace(r):
			pending = true
			continue
		case r == '_' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9'):
		default:
			continue
		}
		if pending {
			b.WriteByte('-')
			pending = false
		}
		b.WriteRune(r)
	}
	slug := strings.Trim(b.String(), "-_")
	return strings.ReplaceAll(slug, "-", sep)
}

// SchemaName returns the schema holding the data of the tenant identified by slug.
func (c *Config) SchemaName(slug string) string {
	return c.TenantSchemaPrefix + c.TenantSchemaSeparator + Slugify(slug, c.TenantSchemaSeparator)
}

// IsTenantSchema reports whether name follows the tenant schema naming convention.
func (c *Config) IsTenantSchema(name string) bool {
	return strings.HasPrefix(name, c.TenantSchemaPrefix+c.TenantSchemaSeparator)
}
