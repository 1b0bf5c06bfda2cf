package tenantschema

import (
	"context"
	"sort"
	"strings"
)

type keyType int

const (
	translateMapKey keyType = iota
	scopeKey
)

// SchemaTranslateMap redirects table references from one schema to another
// at execution time.
// The empty key stands for "no schema":
// {"": "tenant_acme"} sends every unqualified table reference to tenant_acme.
// Other keys rewrite references that are already qualified with that schema.
type SchemaTranslateMap map[string]string

// key returns a canonical string form of m, usable as part of a cache key.
func (m SchemaTranslateMap) key() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(m[k])
		b.WriteByte(';')
	}
	return b.String()
}

// WithSchemaTranslateMap adds a schema-translation map to the given context.
// Any queries issued through a translating connection with the returned context
// have their table references rewritten according to m.
func WithSchemaTranslateMap(ctx context.Context, m SchemaTranslateMap) context.Context {
	return context.WithValue(ctx, translateMapKey, m)
}

// TranslateMap returns the schema-translation map carried by ctx,
// or nil if there is none.
func TranslateMap(ctx context.Context) SchemaTranslateMap {
	m, _ := ctx.Value(translateMapKey).(SchemaTranslateMap)
	return m
}

// WithScope attaches a request scope to ctx.
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// ScopeFrom returns the request scope carried by ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey).(*Scope)
	return s
}
