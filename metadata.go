package tenantschema

import (
	"sort"
	"sync"
)

// Table describes a table known to the application.
// An empty Schema means the table is unqualified,
// living in whichever schema a session resolves it to.
type Table struct {
	Name   string
	Schema string
}

// Metadata is a set of tables, keyed by name.
type Metadata struct {
	mu     sync.Mutex
	tables map[string]*Table
}

// Add registers tables, replacing any of the same name.
func (m *Metadata) Add(tables ...*Table) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tables == nil {
		m.tables = make(map[string]*Table)
	}
	for _, t := range tables {
		m.tables[t.Name] = t
	}
}

// Table returns the table called name, or nil.
func (m *Metadata) Table(name string) *Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables[name]
}

// Names returns the sorted names of all registered tables.
func (m *Metadata) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MetadataRegistry maps bind keys to Metadata.
type MetadataRegistry struct {
	mu sync.Mutex
	m  map[string]*Metadata
}

// NewMetadataRegistry returns an empty registry.
func NewMetadataRegistry() *MetadataRegistry {
	return &MetadataRegistry{m: make(map[string]*Metadata)}
}

// DefaultMetadataRegistry is used by Configs whose Metadata field is nil.
var DefaultMetadataRegistry = NewMetadataRegistry()

// Get returns the Metadata for bindKey, creating it if needed.
func (r *MetadataRegistry) Get(bindKey string) *Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()

	md, ok := r.m[bindKey]
	if !ok {
		md = &Metadata{}
		r.m[bindKey] = md
	}
	return md
}

// ResolveTables returns the config's registered tables named in names,
// or all of them if names contains "*".
// Names with no registered table are returned in missing.
func (c *Config) ResolveTables(names []string) (tables []*Table, missing []string) {
	md := c.metadata().Get(c.BindKey)

	all := false
	for _, name := range names {
		if name == "*" {
			all = true
			break
		}
	}
	if all {
		for _, name := range md.Names() {
			tables = append(tables, md.Table(name))
		}
		return tables, nil
	}

	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if t := md.Table(name); t != nil {
			tables = append(tables, t)
		} else {
			missing = append(missing, name)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	sort.Strings(missing)
	return tables, missing
}
