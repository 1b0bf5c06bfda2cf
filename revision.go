package tenantschema

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrInvalidRevisionType means a revision type is neither the core nor the tenant label.
var ErrInvalidRevisionType = errors.New("invalid revision type")

// ValidRevisionTypes returns the core and tenant revision labels, in that order.
func (c *Config) ValidRevisionTypes() []string {
	return []string{c.CoreRevisionName, c.TenantRevisionName}
}

// IsValidRevisionType reports whether revisionType is exactly one of valid.
func IsValidRevisionType(revisionType string, valid []string) bool {
	for _, v := range valid {
		if revisionType == v {
			return true
		}
	}
	return false
}

// CheckRevisionType returns an error wrapping ErrInvalidRevisionType
// unless revisionType is one of the config's revision labels.
func (c *Config) CheckRevisionType(revisionType string) error {
	valid := c.ValidRevisionTypes()
	if IsValidRevisionType(revisionType, valid) {
		return nil
	}
	return errors.Wrap(ErrInvalidRevisionType, fmt.Sprintf("revision type should be one of [%s|%s], not %q", valid[0], valid[1], revisionType))
}

// ScriptDir returns the migration script directory for revisionType.
func (c *Config) ScriptDir(revisionType string) string {
	return filepath.Join(c.ScriptLocation, revisionType)
}

// TargetSchemas returns the schemas a migration of revisionType applies to:
// the core schema, or every existing tenant schema.
func (c *Config) TargetSchemas(ctx context.Context, revisionType string) ([]string, error) {
	switch revisionType {
	case c.CoreRevisionName:
		return []string{c.CoreSchemaName}, nil
	case c.TenantRevisionName:
		return c.TenantSchemas(ctx)
	}
	return nil, c.CheckRevisionType(revisionType)
}
