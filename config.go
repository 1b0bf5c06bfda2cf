package tenantschema

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bobg/tenantschema/migrate"
)

// Config is the database configuration for a multi-tenant application.
// Besides the usual engine and session settings
// it carries the naming conventions for core and tenant schemas
// and for the two classes of migration scripts.
type Config struct {
	// DSN is the lib/pq connection string.
	DSN string `mapstructure:"dsn"`

	// BindKey selects this config's tables in the metadata registry.
	BindKey string `mapstructure:"bind_key"`

	// SessionScopeKey is the request-scope state key under which the session is cached.
	SessionScopeKey string `mapstructure:"session_scope_key"`

	// SessionMakerAppStateKey is the app state key under which the SessionMaker is stored.
	SessionMakerAppStateKey string `mapstructure:"session_maker_app_state_key"`

	// EngineAppStateKey is the app state key under which the Engine is stored.
	EngineAppStateKey string `mapstructure:"engine_app_state_key"`

	CoreSchemaName        string `mapstructure:"core_schema_name"`
	CoreRevisionName      string `mapstructure:"core_revision_name"`
	TenantSchemaPrefix    string `mapstructure:"tenant_schema_prefix"`
	TenantRevisionName    string `mapstructure:"tenant_revision_name"`
	TenantSchemaSeparator string `mapstructure:"tenant_schema_separator"`

	// TenantPathParam is the request path parameter holding the tenant slug.
	TenantPathParam string `mapstructure:"tenant_path_param"`

	// ScriptLocation is the parent of the per-revision-type script directories.
	ScriptLocation string `mapstructure:"script_location"`

	// VersionTable is the name of the table, in each schema, recording its migration version.
	VersionTable string `mapstructure:"version_table"`

	Logger   *zap.Logger       `mapstructure:"-"`
	Metrics  *Metrics          `mapstructure:"-"`
	Metadata *MetadataRegistry `mapstructure:"-"`

	// Commands builds the migration engine for the CLI.
	// The default is migrate.NewGoose.
	Commands func(migrate.Config) migrate.Commands `mapstructure:"-"`

	engineOnce sync.Once
	engine     *Engine
	engineErr  error
}

// Default values for Config fields.
const (
	DefaultBindKey                 = "default"
	DefaultSessionScopeKey         = "tenantschema_session"
	DefaultSessionMakerAppStateKey = "session_maker_class"
	DefaultEngineAppStateKey       = "db_engine"
	DefaultCoreSchemaName          = "core"
	DefaultCoreRevisionName        = "core"
	DefaultTenantSchemaPrefix      = "tenant"
	DefaultTenantRevisionName      = "tenant"
	DefaultTenantSchemaSeparator   = "_"
	DefaultTenantPathParam         = "organisation_slug"
	DefaultScriptLocation          = "migrations"
	DefaultVersionTable            = "goose_db_version"
)

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		BindKey:                 DefaultBindKey,
		SessionScopeKey:         DefaultSessionScopeKey,
		SessionMakerAppStateKey: DefaultSessionMakerAppStateKey,
		EngineAppStateKey:       DefaultEngineAppStateKey,
		CoreSchemaName:          DefaultCoreSchemaName,
		CoreRevisionName:        DefaultCoreRevisionName,
		TenantSchemaPrefix:      DefaultTenantSchemaPrefix,
		TenantRevisionName:      DefaultTenantRevisionName,
		TenantSchemaSeparator:   DefaultTenantSchemaSeparator,
		TenantPathParam:         DefaultTenantPathParam,
		ScriptLocation:          DefaultScriptLocation,
		VersionTable:            DefaultVersionTable,
	}
}

// Validate checks that the naming conventions are usable.
func (c *Config) Validate() error {
	required := []struct {
		name, val string
	}{
		{"session_scope_key", c.SessionScopeKey},
		{"session_maker_app_state_key", c.SessionMakerAppStateKey},
		{"core_schema_name", c.CoreSchemaName},
		{"core_revision_name", c.CoreRevisionName},
		{"tenant_schema_prefix", c.TenantSchemaPrefix},
		{"tenant_revision_name", c.TenantRevisionName},
		{"tenant_path_param", c.TenantPathParam},
		{"script_location", c.ScriptLocation},
		{"version_table", c.VersionTable},
	}
	for _, r := range required {
		if r.val == "" {
			return errors.Errorf("%s must not be empty", r.name)
		}
	}
	if c.CoreRevisionName == c.TenantRevisionName {
		return errors.Errorf("core and tenant revision names are both %q", c.CoreRevisionName)
	}
	if c.IsTenantSchema(c.CoreSchemaName) {
		return errors.Errorf("core schema %q looks like a tenant schema", c.CoreSchemaName)
	}
	return nil
}

func (c *Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Config) metadata() *MetadataRegistry {
	if c.Metadata == nil {
		return DefaultMetadataRegistry
	}
	return c.Metadata
}

// LoadConfig reads a Config from the YAML file at path (if path is non-empty)
// and from TENANTDB_* environment variables, which take precedence.
// Unset values keep their defaults.
func LoadConfig(path string) (*Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("TENANTDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("dsn", def.DSN)
	v.SetDefault("bind_key", def.BindKey)
	v.SetDefault("session_scope_key", def.SessionScopeKey)
	v.SetDefault("session_maker_app_state_key", def.SessionMakerAppStateKey)
	v.SetDefault("engine_app_state_key", def.EngineAppStateKey)
	v.SetDefault("core_schema_name", def.CoreSchemaName)
	v.SetDefault("core_revision_name", def.CoreRevisionName)
	v.SetDefault("tenant_schema_prefix", def.TenantSchemaPrefix)
	v.SetDefault("tenant_revision_name", def.TenantRevisionName)
	v.SetDefault("tenant_schema_separator", def.TenantSchemaSeparator)
	v.SetDefault("tenant_path_param", def.TenantPathParam)
	v.SetDefault("script_location", def.ScriptLocation)
	v.SetDefault("version_table", def.VersionTable)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}
