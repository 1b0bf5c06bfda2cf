package tenantschema

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Plugin wires one or more Configs into an application.
type Plugin struct {
	configs []*Config
}

// NewPlugin returns a plugin for the given configs.
func NewPlugin(configs ...*Config) *Plugin {
	return &Plugin{configs: configs}
}

// Configs returns the plugin's configs.
func (p *Plugin) Configs() []*Config { return p.configs }

// OnAppInit stores each config's engine and session maker in the app state.
func (p *Plugin) OnAppInit(state State) error {
	for _, c := range p.configs {
		engine, err := c.Engine()
		if err != nil {
			return errors.Wrapf(err, "opening engine for %s", c.BindKey)
		}
		state[c.EngineAppStateKey] = engine
		state[c.SessionMakerAppStateKey] = NewSessionMaker(engine)
		c.logger().Info("database plugin initialized",
			zap.String("bind_key", c.BindKey),
			zap.String("core_schema", c.CoreSchemaName),
			zap.String("tenant_prefix", c.TenantSchemaPrefix))
	}
	return nil
}

// App is the host application: its plugins and its shared state.
type App struct {
	Plugins []interface{}
	State   State
}

// NewApp returns an App with the given plugins and empty state.
func NewApp(plugins ...interface{}) *App {
	return &App{Plugins: plugins, State: make(State)}
}

// Init runs the OnAppInit hook of every database plugin.
func (a *App) Init() error {
	for _, p := range a.Plugins {
		if p, ok := p.(*Plugin); ok {
			if err := p.OnAppInit(a.State); err != nil {
				return err
			}
		}
	}
	return nil
}

// ErrImproperConfiguration is returned when an application has no database plugin.
var ErrImproperConfiguration = errors.New("failed to initialize database migrations: the required multi-tenant database plugin is missing")

// GetDatabaseMigrationPlugin returns the application's multi-tenant database plugin.
func GetDatabaseMigrationPlugin(app *App) (*Plugin, error) {
	if app != nil {
		for _, p := range app.Plugins {
			if p, ok := p.(*Plugin); ok {
				return p, nil
			}
		}
	}
	return nil, ErrImproperConfiguration
}
