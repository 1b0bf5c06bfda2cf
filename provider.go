package tenantschema

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// State is application-wide state, shared by all requests.
type State map[string]interface{}

// Scope is the state of a single request.
// It is not safe for concurrent use;
// a request is handled by one goroutine at a time.
type Scope struct {
	Request *http.Request
	state   map[string]interface{}
}

// NewScope returns an empty scope for r.
func NewScope(r *http.Request) *Scope {
	return &Scope{Request: r, state: make(map[string]interface{})}
}

// Get returns the value stored under key, or nil.
func (s *Scope) Get(key string) interface{} { return s.state[key] }

// Set stores val under key.
func (s *Scope) Set(key string, val interface{}) { s.state[key] = val }

// Delete removes key.
func (s *Scope) Delete(key string) { delete(s.state, key) }

// PathParam returns the request path parameter called name, or "".
// Route variables from gorilla/mux take precedence over
// patterns registered with net/http's ServeMux.
func (s *Scope) PathParam(name string) string {
	if s.Request == nil {
		return ""
	}
	if v, ok := mux.Vars(s.Request)[name]; ok {
		return v
	}
	return s.Request.PathValue(name)
}

// ErrNoSessionMaker is returned by ProvideSession
// when the app state holds no SessionMaker under the config's key.
var ErrNoSessionMaker = errors.New("no session maker in app state")

// ProvideSession returns the session for the request scope,
// creating and caching it on first use.
//
// A request naming a tenant (in the TenantPathParam path parameter)
// gets a session bound to an engine that translates unqualified table references
// to the tenant's schema.
// Any other request gets a session with no translation,
// which sees the database's default (core) schema.
func (c *Config) ProvideSession(state State, scope *Scope) (*Session, error) {
	if session, ok := scope.Get(c.SessionScopeKey).(*Session); ok {
		return session, nil
	}

	maker, ok := state[c.SessionMakerAppStateKey].(SessionMaker)
	if !ok {
		return nil, errors.Wrap(ErrNoSessionMaker, c.SessionMakerAppStateKey)
	}

	var session *Session
	if slug := scope.PathParam(c.TenantPathParam); slug != "" {
		engine, err := c.Engine()
		if err != nil {
			return nil, err
		}
		schema := c.SchemaName(slug)
		m := SchemaTranslateMap{"": schema}
		session = maker(Bind(engine.ExecutionOptions(ExecutionOptions{SchemaTranslateMap: m})))
		c.Metrics.sessionCreated("tenant")
		c.logger().Debug("tenant session created", zap.String("slug", slug), zap.String("schema", schema))
	} else {
		session = maker()
		c.Metrics.sessionCreated("core")
		c.logger().Debug("core session created")
	}

	scope.Set(c.SessionScopeKey, session)
	return session, nil
}

// RequestSession is ProvideSession for the scope attached to r by Middleware.
// Without Middleware a fresh scope is used, so the session is not cached
// and the caller must close it.
func (c *Config) RequestSession(state State, r *http.Request) (*Session, error) {
	scope := ScopeFrom(r.Context())
	if scope == nil {
		scope = NewScope(r)
	}
	return c.ProvideSession(state, scope)
}

// Middleware gives each request its own Scope
// and closes the scope's session, if one was created, after the handler returns.
// The result has the shape of a mux.MiddlewareFunc,
// so it can be passed to (*mux.Router).Use.
func (c *Config) Middleware(state State) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := NewScope(r)
			r = r.WithContext(WithScope(r.Context(), scope))
			scope.Request = r

			defer func() {
				session, ok := scope.Get(c.SessionScopeKey).(*Session)
				if !ok {
					return
				}
				scope.Delete(c.SessionScopeKey)
				if err := session.Close(); err != nil {
					c.logger().Warn("closing session", zap.Error(err))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
