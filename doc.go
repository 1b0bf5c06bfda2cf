// Package tenantschema serves many tenants from one Postgresql database
// by giving each tenant its own schema.
//
// A request that names a tenant (by default through the "organisation_slug"
// path parameter) gets a Session whose queries are rewritten on the fly:
// every unqualified table reference is qualified with the tenant's schema,
// "tenant_acme" for the slug "Acme". Requests without a tenant get a plain
// session, which resolves tables through the database's own search_path
// (normally the core schema).
//
// The rewriting happens in a database/sql driver that wraps lib/pq.
// It parses each query
// (rather than doing dumb textual substitution)
// and splices schema names in at the locations the parser reports,
// so the rest of the query text is preserved exactly.
// Only queries issued with a context carrying a SchemaTranslateMap are parsed;
// everything else goes straight through.
//
// Sessions are created at most once per request scope.
// Use Config.Middleware to give each request a scope,
// and Config.RequestSession (or Config.ProvideSession) to get its session.
//
// Migrations run per schema class ("core" or "tenant"),
// each class with its own script directory under Config.ScriptLocation.
// See the dbcli package for the "database" command group
// and the migrate package for the engine it drives.
package tenantschema
