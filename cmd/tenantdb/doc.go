// Command tenantdb manages the schemas of a multi-tenant Postgresql database.
//
// Usage:
//
//	tenantdb [--config FILE] [--debug] database COMMAND [flags]
//
// The configuration file is YAML (see tenantschema.LoadConfig);
// TENANTDB_* environment variables override it.
// Run "tenantdb database --help" for the list of commands.
package main
