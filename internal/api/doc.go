// Package api serves jobs, drives and batch renames over HTTP.
//
// # Routes
//
// REST-style JSON endpoints live under /api: jobs (list, show, title
// correction, abandon, delete), drives (list, rescan, eject) and rename
// (preview, execute, rollback, recent batches). /json?mode=<op> offers the
// same operations behind one endpoint with form arguments.
//
// # Auth
//
// When api.token is set every route except /api/health requires
// "Authorization: Bearer <token>".
//
// # Design Notes
//
// DTOs use snake_case JSON tags. Internal enums are exposed as lowercase
// strings. Timestamps use RFC3339 with milliseconds in UTC. Every response
// echoes an X-Request-ID, generated when the caller sends none, and the id
// is attached to log lines written while serving the request.
package api
