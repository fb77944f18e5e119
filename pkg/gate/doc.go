// Package gate guards tenant-scoped HTTP routes.
//
// Every request gets a session id (see package sessionid), which is echoed
// in the X-Session-ID response header. Requests whose path is tenant-scoped
// and not exempt need the session to be bound to a tenant other than the
// default one. When it is not, the gate reads X-Database-Name and
// X-Database-Password, verifies them against the credential store and asks
// the registry to switch the session, all before the handler runs.
// Credential checks never happen while the registry holds a session lock.
//
// Rejections are written by the ErrorHandler; the default one renders a
// JSON error chosen by Classify:
//
//	no credentials     400 database_not_selected
//	unknown tenant     404 database_not_found
//	wrong secret       401 database_auth_failed
//	store unreadable   500 database_config_missing
//	storage failure    500 database_unavailable
package gate
