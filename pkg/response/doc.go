// Package response renders JSON bodies and JSON errors.
//
// Handlers return a Response and Handle writes it. Errors are reported as
//
//	{"error": {"code": "database_auth_failed", "message": "Invalid database credentials"}}
//
// where the status and code come from an HTTPError found in the error chain.
package response
