// Package credentials verifies tenant secrets.
//
// Tenants and their secrets live in an external store: a hotels.csv file
// (columns hotel_database,password) or a Redis hash. A Store answers two
// questions, whether a secret is valid for a tenant and which tenants exist,
// and reports the outcome as ErrTenantNotFound, ErrAuthenticationFailed or
// ErrStoreUnavailable.
//
// Secrets may be stored as bcrypt hashes (see HashSecret) or in plaintext;
// plaintext secrets are compared in constant time.
package credentials
