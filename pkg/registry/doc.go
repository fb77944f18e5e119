// Package registry keeps one tenant connection per client session.
//
// A session starts unbound. Its first GetOrCreate opens a connection to the
// default tenant (or to the tenant asked for), and Switch later moves it to
// another tenant. Calls for the same session are serialized on a per-session
// mutex, so concurrent requests from one client share one connection and
// never observe a half-finished switch. Sessions do not block each other.
//
// A switch opens the new connection before disposing the old one. When the
// open fails the session keeps its previous connection and tenant.
//
// Connections are disposed by Cleanup, by the idle reaper (see Config) and
// by Close at shutdown:
//
//	reg := registry.New(factory, registry.WithConfig(cfg), registry.WithLogger(log))
//	defer reg.Close()
//
//	if _, err := reg.Switch(ctx, sessionID, "north-branch"); err != nil {
//		// previous binding is intact
//	}
//	err := reg.WithTx(ctx, sessionID, func(tx *tenantdb.Tx) error { ... })
package registry
