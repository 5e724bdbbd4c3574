// Package handlers contains reusable HTTP pieces shared by the API server:
// health checking and authentication middleware.
//
// # Health Checks
//
// Checks run in parallel with a per-check timeout. A failing required check
// makes the service unhealthy and not ready; a failing optional check only
// marks it degraded:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("store", handlers.NewPingCheck(store))
//	checker.AddOptionalCheck("cache", handlers.NewPingCheck(cache))
//
// # Authentication
//
// UserAuth verifies HS256 bearer tokens and requires the token subject to
// own the record in the {id} path variable. AdminAuth checks an X-Admin-Key
// header against bcrypt hashes.
package handlers
