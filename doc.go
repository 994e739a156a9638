// Package sessionauth is a session authentication core: argon2id
// credential verification, JWT access/refresh pair issuance, single-use
// refresh rotation with replay detection, an immediate-effect revocation
// ledger, and Redis-backed lockout and throttling.
//
// Build an Engine through the Builder:
//
//	engine, err := sessionauth.New().
//		WithConfig(cfg).
//		WithRedis(redisClient).
//		WithAccountStore(store).
//		Build()
//
// Each account holds exactly one valid refresh token. Refresh rotates it
// with a compare-and-set against the store, so two concurrent refreshes
// presenting the same token yield exactly one winner; the loser is
// treated as a replay. The client package provides the matching
// single-flight refresh coordinator for callers of the engine.
package sessionauth
