// Package ledgerauth is the authentication core of the Pennyledger finance
// ledger: registration and login orchestration, rotating opaque refresh tokens,
// single-use password-reset tokens, TOTP second-factor enrollment with backup
// codes, and brute-force mitigation (account lockout, breach-password checks).
//
// The package is designed for concurrent server workloads: Service methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// ledgerauth is the public surface. It exposes [Service], [Builder], [Config],
// the [UserStore] contract, and value types (TokenPair, TOTPSetup, AuditEvent).
// All internal coordination — the Redis token-cache client, lockout limiters,
// TOTP and backup-code primitives, breach-check client, audit dispatch — lives
// under internal/ and is never exported.
//
// # Failure policy
//
// Token creation paths fail closed: a cache write that cannot be confirmed
// surfaces [ErrCacheUnavailable] rather than returning a token that was never
// persisted. Token validation paths fail open to "not found" so a flaky cache
// degrades to re-authentication instead of an outage. Revocation is always
// best-effort. Raw tokens, TOTP secrets, and backup codes never appear in
// audit events; only SHA-256 hashes and user ids do.
package ledgerauth
