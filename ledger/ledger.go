// Package ledger records revoked tokens until their natural expiry. The
// ledger makes logout effective immediately: a token whose digest is
// present is rejected even though its signature still verifies.
//
// Tokens are keyed by SHA-256 digest, never stored raw. The Redis ledger
// relies on native per-key expiry; the in-memory ledger runs a periodic
// sweep instead and exists for tests and single-process deployments.
package ledger

import (
	"context"
	"time"
)

// Ledger is the revocation ledger consulted on refresh and validation.
type Ledger interface {
	// Record marks token revoked until expiresAt. Recording an already
	// expired token is a no-op.
	Record(ctx context.Context, token string, expiresAt time.Time) error
	// Contains reports whether token is currently revoked.
	Contains(ctx context.Context, token string) (bool, error)
}
