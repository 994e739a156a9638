// Package rate implements Redis fixed-window throttles for the
// authentication engine: per-IP login attempts and per-subject refresh
// attempts. Counters use INCR plus a conditional EXPIRE on the first hit
// of each window.
//
// The account lockout policy is separate and lives in internal/limiters.
package rate
