// Package jwt mints and verifies the signed access/refresh token pairs
// used by sessionauth. Every token carries a typ claim; verification
// checks it against the expected use, so tokens cannot cross roles.
package jwt
