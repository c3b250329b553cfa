// Package jwt manages RS256 access-token issuance and verification against a
// single process-wide signing key, and publishes that key as a JWK set.
package jwt
