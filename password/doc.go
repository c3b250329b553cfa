// Package password implements password hashing and the password policy
// primitives used by the Engine.
//
// # Output format
//
// Hashes are standard bcrypt strings:
//
//	$2a$<cost>$<22 char salt><31 char hash>
//
// Every call to [Bcrypt.Hash] draws a fresh salt, so two hashes of the same
// plaintext never match byte for byte.
//
// # Policy
//
// [Policy] owns complexity rules, reuse detection against archived hashes,
// expiry arithmetic and generation of temporary passwords. Orchestration
// (loading the account, archiving, persisting) is done by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other goGuard package.
//   - Log plaintext passwords.
package password
