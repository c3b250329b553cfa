// Package goGuard provides an authentication engine that verifies stored
// bcrypt credentials, issues RS256 access tokens and enforces account
// security policy: failed-attempt lockout, password expiry and password
// history.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goGuard is the public surface. It exposes [Engine], [Builder], [Config],
// the [AccountStore] port and value types ([Account], [Identity],
// [LoginResult]). Storage lives in the store/ sub-packages and HTTP in
// middleware/ and httpapi/; none of them is imported from here.
//
// # Concurrency contract
//
// Every account mutation runs through [AccountStore.UpdateAccount], which
// serializes read-modify-write per username. Password hashing and
// verification run outside that critical section; lockout transitions are
// re-evaluated on the fresh snapshot inside it.
package goGuard
