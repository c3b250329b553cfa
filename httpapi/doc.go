// Package httpapi exposes a goGuard.Engine over HTTP with fiber.
//
// Routes are mounted by [New]. Request bodies are checked against JSON
// Schemas reflected from the request structs before any engine call, so a
// malformed body never reaches the account store. Engine errors are mapped
// to status codes through goGuard.KindOf; login failures always collapse to
// one generic 401 body.
package httpapi
