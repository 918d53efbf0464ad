// Package memory provides an in-memory user provider for tests and local
// development. It must not be used as production storage.
package memory
