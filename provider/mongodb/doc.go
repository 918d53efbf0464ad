// Package mongodb implements the clipauth user provider on MongoDB.
//
// # Schema
//
// One document per user in a single collection, keyed by a UUID string _id.
// Unique indexes on username and email back the duplicate-identifier checks;
// call [Provider.EnsureIndexes] once at startup.
//
// # What this package must NOT do
//
//   - Hash or verify passwords (it stores the hash opaquely).
//   - Touch Redis or session state.
package mongodb
