// Package sqlitedb holds the SQLite plumbing shared by the queue and library
// stores: connection pragmas, schema creation with a version guard, busy
// retry, and column encoding helpers.
package sqlitedb
