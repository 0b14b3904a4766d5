// Package library persists the managed ROM collection: imported games, BIOS
// images and artwork.
//
// The store is a SQLite database next to the queue database. Only one
// process may hold it open for writing; Open takes an advisory lock and a
// second opener fails with ErrLocked. Games are unique by MD5 so a content
// duplicate is detected before any file is placed.
package library
