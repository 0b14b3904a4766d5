// Package registry holds the table of emulated systems romimport can import
// for: names, accepted extensions, BIOS requirements, and the DAT names used
// to tie reference digests back to a system.
//
// Consumers hold a *Snapshot, which never changes. Registry.Reload publishes
// a new snapshot with a higher Version instead of mutating the old one, so an
// identification pass in flight keeps a consistent view.
package registry
