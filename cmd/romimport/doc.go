// Command romimport imports ROM files, disc images, BIOS files and artwork
// into an organised emulation library.
//
// Paths given to `romimport import` are queued in a SQLite-backed queue and
// processed one at a time: each item is classified, hashed, matched to a
// system, then copied or moved under library_dir/<system>. Items that match
// more than one system wait in the conflict state until `romimport queue
// choose` picks one.
package main
