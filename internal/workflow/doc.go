// Package workflow runs the import queue.
//
// A Manager owns a single worker goroutine that takes queued items in
// position order and drives each one through classification, archive
// expansion, identification, multi-file resolution, duplicate detection,
// enrichment, placement into the library and persistence. Every status
// change is written through the queue store's state machine and published on
// a statusbus.Bus for presentation layers.
//
// Items are independent: a failure is recorded on the item and the worker
// moves on. Removing the in-flight item sets a cancel flag that the worker
// checks between steps; the step underway finishes but its result is
// discarded. Pause takes effect between items.
package workflow
