// Package queue persists import items in SQLite and enforces their lifecycle.
//
// The Store owns schema initialization, FIFO ordering by position, and the
// item state machine (queued, processing, success, failure, conflict,
// partial). Every status change goes through Transition, which records a
// history row alongside the item update so the sequence of states an item
// passed through can be inspected later.
//
// Items cache the work already done on them (digest, candidates, expansion)
// so re-queued conflict, partial and failed items resume without repeating
// it. The database is transient storage for in-flight imports; schema changes
// bump schemaVersion and users recreate the file.
package queue
