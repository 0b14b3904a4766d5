// Package services defines shared utilities consumed by the import pipeline
// steps and their external collaborators.
//
// Key responsibilities:
//   - Scope, carried on the context, naming the item and step being worked on
//     so log records can be traced back to one import attempt.
//   - Structured error markers plus the Wrap and Details helpers that translate
//     failures into the stable error kinds recorded on queue items.
//   - MultiError for batch operations where several paths fail independently.
//
// Use these helpers when wiring new pipeline logic so failure classification
// and observability stay uniform across the queue.
package services
