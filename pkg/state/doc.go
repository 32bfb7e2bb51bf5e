// Package state defines persistence-facing contracts for checkpointing and
// restoring binding snapshots captured from a scoped namespace.
//
// Responsibilities:
//   - Store[T] only loads/saves a single snapshot for a single Ref.
//   - Checkpointer captures the bindings visible from a scope, saves them
//     behind a Store, and replays a saved snapshot into an isolated run.
//   - The core scoped package remains persistence-agnostic; all persistence
//     logic stays behind Store implementations supplied by consumers.
//
// Data flow:
//
//	scoped.Local.Snapshot -> Checkpointer.Save -> Store
//	Store -> Checkpointer.Restore -> scoped.Local.RunIsolatedWith
//
// Concurrency control:
//
//	Meta.ETag implements optimistic locking: Save and Update reject writes
//	whose expected ETag no longer matches the stored record.
package state
