// Package reminder implements the durable delayed-notification scheduler.
//
// # Overview
//
// A reminder is persisted first, then armed as an in-memory timer. The store
// is the source of truth: on process start Initialize() rebuilds every timer
// from the pending records, so no reminder is lost or double-fired across
// restarts.
//
// # Timer chaining
//
// Delays may reach years, far beyond what we are willing to trust a single
// timer with. Spans longer than Config.ChainStep are armed as a chain: an
// intermediate timer fires after ChainStep, re-reads the record, and re-arms
// whatever span is left. Only the terminal timer delivers. Because every link
// re-reads fire_at from the store, a snooze applied between links is honored
// without touching the in-flight chain.
//
// # Lifecycle
//
// created -> armed -> (re-armed by snooze)* -> fires at most once ->
// finalized (record deleted, handle dropped). Delivery is at-most-once and
// best-effort: failures are logged and the reminder is finalized anyway.
//
// # Concurrency
//
// Timer callbacks run on their own goroutines, concurrently with Create,
// Snooze and Cancel. All handle-registry mutation happens under one mutex,
// and callbacks carry a (generation, sequence) pair so a callback whose
// handle was replaced or reset simply discards itself. The registry lock is
// never held across store or notifier I/O.
package reminder
