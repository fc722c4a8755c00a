// Package storage persists pending reminders.
//
// The store is the authoritative pending set: a record exists exactly while
// its reminder has not been dispatched. Two drivers are provided:
//   - SQLite database file (default)
//   - dependency-free file backend (jsonl journal + snapshot)
package storage
