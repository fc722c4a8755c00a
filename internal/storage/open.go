package storage

import (
	"context"
	"errors"
	"strings"

	logx "remindbot/pkg/logx"
)

// Store is the durable CRUD surface for pending reminders.
//
// Implementations must support concurrent callers. Lookup methods return
// (nil, nil) when no record exists; callers decide whether that is an error.
type Store interface {
	// ListPending returns every pending reminder, soonest first.
	ListPending(ctx context.Context) ([]Reminder, error)
	// Insert persists a new record and returns it with the assigned id.
	Insert(ctx context.Context, r Reminder) (Reminder, error)
	Update(ctx context.Context, r Reminder) error
	// Delete removes a record. Deleting an absent id is not an error.
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*Reminder, error)
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "file":
		return openFile(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
