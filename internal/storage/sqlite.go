package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "remindbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const reminderColumns = `id, created_at, fire_at, recipient_user_id, delivery_channel_id,
	guild_id, origin_message_id, message, delivery_message_id`

func (s *sqliteStore) ListPending(ctx context.Context) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders ORDER BY fire_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Insert(ctx context.Context, r Reminder) (Reminder, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(created_at, fire_at, recipient_user_id, delivery_channel_id,
		   guild_id, origin_message_id, message, delivery_message_id)
		 VALUES(?,?,?,?,?,?,?,?)`,
		r.CreatedAt.UnixMilli(), r.FireAt.UnixMilli(), r.RecipientUserID, r.DeliveryChannelID,
		r.GuildID, r.OriginMessageID, r.Message, r.DeliveryMessageID,
	)
	if err != nil {
		return Reminder{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Reminder{}, err
	}
	r.ID = id
	return r, nil
}

func (s *sqliteStore) Update(ctx context.Context, r Reminder) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET fire_at=?, delivery_message_id=?, message=? WHERE id=?`,
		r.FireAt.UnixMilli(), r.DeliveryMessageID, r.Message, r.ID,
	)
	return err
}

func (s *sqliteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id=?`, id)
	return err
}

func (s *sqliteStore) FindByID(ctx context.Context, id int64) (*Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id=?`, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (Reminder, error) {
	var r Reminder
	var createdMS, fireMS int64
	err := row.Scan(&r.ID, &createdMS, &fireMS, &r.RecipientUserID, &r.DeliveryChannelID,
		&r.GuildID, &r.OriginMessageID, &r.Message, &r.DeliveryMessageID)
	if err != nil {
		return Reminder{}, err
	}
	r.CreatedAt = time.UnixMilli(createdMS)
	r.FireAt = time.UnixMilli(fireMS)
	return r, nil
}
