package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "remindbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.reminders.snapshot.json (periodic snapshot)
//   - <prefix>.reminders.journal.jsonl (append-only journal)
//
// The journal is periodically compacted into the snapshot. All records are
// additionally held in memory; reads never touch disk.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalFile  *os.File

	nextID    int64
	reminders map[int64]Reminder

	writes int
}

type fileSnapshot struct {
	NextID    int64      `json:"next_id"`
	Reminders []Reminder `json:"reminders"`
}

type journalRecord struct {
	Op  string    `json:"op"` // "put" or "del"
	ID  int64     `json:"id,omitempty"`
	Rec *Reminder `json:"rec,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".reminders.snapshot.json"
	journalPath := prefix + ".reminders.journal.jsonl"

	s := &fileStore{
		log:          log,
		snapshotPath: snapPath,
		reminders:    map[int64]Reminder{},
		nextID:       1,
	}
	_ = s.loadSnapshot(snapPath)
	_ = s.replayJournal(journalPath)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	s.journalFile = jf
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	// Final compact so restart starts from a clean snapshot.
	if err := s.compactLocked(); err != nil {
		s.log.Debug("final compact failed", logx.Err(err))
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) ListPending(ctx context.Context) ([]Reminder, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

func (s *fileStore) Insert(ctx context.Context, r Reminder) (Reminder, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return Reminder{}, errors.New("store closed")
	}
	r.ID = s.nextID
	s.nextID++
	if err := s.appendLocked(journalRecord{Op: "put", Rec: &r}); err != nil {
		return Reminder{}, err
	}
	s.reminders[r.ID] = r
	return r, nil
}

func (s *fileStore) Update(ctx context.Context, r Reminder) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("store closed")
	}
	if _, ok := s.reminders[r.ID]; !ok {
		return nil
	}
	if err := s.appendLocked(journalRecord{Op: "put", Rec: &r}); err != nil {
		return err
	}
	s.reminders[r.ID] = r
	return nil
}

func (s *fileStore) Delete(ctx context.Context, id int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("store closed")
	}
	if _, ok := s.reminders[id]; !ok {
		return nil
	}
	if err := s.appendLocked(journalRecord{Op: "del", ID: id}); err != nil {
		return err
	}
	delete(s.reminders, id)
	return nil
}

func (s *fileStore) FindByID(ctx context.Context, id int64) (*Reminder, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *fileStore) appendLocked(rec journalRecord) error {
	enc := json.NewEncoder(s.journalFile)
	if err := enc.Encode(rec); err != nil {
		return err
	}
	s.writes++
	if s.writes%256 == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	snap := fileSnapshot{NextID: s.nextID}
	for _, r := range s.reminders {
		snap.Reminders = append(snap.Reminders, r)
	}

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(snap); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, 2)
	return err
}

func (s *fileStore) loadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var snap fileSnapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return err
	}
	if snap.NextID > s.nextID {
		s.nextID = snap.NextID
	}
	for _, r := range snap.Reminders {
		s.reminders[r.ID] = r
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
	return nil
}

func (s *fileStore) replayJournal(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec journalRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		switch rec.Op {
		case "put":
			if rec.Rec == nil || rec.Rec.ID == 0 {
				continue
			}
			s.reminders[rec.Rec.ID] = *rec.Rec
			if rec.Rec.ID >= s.nextID {
				s.nextID = rec.Rec.ID + 1
			}
		case "del":
			delete(s.reminders, rec.ID)
		}
	}
	return sc.Err()
}
