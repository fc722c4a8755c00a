package config

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "remindbot/pkg/logx"
)

// Watch re-parses the config file whenever it changes on disk and invokes
// onChange with the new config. Editors often emit several write events per
// save, so events are debounced and content-hashed before publishing.
//
// Parse failures are logged and skipped; the previous config stays in effect.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory, not the file: many editors replace the file on
	// save (rename+create), which drops a direct file watch.
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}

	base := filepath.Base(path)
	var lastHash uint64
	if cfg, err := Load(path); err == nil {
		lastHash = hashConfig(cfg)
	}

	var debounce *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(300*time.Millisecond, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watch error", logx.Err(err))
		case <-fire:
			cfg, err := Load(path)
			if err != nil {
				log.Warn("config reload failed, keeping previous", logx.Err(err))
				continue
			}
			h := hashConfig(cfg)
			if h == lastHash {
				continue
			}
			lastHash = h
			log.Info("config reloaded", logx.String("path", path))
			onChange(cfg)
		}
	}
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
