package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events editors emit for one save.
const watchDebounce = 200 * time.Millisecond

// Watch re-loads path whenever it changes and hands the result (with env
// overrides applied) to onChange. A parse failure is passed as err and the
// previous config stays in effect for the caller. Watch blocks until ctx is
// done.
//
// The parent directory is watched rather than the file, so atomic
// rename-into-place saves are seen.
func Watch(ctx context.Context, path string, onChange func(Config, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config watch %s: %w", filepath.Dir(abs), err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			cfg, err := Load(abs)
			if err == nil {
				err = ApplyEnv(&cfg)
			}
			if err == nil {
				err = cfg.Validate()
			}
			onChange(cfg, err)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			onChange(Config{}, fmt.Errorf("config watch: %w", err))
		}
	}
}
