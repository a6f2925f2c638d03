// Package reload re-reads the agenda on a cron schedule and, for local
// files, whenever the file changes on disk.
package reload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	appLog "agendacal/internal/log"
)

// Func performs one reload. A returned error leaves the previous agenda in
// place.
type Func func(ctx context.Context) error

const (
	debounceDelay      = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Reloader triggers Func from a cron schedule and, when path is set, from
// changes to that file. Triggers never overlap.
type Reloader struct {
	schedule string
	path     string
	fn       Func
	delay    time.Duration

	mu sync.Mutex
}

// New returns a Reloader for the standard five-field cron schedule. An
// empty path disables file watching.
func New(schedule, path string, fn Func) *Reloader {
	return &Reloader{
		schedule: schedule,
		path:     path,
		fn:       fn,
		delay:    debounceDelay,
	}
}

// Run blocks until ctx is done. It only returns an error when the schedule
// cannot be parsed.
func (r *Reloader) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() { r.trigger(ctx, "schedule") }); err != nil {
		return fmt.Errorf("reload schedule %q: %w", r.schedule, err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	appLog.Info("agenda reloader started", "schedule", r.schedule, "watch", r.path)
	if r.path == "" {
		<-ctx.Done()
		return nil
	}
	r.watch(ctx)
	return nil
}

func (r *Reloader) trigger(ctx context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if err := r.fn(ctx); err != nil {
		appLog.Error("agenda reload failed; keeping previous", err, "reason", reason)
		return
	}
	appLog.Debug("agenda reloaded", "reason", reason)
}

// watch follows the directory holding path so that editors replacing the
// file (rename over it) are still seen. Bursts of events collapse into one
// reload after r.delay. A broken watcher is recreated with backoff.
func (r *Reloader) watch(ctx context.Context) {
	dir := filepath.Dir(r.path)
	file := filepath.Base(r.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		appLog.Debug("agenda change detected; scheduling reload", "path", r.path)
		timer = time.AfterFunc(r.delay, func() { r.trigger(ctx, "file change") })
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	backoff := restartBackoffBase
	for {
		if ctx.Err() != nil {
			return
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.Add(dir); err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			appLog.Error("agenda watch init failed", err, "dir", dir)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, restartBackoffMax)
			continue
		}

		backoff = restartBackoffBase
		appLog.Debug("agenda watcher started", "dir", dir, "file", file)
		follow(ctx, w, file, debounce)
		_ = w.Close()

		if ctx.Err() != nil {
			return
		}
		appLog.Info("agenda watcher stopped; restarting", "dir", dir, "backoff", backoff)
		if !sleep(ctx, backoff) {
			return
		}
	}
}

// follow forwards events for file to onChange until ctx is done or the
// watcher closes its channels.
func follow(ctx context.Context, w *fsnotify.Watcher, file string, onChange func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were dropped; reload once to catch up.
				appLog.Error("agenda watch overflow; forcing reload", err)
				onChange()
				continue
			}
			appLog.Error("agenda watch error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
