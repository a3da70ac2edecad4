// Package spool ingests change events from a watched directory. Each
// *.json file is one event envelope; this is the offline/replay delivery
// path next to the webhook.
package spool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/halvard/tally/internal/apperr"
	"github.com/halvard/tally/internal/dispatch"
	"github.com/halvard/tally/internal/event"
)

// Envelope is the on-disk event file format.
type Envelope struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// settleDelay is how long an undecodable file may keep changing before it
// is judged final and quarantined. Producers that open the file before the
// envelope is fully written get this long between chunks.
const settleDelay = 500 * time.Millisecond

// Watch drains pre-existing event files in dir, then processes new ones as
// they appear until ctx is cancelled. Handled files are renamed to
// <name>.done; files whose content is stably undecodable or unusable to
// <name>.err. A file that is empty or mid-write is left in place until the
// writer's next Write event or the settle timer delivers usable content.
func Watch(ctx context.Context, dir string, d *dispatch.Dispatcher, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("spool: started", slog.String("dir", dir))

	// settleTimer debounces quarantine: an undecodable file is re-read only
	// after settleDelay of quiet, so a slow writer is never raced.
	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	handle := func(path string) {
		if !process(ctx, path, d, logger, false) {
			delete(pending, path)
			return
		}
		pending[path] = struct{}{}
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	drain(dir, logger, handle)

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("spool: stopped")
			return nil

		case <-settleCh:
			for path := range pending {
				delete(pending, path)
				process(ctx, path, d, logger, true)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			handle(ev.Name)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("spool: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

// drain feeds event files already present in dir to handle.
func drain(dir string, logger *slog.Logger, handle func(string)) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("spool: drain failed", slog.String("error", err.Error()))
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		handle(filepath.Join(dir, e.Name()))
	}
}

// process reads and dispatches one event file. It returns true when the
// content looks mid-write (non-empty but undecodable) and should be retried
// after the settle delay; with final set, such content is quarantined
// instead.
func process(ctx context.Context, path string, d *dispatch.Dispatcher, logger *slog.Logger, final bool) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		// Fires for files already renamed away or not yet readable; the
		// next Write event retries.
		logger.Debug("spool: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return false
	}
	if len(data) == 0 {
		// Create fires when the producer opens the file; the content
		// arrives with the Write event.
		logger.Debug("spool: empty file, awaiting content", slog.String("path", path))
		return false
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if !final {
			logger.Debug("spool: undecodable, awaiting writer", slog.String("path", path))
			return true
		}
		logger.Warn("spool: bad envelope", slog.String("path", path), slog.String("error", err.Error()))
		markDone(path, ".err", logger)
		return false
	}

	ev, err := event.Parse(env.Event, env.Payload)
	if err != nil {
		if errors.Is(err, apperr.ErrSkip) {
			logger.Debug("spool: event skipped", slog.String("path", path), slog.String("reason", err.Error()))
		} else {
			logger.Warn("spool: parse failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		markDone(path, ".err", logger)
		return false
	}

	results := d.Dispatch(ctx, ev)
	s := dispatch.Summarize(results)
	logger.Info("spool: event processed",
		slog.String("path", path),
		slog.Int("applied", s.Applied),
		slog.Int("skipped", s.Skipped),
		slog.Int("failed", s.Failed))
	markDone(path, ".done", logger)
	return false
}

// markDone renames the file out of the *.json namespace so it is not
// picked up again.
func markDone(path, suffix string, logger *slog.Logger) {
	if err := os.Rename(path, path+suffix); err != nil {
		logger.Warn("spool: rename failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}
