package spool

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/halvard/tally/internal/linkscache"
	"github.com/halvard/tally/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeEnvelope(t *testing.T, dir, name string, env Envelope) string {
	t.Helper()
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSpoolProcessesNewFile(t *testing.T) {
	dir := t.TempDir()
	store := testutil.TestStore(t)
	d := testutil.TestDispatcher(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, dir, d, quietLogger())

	time.Sleep(100 * time.Millisecond)

	path := writeEnvelope(t, dir, "ev1.json", Envelope{
		Event:   "databases.main.collections.links.documents.create",
		Payload: map[string]any{"createdBy": "Alice"},
	})

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		doc, err := store.Get(ctx, testutil.Refs().Links)
		if err != nil {
			return false
		}
		var links linkscache.Document
		if json.Unmarshal([]byte(doc.Data), &links) != nil {
			return false
		}
		return len(links.Uploaders) == 1 && links.Uploaders[0] == "Alice"
	}, "spooled event not applied")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		_, err := os.Stat(path + ".done")
		return err == nil
	}, "handled file not renamed to .done")
}

func TestSpoolDrainsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	store := testutil.TestStore(t)
	d := testutil.TestDispatcher(t, store)

	// File present before the watcher starts.
	writeEnvelope(t, dir, "backlog.json", Envelope{
		Event:   "databases.main.collections.links.documents.create",
		Payload: map[string]any{"createdBy": "Bob"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, dir, d, quietLogger())

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		doc, err := store.Get(ctx, testutil.Refs().Links)
		return err == nil && strings.Contains(doc.Data, "Bob")
	}, "backlog file not drained at startup")
}

func TestSpoolSlowWriterNotQuarantined(t *testing.T) {
	dir := t.TempDir()
	store := testutil.TestStore(t)
	d := testutil.TestDispatcher(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, dir, d, quietLogger())

	time.Sleep(100 * time.Millisecond)

	// The producer opens the file first; the envelope arrives later.
	path := filepath.Join(dir, "slow.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	data, err := json.Marshal(Envelope{
		Event:   "databases.main.collections.links.documents.create",
		Payload: map[string]any{"createdBy": "Alice"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		doc, err := store.Get(ctx, testutil.Refs().Links)
		return err == nil && strings.Contains(doc.Data, "Alice")
	}, "event from slow writer not applied")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		_, err := os.Stat(path + ".done")
		return err == nil
	}, "handled file not renamed to .done")
	if _, err := os.Stat(path + ".err"); err == nil {
		t.Error("slow writer was quarantined before its content arrived")
	}
}

func TestSpoolChunkedWriteSettles(t *testing.T) {
	dir := t.TempDir()
	store := testutil.TestStore(t)
	d := testutil.TestDispatcher(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, dir, d, quietLogger())

	time.Sleep(100 * time.Millisecond)

	data, err := json.Marshal(Envelope{
		Event:   "databases.main.collections.links.documents.create",
		Payload: map[string]any{"createdBy": "Carol"},
	})
	if err != nil {
		t.Fatal(err)
	}

	// First chunk is truncated JSON; the rest lands within the settle
	// window.
	path := filepath.Join(dir, "chunked.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(data[:len(data)/2]); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if _, err := f.Write(data[len(data)/2:]); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		doc, err := store.Get(ctx, testutil.Refs().Links)
		return err == nil && strings.Contains(doc.Data, "Carol")
	}, "chunked event not applied")
	if _, err := os.Stat(path + ".err"); err == nil {
		t.Error("chunked write was quarantined before it settled")
	}
}

func TestSpoolBadEnvelopeMarkedErr(t *testing.T) {
	dir := t.TempDir()
	store := testutil.TestStore(t)
	d := testutil.TestDispatcher(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, dir, d, quietLogger())

	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := os.Stat(path + ".err")
		return err == nil
	}, "bad envelope not renamed to .err")
	if store.Updates() != 0 {
		t.Errorf("updates = %d, want 0", store.Updates())
	}
}

func TestSpoolIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	store := testutil.TestStore(t)
	d := testutil.TestDispatcher(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, dir, d, quietLogger())

	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "notes.txt")
	_ = os.WriteFile(path, []byte("not an event"), 0o644)

	time.Sleep(300 * time.Millisecond)
	if _, err := os.Stat(path); err != nil {
		t.Error("non-json file should be left alone")
	}
	if store.Updates() != 0 {
		t.Errorf("updates = %d, want 0", store.Updates())
	}
}
