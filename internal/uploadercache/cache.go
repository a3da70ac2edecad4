// Package uploadercache maintains the uploader-by-subject cache: a global
// name set plus one set per subject abbreviation discovered at runtime.
package uploadercache

import (
	"context"
	"fmt"
	"sort"

	"github.com/halvard/tally/internal/aggregate"
	"github.com/halvard/tally/internal/apperr"
	"github.com/halvard/tally/internal/docstore"
	"github.com/halvard/tally/internal/event"
)

// AllKey indexes the global name set inside the document.
const AllKey = "all"

// Document maps a category key (subject abbreviation, or AllKey) to a
// deduplicated, alphabetically sorted list of uploader names. Category keys
// are created on first use.
type Document map[string][]string

// Task inserts uploader names for note creations into the cache.
type Task struct {
	store           docstore.Provider
	ref             docstore.Ref
	notesCollection string
}

// New creates the uploader cache task. Only create events on
// notesCollection are applied.
func New(store docstore.Provider, ref docstore.Ref, notesCollection string) *Task {
	return &Task{store: store, ref: ref, notesCollection: notesCollection}
}

// Name identifies the task in dispatch results and logs.
func (t *Task) Name() string { return "uploader-cache" }

// Apply inserts the event's userName into the global set and the set for
// its subject abbreviation. No write is issued when both already contain
// the name.
func (t *Task) Apply(ctx context.Context, ev event.Event) error {
	if ev.Collection != t.notesCollection {
		return fmt.Errorf("uploadercache: collection %q is not watched: %w", ev.Collection, apperr.ErrSkip)
	}
	if ev.Kind != event.Create {
		return fmt.Errorf("uploadercache: only create events qualify: %w", apperr.ErrSkip)
	}
	name, ok := ev.String("userName")
	if !ok {
		return fmt.Errorf("uploadercache: no userName field: %w", apperr.ErrSkip)
	}
	subject, ok := ev.String("abbreviation")
	if !ok {
		return fmt.Errorf("uploadercache: no abbreviation field: %w", apperr.ErrSkip)
	}

	doc, err := aggregate.Load[Document](ctx, t.store, t.ref)
	if err != nil {
		return fmt.Errorf("uploadercache: load: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}

	changed := false
	for _, key := range []string{AllKey, subject} {
		if inserted, names := insertSorted(doc[key], name); inserted {
			doc[key] = names
			changed = true
		}
	}
	if !changed {
		return nil
	}

	if err := aggregate.Save(ctx, t.store, t.ref, doc); err != nil {
		return fmt.Errorf("uploadercache: save: %w", err)
	}
	return nil
}

func insertSorted(names []string, name string) (bool, []string) {
	for _, n := range names {
		if n == name {
			return false, names
		}
	}
	names = append(names, name)
	sort.Strings(names)
	return true, names
}
