// Package linkscache maintains the flat cache of uploader names seen on
// link submissions.
package linkscache

import (
	"context"
	"fmt"
	"sort"

	"github.com/halvard/tally/internal/aggregate"
	"github.com/halvard/tally/internal/apperr"
	"github.com/halvard/tally/internal/docstore"
	"github.com/halvard/tally/internal/event"
)

// Document is the stored cache: a deduplicated, alphabetically sorted list
// of uploader names. Names are never removed.
type Document struct {
	Uploaders []string `json:"uploaders"`
}

// Task inserts new uploader names into the cache. It watches every
// collection; any creation carrying a createdBy field qualifies.
type Task struct {
	store docstore.Provider
	ref   docstore.Ref
}

// New creates the links cache task for the document at ref.
func New(store docstore.Provider, ref docstore.Ref) *Task {
	return &Task{store: store, ref: ref}
}

// Name identifies the task in dispatch results and logs.
func (t *Task) Name() string { return "links-cache" }

// Apply inserts the event's createdBy name if it is not cached yet. An
// already-present name is a true no-op: no write is issued.
func (t *Task) Apply(ctx context.Context, ev event.Event) error {
	if ev.Kind != event.Create {
		return fmt.Errorf("linkscache: only create events qualify: %w", apperr.ErrSkip)
	}
	name, ok := ev.String("createdBy")
	if !ok {
		return fmt.Errorf("linkscache: no createdBy field: %w", apperr.ErrSkip)
	}

	doc, err := aggregate.Load[Document](ctx, t.store, t.ref)
	if err != nil {
		return fmt.Errorf("linkscache: load: %w", err)
	}

	inserted, uploaders := insertSorted(doc.Uploaders, name)
	if !inserted {
		return nil
	}
	doc.Uploaders = uploaders

	if err := aggregate.Save(ctx, t.store, t.ref, doc); err != nil {
		return fmt.Errorf("linkscache: save: %w", err)
	}
	return nil
}

// insertSorted adds name to the set, keeping it sorted ascending. The first
// return value reports whether the set changed.
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
