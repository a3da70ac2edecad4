// Package stats maintains the per-teacher contribution counters document.
package stats

import (
	"context"
	"fmt"
	"sort"

	"github.com/halvard/tally/internal/aggregate"
	"github.com/halvard/tally/internal/apperr"
	"github.com/halvard/tally/internal/docstore"
	"github.com/halvard/tally/internal/event"
)

// Entry is one teacher's contribution counters.
//
// Total moves on every create/delete regardless of which collection fired,
// while the category counters only move for the tracked collections, so
// Total is not derivable from the categories. Downstream consumers treat it
// as the authoritative contribution count.
type Entry struct {
	Name    string `json:"name"`
	Notes   int    `json:"notes"`
	Forms   int    `json:"forms"`
	YouTube int    `json:"youtube"`
	Total   int    `json:"total"`
}

// Document is the stored stats aggregate, kept sorted descending by Total.
type Document []Entry

// Collections holds the ids of the collections whose events feed the
// per-category counters.
type Collections struct {
	Notes   string
	Forms   string
	YouTube string
}

// Task applies one change event to the stats document.
type Task struct {
	store docstore.Provider
	ref   docstore.Ref
	cols  Collections
}

// New creates the stats task for the document at ref.
func New(store docstore.Provider, ref docstore.Ref, cols Collections) *Task {
	return &Task{store: store, ref: ref, cols: cols}
}

// Name identifies the task in dispatch results and logs.
func (t *Task) Name() string { return "teacher-stats" }

// Apply reads the stats document, applies the event and writes the result
// back. Update events and events without attribution are skipped.
func (t *Task) Apply(ctx context.Context, ev event.Event) error {
	if ev.Kind == event.Update {
		return fmt.Errorf("stats: update events are not tracked: %w", apperr.ErrSkip)
	}
	name, ok := ev.Attribution()
	if !ok {
		return fmt.Errorf("stats: no attribution field: %w", apperr.ErrSkip)
	}

	doc, err := aggregate.Load[Document](ctx, t.store, t.ref)
	if err != nil {
		return fmt.Errorf("stats: load: %w", err)
	}

	doc = apply(doc, name, ev.Kind, ev.Collection, t.cols)

	// Written back even when the event matched no tracked collection:
	// Total changed either way.
	if err := aggregate.Save(ctx, t.store, t.ref, doc); err != nil {
		return fmt.Errorf("stats: save: %w", err)
	}
	return nil
}

// apply mutates the entry for name by the event's delta and re-sorts.
func apply(doc Document, name string, kind event.Kind, collection string, cols Collections) Document {
	idx := -1
	for i := range doc {
		if doc[i].Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		doc = append(doc, Entry{Name: name})
		idx = len(doc) - 1
	}

	delta := 1
	if kind == event.Delete {
		delta = -1
	}

	e := &doc[idx]
	switch collection {
	case cols.Notes:
		e.Notes += delta
	case cols.Forms:
		e.Forms += delta
	case cols.YouTube:
		e.YouTube += delta
	}
	e.Total += delta

	e.Notes = clamp(e.Notes)
	e.Forms = clamp(e.Forms)
	e.YouTube = clamp(e.YouTube)
	e.Total = clamp(e.Total)

	sort.SliceStable(doc, func(i, j int) bool {
		return doc[i].Total > doc[j].Total
	})
	return doc
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
