// Package testutil provides shared test fixtures: a seeded in-memory store
// and the standard task set wired against it.
package testutil

import (
	"log/slog"
	"testing"

	"github.com/halvard/tally/internal/dispatch"
	"github.com/halvard/tally/internal/docstore"
	"github.com/halvard/tally/internal/linkscache"
	"github.com/halvard/tally/internal/stats"
	"github.com/halvard/tally/internal/statsvc"
	"github.com/halvard/tally/internal/uploadercache"
)

// Tracked collection ids used across tests.
const (
	NotesCollection   = "notes"
	FormsCollection   = "forms"
	YouTubeCollection = "youtube"
)

// Refs returns the document refs the fixtures provision.
func Refs() statsvc.Refs {
	return statsvc.Refs{
		Stats:     docstore.Ref{Database: "main", Collection: "stats", Document: "teacher-stats"},
		Links:     docstore.Ref{Database: "main", Collection: "cache", Document: "links"},
		Uploaders: docstore.Ref{Database: "main", Collection: "cache", Document: "uploaders"},
	}
}

// TestStore returns an in-memory store with all three aggregate documents
// provisioned empty.
func TestStore(t *testing.T) *docstore.Memory {
	t.Helper()
	store := docstore.NewMemory()
	refs := Refs()
	store.Seed(refs.Stats, "")
	store.Seed(refs.Links, "")
	store.Seed(refs.Uploaders, "")
	return store
}

// TestDispatcher wires the three standard tasks against store.
func TestDispatcher(t *testing.T, store docstore.Provider) *dispatch.Dispatcher {
	t.Helper()
	refs := Refs()
	cols := stats.Collections{Notes: NotesCollection, Forms: FormsCollection, YouTube: YouTubeCollection}
	return dispatch.New(slog.Default(),
		stats.New(store, refs.Stats, cols),
		linkscache.New(store, refs.Links),
		uploadercache.New(store, refs.Uploaders, NotesCollection),
	)
}
