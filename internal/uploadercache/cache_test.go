package uploadercache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/halvard/tally/internal/apperr"
	"github.com/halvard/tally/internal/docstore"
	"github.com/halvard/tally/internal/event"
)

func testTask(t *testing.T, initial string) (*Task, *docstore.Memory, docstore.Ref) {
	t.Helper()
	store := docstore.NewMemory()
	ref := docstore.Ref{Database: "main", Collection: "cache", Document: "uploaders"}
	store.Seed(ref, initial)
	return New(store, ref, "notes"), store, ref
}

func mkEvent(t *testing.T, op, collection string, payload map[string]any) event.Event {
	t.Helper()
	ev, err := event.Parse("databases.main.collections."+collection+".documents."+op, payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return ev
}

func loadDoc(t *testing.T, store *docstore.Memory, ref docstore.Ref) Document {
	t.Helper()
	raw, _ := store.Get(context.Background(), ref)
	var doc Document
	if err := json.Unmarshal([]byte(raw.Data), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return doc
}

func TestFirstUploadCreatesCategoryOnFirstUse(t *testing.T) {
	task, store, ref := testTask(t, "")

	ev := mkEvent(t, "create", "notes", map[string]any{"userName": "Dan", "abbreviation": "PHY"})
	if err := task.Apply(context.Background(), ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	doc := loadDoc(t, store, ref)
	if len(doc[AllKey]) != 1 || doc[AllKey][0] != "Dan" {
		t.Errorf("all = %v, want [Dan]", doc[AllKey])
	}
	if len(doc["PHY"]) != 1 || doc["PHY"][0] != "Dan" {
		t.Errorf("PHY = %v, want [Dan]", doc["PHY"])
	}
}

func TestOtherCollectionIsSkipped(t *testing.T) {
	task, store, _ := testTask(t, "")

	ev := mkEvent(t, "create", "forms", map[string]any{"userName": "Dan", "abbreviation": "PHY"})
	if err := task.Apply(context.Background(), ev); !errors.Is(err, apperr.ErrSkip) {
		t.Errorf("Apply = %v, want ErrSkip", err)
	}
	if store.Updates() != 0 {
		t.Errorf("updates = %d, want 0", store.Updates())
	}
}

func TestNonCreateIsSkipped(t *testing.T) {
	task, _, _ := testTask(t, "")

	for _, op := range []string{"update", "delete"} {
		ev := mkEvent(t, op, "notes", map[string]any{"userName": "Dan", "abbreviation": "PHY"})
		if err := task.Apply(context.Background(), ev); !errors.Is(err, apperr.ErrSkip) {
			t.Errorf("Apply(%s) = %v, want ErrSkip", op, err)
		}
	}
}

func TestMissingFieldsAreSkipped(t *testing.T) {
	task, _, _ := testTask(t, "")

	ev := mkEvent(t, "create", "notes", map[string]any{"abbreviation": "PHY"})
	if err := task.Apply(context.Background(), ev); !errors.Is(err, apperr.ErrSkip) {
		t.Errorf("missing userName = %v, want ErrSkip", err)
	}
	ev = mkEvent(t, "create", "notes", map[string]any{"userName": "Dan"})
	if err := task.Apply(context.Background(), ev); !errors.Is(err, apperr.ErrSkip) {
		t.Errorf("missing abbreviation = %v, want ErrSkip", err)
	}
}

func TestRedeliveryDoesNotWrite(t *testing.T) {
	initial, _ := json.Marshal(Document{AllKey: {"Dan"}, "PHY": {"Dan"}})
	task, store, _ := testTask(t, string(initial))

	ev := mkEvent(t, "create", "notes", map[string]any{"userName": "Dan", "abbreviation": "PHY"})
	if err := task.Apply(context.Background(), ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if store.Updates() != 0 {
		t.Errorf("updates = %d, want 0 on redelivery", store.Updates())
	}
}

func TestNewSubjectForKnownUploaderWrites(t *testing.T) {
	initial, _ := json.Marshal(Document{AllKey: {"Dan"}, "PHY": {"Dan"}})
	task, store, ref := testTask(t, string(initial))

	ev := mkEvent(t, "create", "notes", map[string]any{"userName": "Dan", "abbreviation": "CHM"})
	if err := task.Apply(context.Background(), ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if store.Updates() != 1 {
		t.Fatalf("updates = %d, want 1", store.Updates())
	}
	doc := loadDoc(t, store, ref)
	if len(doc[AllKey]) != 1 {
		t.Errorf("all = %v, want still just Dan", doc[AllKey])
	}
	if len(doc["CHM"]) != 1 || doc["CHM"][0] != "Dan" {
		t.Errorf("CHM = %v, want [Dan]", doc["CHM"])
	}
}

func TestCategorySetsStaySorted(t *testing.T) {
	initial, _ := json.Marshal(Document{AllKey: {"Maya"}, "PHY": {"Maya"}})
	task, store, ref := testTask(t, string(initial))

	ev := mkEvent(t, "create", "notes", map[string]any{"userName": "Ana", "abbreviation": "PHY"})
	if err := task.Apply(context.Background(), ev); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	doc := loadDoc(t, store, ref)
	if doc["PHY"][0] != "Ana" || doc["PHY"][1] != "Maya" {
		t.Errorf("PHY = %v, want [Ana Maya]", doc["PHY"])
	}
	if doc[AllKey][0] != "Ana" || doc[AllKey][1] != "Maya" {
		t.Errorf("all = %v, want [Ana Maya]", doc[AllKey])
	}
}
