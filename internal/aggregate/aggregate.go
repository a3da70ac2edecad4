// Package aggregate provides generic load/save helpers for JSON-encoded
// aggregate documents stored behind a docstore.Provider.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/halvard/tally/internal/docstore"
)

// Load fetches the document at ref and decodes its payload into T. An empty
// or absent payload yields T's zero value; the document itself must exist.
func Load[T any](ctx context.Context, store docstore.Provider, ref docstore.Ref) (T, error) {
	var out T
	doc, err := store.Get(ctx, ref)
	if err != nil {
		return out, err
	}
	if doc.Data == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(doc.Data), &out); err != nil {
		return out, fmt.Errorf("aggregate: decode %s: %w", ref.Document, err)
	}
	return out, nil
}

// Save encodes v as JSON and overwrites the document payload at ref.
func Save[T any](ctx context.Context, store docstore.Provider, ref docstore.Ref, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("aggregate: encode %s: %w", ref.Document, err)
	}
	return store.Update(ctx, ref, docstore.Document{Data: string(data)})
}
