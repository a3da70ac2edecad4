// Package docstore abstracts the document backend that holds the aggregate
// documents. Implementations exist for a remote HTTP backend, SQLite, Redis,
// and an in-memory map used in tests.
package docstore

import "context"

// Ref names one document inside the backend.
type Ref struct {
	Database   string
	Collection string
	Document   string
}

// Document is the stored record. Data is an opaque serialized payload; an
// empty Data means the document exists but has never been written.
type Document struct {
	Data string
}

// Provider is the interface for document read and write operations.
// Consumers should depend on this interface rather than a concrete backend
// so the in-memory implementation can be substituted in tests.
type Provider interface {
	// Get fetches the document. Returns apperr.ErrNotFound (possibly
	// wrapped) when the document does not exist.
	Get(ctx context.Context, ref Ref) (Document, error)
	// Update overwrites the document payload. Fails with apperr.ErrNotFound
	// when the document has not been provisioned; providers never create
	// documents on update.
	Update(ctx context.Context, ref Ref, doc Document) error
}
