// Package statsvc exposes read access to the aggregate documents for the
// HTTP and MCP layers.
package statsvc

import (
	"context"

	"github.com/halvard/tally/internal/aggregate"
	"github.com/halvard/tally/internal/docstore"
	"github.com/halvard/tally/internal/linkscache"
	"github.com/halvard/tally/internal/stats"
	"github.com/halvard/tally/internal/uploadercache"
)

// Refs names the three aggregate documents.
type Refs struct {
	Stats     docstore.Ref
	Links     docstore.Ref
	Uploaders docstore.Ref
}

// Service reads aggregate documents from the store.
type Service struct {
	store docstore.Provider
	refs  Refs
}

// NewService creates a query service over the given store and documents.
func NewService(store docstore.Provider, refs Refs) *Service {
	return &Service{store: store, refs: refs}
}

// TeacherStats returns the contribution counters, sorted as stored.
func (s *Service) TeacherStats(ctx context.Context) (stats.Document, error) {
	doc, err := aggregate.Load[stats.Document](ctx, s.store, s.refs.Stats)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(doc), nil
}

// LinkUploaders returns the flat uploader name cache.
func (s *Service) LinkUploaders(ctx context.Context) (linkscache.Document, error) {
	doc, err := aggregate.Load[linkscache.Document](ctx, s.store, s.refs.Links)
	if err != nil {
		return linkscache.Document{}, err
	}
	doc.Uploaders = nonNilSlice(doc.Uploaders)
	return doc, nil
}

// Uploaders returns the uploader-by-subject cache.
func (s *Service) Uploaders(ctx context.Context) (uploadercache.Document, error) {
	doc, err := aggregate.Load[uploadercache.Document](ctx, s.store, s.refs.Uploaders)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = uploadercache.Document{}
	}
	return doc, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
