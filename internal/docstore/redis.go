package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/halvard/tally/internal/apperr"
)

// Redis is a Provider backed by a Redis instance. Documents live under
// plain string keys; updates use SET XX so a missing document fails
// instead of being created implicitly.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis wraps an existing Redis client.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "tally:doc"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) key(ref Ref) string {
	return fmt.Sprintf("%s:%s:%s:%s", r.prefix, ref.Database, ref.Collection, ref.Document)
}

// Provision creates an empty document if it does not already exist.
func (r *Redis) Provision(ctx context.Context, ref Ref) error {
	if err := r.rdb.SetNX(ctx, r.key(ref), "", 0).Err(); err != nil {
		return fmt.Errorf("docstore: provision: %w", err)
	}
	return nil
}

// Get implements Provider.
func (r *Redis) Get(ctx context.Context, ref Ref) (Document, error) {
	data, err := r.rdb.Get(ctx, r.key(ref)).Result()
	if errors.Is(err, redis.Nil) {
		return Document{}, fmt.Errorf("docstore: get %s: %w", ref.Document, apperr.ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: get %s: %w", ref.Document, err)
	}
	return Document{Data: data}, nil
}

// Update implements Provider.
func (r *Redis) Update(ctx context.Context, ref Ref, doc Document) error {
	ok, err := r.rdb.SetXX(ctx, r.key(ref), doc.Data, 0).Result()
	if err != nil {
		return fmt.Errorf("docstore: update %s: %w", ref.Document, err)
	}
	if !ok {
		return fmt.Errorf("docstore: update %s: %w", ref.Document, apperr.ErrNotFound)
	}
	return nil
}

var _ Provider = (*Redis)(nil)
