// Package redis provides the Redis document store. Documents are JSON string
// values; each collection keeps a sorted set of ids scored by first insert.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/conductor/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "conductor"

// Persistence implements persistence.Store for Redis.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewPersistence connects to the server described by a redis:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return NewPersistenceWithClient(ctx, logger, redis.NewClient(opts))
}

// NewPersistenceWithClient wraps an existing client after a ping.
func NewPersistenceWithClient(ctx context.Context, logger *slog.Logger, client redis.UniversalClient) (*Persistence, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Persistence{
		client: client,
		logger: logger.With("module", "redis_persistence"),
	}, nil
}

func documentKey(collection, id string) string {
	return keyPrefix + ":" + collection + ":doc:" + id
}

func idsKey(collection string) string {
	return keyPrefix + ":" + collection + ":ids"
}

func (p *Persistence) Index(ctx context.Context, collection, id string, document any) error {
	raw, err := persistence.Marshal(document)
	if err != nil {
		return persistence.NewDocumentError("Index", collection, id, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, documentKey(collection, id), string(raw), 0)
		pipe.ZAddNX(ctx, idsKey(collection), redis.Z{Score: float64(time.Now().UnixNano()), Member: id})

		return nil
	})
	if err != nil {
		return persistence.NewDocumentError("Index", collection, id, err)
	}

	return nil
}

func (p *Persistence) Get(ctx context.Context, collection, id string) (persistence.Document, error) {
	value, err := p.client.Get(ctx, documentKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return persistence.Document{}, persistence.NewDocumentError("Get", collection, id, persistence.ErrDocumentNotFound)
	}

	if err != nil {
		return persistence.Document{}, persistence.NewDocumentError("Get", collection, id, err)
	}

	return persistence.Document{ID: id, Source: value}, nil
}

// Search loads the collection in insertion order and filters client side.
func (p *Persistence) Search(ctx context.Context, collection string, query persistence.Query) ([]persistence.Document, error) {
	ids, err := p.client.ZRange(ctx, idsKey(collection), 0, -1).Result()
	if err != nil {
		return nil, persistence.NewDocumentError("Search", collection, "", err)
	}

	if len(ids) == 0 {
		return []persistence.Document{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = documentKey(collection, id)
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, persistence.NewDocumentError("Search", collection, "", err)
	}

	docs := make([]persistence.Document, 0, len(values))

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// id left behind by a concurrent delete
			continue
		}

		docs = append(docs, persistence.Document{ID: ids[i], Source: []byte(s)})
	}

	return query.Filter(docs), nil
}

func (p *Persistence) Delete(ctx context.Context, collection, id string) error {
	var deleted *redis.IntCmd

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, documentKey(collection, id))
		pipe.ZRem(ctx, idsKey(collection), id)

		return nil
	})
	if err != nil {
		return persistence.NewDocumentError("Delete", collection, id, err)
	}

	if deleted.Val() == 0 {
		return persistence.NewDocumentError("Delete", collection, id, persistence.ErrDocumentNotFound)
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil && !errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}
