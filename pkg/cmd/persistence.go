package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/conductor/pkg/persistence"
	"github.com/dukex/conductor/pkg/persistence/file"
	"github.com/dukex/conductor/pkg/persistence/memory"
	"github.com/dukex/conductor/pkg/persistence/postgresql"
	"github.com/dukex/conductor/pkg/persistence/redis"
)

// NewPersistence picks a store from the URL scheme: memory://, file://,
// redis:// (or rediss://) and postgres:// (or postgresql://). An empty URL
// means memory.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Store, error) {
	switch provider := parsePersistenceProvider(databaseURL); provider {
	case "", "memory":
		return memory.NewPersistence()
	case "file":
		return file.NewPersistence(databaseURL), nil
	case "redis", "rediss":
		return redis.NewPersistence(ctx, logger, databaseURL)
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", persistence.ErrUnsupportedScheme, provider)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	return strings.ToLower(provider)
}
