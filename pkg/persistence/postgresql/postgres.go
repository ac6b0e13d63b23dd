// Package postgresql provides the PostgreSQL document store. Every collection
// shares one JSONB table; searches use containment (@>).
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/conductor/pkg/persistence"
	"github.com/dukex/conductor/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements persistence.Store for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence connects, pings and migrates the database.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:     database,
		logger: logger.With("module", "postgresql"),
	}, nil
}

func (p *Persistence) Index(ctx context.Context, collection, id string, document any) error {
	raw, err := persistence.Marshal(document)
	if err != nil {
		return persistence.NewDocumentError("Index", collection, id, err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, source)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id)
		DO UPDATE SET source = EXCLUDED.source, updated_at = NOW()`,
		collection, id, string(raw),
	)
	if err != nil {
		return persistence.NewDocumentError("Index", collection, id, err)
	}

	return nil
}

func (p *Persistence) Get(ctx context.Context, collection, id string) (persistence.Document, error) {
	var source []byte

	err := p.db.QueryRowContext(ctx,
		"SELECT source FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Document{}, persistence.NewDocumentError("Get", collection, id, persistence.ErrDocumentNotFound)
	}

	if err != nil {
		return persistence.Document{}, persistence.NewDocumentError("Get", collection, id, err)
	}

	return persistence.Document{ID: id, Source: source}, nil
}

// Search returns documents in insertion order.
func (p *Persistence) Search(ctx context.Context, collection string, query persistence.Query) ([]persistence.Document, error) {
	filter := "{}"

	if len(query.Fields) > 0 {
		raw, err := persistence.Marshal(query.Fields)
		if err != nil {
			return nil, persistence.NewDocumentError("Search", collection, "", err)
		}

		filter = string(raw)
	}

	statement := `
		SELECT id, source FROM documents
		WHERE collection = $1 AND source @> $2::jsonb
		ORDER BY created_at, id`
	args := []any{collection, filter}

	if query.Limit > 0 {
		statement += " LIMIT $3"

		args = append(args, query.Limit)
	}

	rows, err := p.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, persistence.NewDocumentError("Search", collection, "", err)
	}
	defer rows.Close()

	docs := make([]persistence.Document, 0)

	for rows.Next() {
		var doc persistence.Document

		err := rows.Scan(&doc.ID, &doc.Source)
		if err != nil {
			return nil, persistence.NewDocumentError("Search", collection, "", err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewDocumentError("Search", collection, "", err)
	}

	return docs, nil
}

func (p *Persistence) Delete(ctx context.Context, collection, id string) error {
	result, err := p.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	)
	if err != nil {
		return persistence.NewDocumentError("Delete", collection, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewDocumentError("Delete", collection, id, err)
	}

	if affected == 0 {
		return persistence.NewDocumentError("Delete", collection, id, persistence.ErrDocumentNotFound)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
