// Package memory provides the in-process document store backed by buntdb.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/conductor/pkg/persistence"
	"github.com/tidwall/buntdb"
)

// Persistence keeps documents under "<collection>:<id>" keys.
type Persistence struct {
	db *buntdb.DB
}

// NewPersistence opens an in-memory database.
func NewPersistence() (*Persistence, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	return &Persistence{db: db}, nil
}

func key(collection, id string) string {
	return collection + ":" + id
}

func (p *Persistence) Index(_ context.Context, collection, id string, document any) error {
	raw, err := persistence.Marshal(document)
	if err != nil {
		return persistence.NewDocumentError("Index", collection, id, err)
	}

	err = p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key(collection, id), string(raw), nil)

		return err
	})
	if err != nil {
		return persistence.NewDocumentError("Index", collection, id, err)
	}

	return nil
}

func (p *Persistence) Get(_ context.Context, collection, id string) (persistence.Document, error) {
	var value string

	err := p.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key(collection, id))
		value = v

		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return persistence.Document{}, persistence.NewDocumentError("Get", collection, id, persistence.ErrDocumentNotFound)
	}

	if err != nil {
		return persistence.Document{}, persistence.NewDocumentError("Get", collection, id, err)
	}

	return persistence.Document{ID: id, Source: []byte(value)}, nil
}

// Search walks the collection in key order.
func (p *Persistence) Search(_ context.Context, collection string, query persistence.Query) ([]persistence.Document, error) {
	prefix := collection + ":"
	docs := make([]persistence.Document, 0)

	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(k, value string) bool {
			source := []byte(value)
			if !query.Matches(source) {
				return true
			}

			docs = append(docs, persistence.Document{ID: strings.TrimPrefix(k, prefix), Source: source})

			return query.Limit <= 0 || len(docs) < query.Limit
		})
	})
	if err != nil {
		return nil, persistence.NewDocumentError("Search", collection, "", err)
	}

	return docs, nil
}

func (p *Persistence) Delete(_ context.Context, collection, id string) error {
	err := p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key(collection, id))

		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return persistence.NewDocumentError("Delete", collection, id, persistence.ErrDocumentNotFound)
	}

	if err != nil {
		return persistence.NewDocumentError("Delete", collection, id, err)
	}

	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return p.db.View(func(tx *buntdb.Tx) error {
		_, err := tx.Len()

		return err
	})
}

func (p *Persistence) Close(_ context.Context) error {
	err := p.db.Close()
	if err != nil && !errors.Is(err, buntdb.ErrDatabaseClosed) {
		return fmt.Errorf("failed to close in-memory database: %w", err)
	}

	return nil
}
