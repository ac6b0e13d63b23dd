// Package file provides file-based persistence: one JSON file per document,
// one directory per collection.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dukex/conductor/pkg/persistence"
)

// Persistence implements persistence.Store on the file system.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a store rooted at root; a "file://" prefix is accepted.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

func (fp *Persistence) dir(collection string) string {
	return filepath.Join(fp.root, url.PathEscape(collection))
}

func (fp *Persistence) path(collection, id string) string {
	return filepath.Join(fp.dir(collection), url.PathEscape(id)+".json")
}

// Index writes the document, replacing any previous version.
func (fp *Persistence) Index(_ context.Context, collection, id string, document any) error {
	raw, err := persistence.Marshal(document)
	if err != nil {
		return persistence.NewDocumentError("Index", collection, id, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	err = os.MkdirAll(fp.dir(collection), 0750)
	if err != nil {
		return persistence.NewDocumentError("Index", collection, id, fmt.Errorf("failed to create collection directory: %w", err))
	}

	target := fp.path(collection, id)
	tmp := target + ".tmp"

	err = os.WriteFile(tmp, raw, 0600)
	if err != nil {
		return persistence.NewDocumentError("Index", collection, id, err)
	}

	err = os.Rename(tmp, target)
	if err != nil {
		return persistence.NewDocumentError("Index", collection, id, err)
	}

	return nil
}

func (fp *Persistence) Get(_ context.Context, collection, id string) (persistence.Document, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	body, err := os.ReadFile(fp.path(collection, id))
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.Document{}, persistence.NewDocumentError("Get", collection, id, persistence.ErrDocumentNotFound)
	}

	if err != nil {
		return persistence.Document{}, persistence.NewDocumentError("Get", collection, id, err)
	}

	return persistence.Document{ID: id, Source: body}, nil
}

// Search loads every document of the collection in file name order.
func (fp *Persistence) Search(_ context.Context, collection string, query persistence.Query) ([]persistence.Document, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	files, err := fs.Glob(os.DirFS(fp.dir(collection)), "*.json")
	if err != nil {
		return nil, persistence.NewDocumentError("Search", collection, "", err)
	}

	sort.Strings(files)

	docs := make([]persistence.Document, 0, len(files))

	for _, name := range files {
		id, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}

		body, err := os.ReadFile(filepath.Join(fp.dir(collection), name))
		if err != nil {
			return nil, persistence.NewDocumentError("Search", collection, id, err)
		}

		docs = append(docs, persistence.Document{ID: id, Source: json.RawMessage(body)})
	}

	return query.Filter(docs), nil
}

func (fp *Persistence) Delete(_ context.Context, collection, id string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	err := os.Remove(fp.path(collection, id))
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.NewDocumentError("Delete", collection, id, persistence.ErrDocumentNotFound)
	}

	if err != nil {
		return persistence.NewDocumentError("Delete", collection, id, err)
	}

	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
