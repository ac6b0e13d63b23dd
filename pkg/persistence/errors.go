package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound indicates no document exists for the collection and id.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrUnsupportedScheme indicates a database URL no store understands.
	ErrUnsupportedScheme = errors.New("unsupported database url scheme")
)

// DocumentError wraps store errors with the operation and target document.
type DocumentError struct {
	Op         string // Operation being performed (e.g., "Get", "Index", "Delete")
	Collection string
	ID         string
	Err        error
}

func (e *DocumentError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s operation failed for collection %s: %v", e.Op, e.Collection, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// NewDocumentError creates a document error with context.
func NewDocumentError(op, collection, id string, err error) *DocumentError {
	return &DocumentError{
		Op:         op,
		Collection: collection,
		ID:         id,
		Err:        err,
	}
}

// IsDocumentNotFound checks if an error indicates a missing document.
func IsDocumentNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}
