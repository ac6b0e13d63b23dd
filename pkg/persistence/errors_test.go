package persistence_test

import (
	"errors"
	"testing"

	"github.com/dukex/conductor/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestDocumentErrors(t *testing.T) {
	t.Parallel()

	t.Run("not found unwraps", func(t *testing.T) {
		err := persistence.NewDocumentError("Get", "workflows", "wf-123", persistence.ErrDocumentNotFound)

		assert.True(t, persistence.IsDocumentNotFound(err))
		assert.True(t, errors.Is(err, persistence.ErrDocumentNotFound))
		assert.False(t, persistence.IsDocumentNotFound(errors.New("boom")))
	})

	t.Run("error contains context", func(t *testing.T) {
		err := persistence.NewDocumentError("Delete", "executions", "exec-1", persistence.ErrDocumentNotFound)

		assert.Contains(t, err.Error(), "Delete")
		assert.Contains(t, err.Error(), "executions/exec-1")
		assert.Contains(t, err.Error(), "document not found")
	})

	t.Run("collection level error", func(t *testing.T) {
		err := persistence.NewDocumentError("Search", "workflows", "", errors.New("closed"))

		assert.Equal(t, "Search operation failed for collection workflows: closed", err.Error())
	})
}
