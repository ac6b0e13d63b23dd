// Package persistencetest holds the behaviour every persistence.Store must share.
package persistencetest

import (
	"testing"

	"github.com/dukex/conductor/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
}

// Run exercises a fresh store returned by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) persistence.Store) {
	t.Helper()

	t.Run("index and get", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.Index(ctx, "executions", "e1", record{ID: "e1", WorkflowID: "wf-1", Status: "running"}))

		doc, err := store.Get(ctx, "executions", "e1")
		require.NoError(t, err)
		assert.Equal(t, "e1", doc.ID)

		var got record
		require.NoError(t, doc.Decode(&got))
		assert.Equal(t, "running", got.Status)
	})

	t.Run("index upserts", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.Index(ctx, "executions", "e1", record{ID: "e1", Status: "running"}))
		require.NoError(t, store.Index(ctx, "executions", "e1", record{ID: "e1", Status: "completed", Attempts: 2}))

		doc, err := store.Get(ctx, "executions", "e1")
		require.NoError(t, err)

		var got record
		require.NoError(t, doc.Decode(&got))
		assert.Equal(t, "completed", got.Status)
		assert.Equal(t, 2, got.Attempts)

		all, err := store.Search(ctx, "executions", persistence.Query{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("missing document", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Get(t.Context(), "workflows", "nope")
		assert.ErrorIs(t, err, persistence.ErrDocumentNotFound)

		err = store.Delete(t.Context(), "workflows", "nope")
		assert.ErrorIs(t, err, persistence.ErrDocumentNotFound)
	})

	t.Run("collections are isolated", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.Index(ctx, "workflows", "x", map[string]any{"id": "x"}))

		_, err := store.Get(ctx, "executions", "x")
		assert.ErrorIs(t, err, persistence.ErrDocumentNotFound)

		docs, err := store.Search(ctx, "executions", persistence.Query{})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("search", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.Index(ctx, "executions", "e1", record{ID: "e1", WorkflowID: "wf-1", Status: "completed"}))
		require.NoError(t, store.Index(ctx, "executions", "e2", record{ID: "e2", WorkflowID: "wf-1", Status: "failed"}))
		require.NoError(t, store.Index(ctx, "executions", "e3", record{ID: "e3", WorkflowID: "wf-2", Status: "completed"}))

		wf1, err := store.Search(ctx, "executions", persistence.Query{Fields: map[string]any{"workflow_id": "wf-1"}})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"e1", "e2"}, ids(wf1))

		completed, err := store.Search(ctx, "executions", persistence.Query{Fields: map[string]any{"workflow_id": "wf-1", "status": "completed"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"e1"}, ids(completed))

		limited, err := store.Search(ctx, "executions", persistence.Query{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.Index(ctx, "workflows", "wf-1", map[string]any{"id": "wf-1"}))
		require.NoError(t, store.Delete(ctx, "workflows", "wf-1"))

		_, err := store.Get(ctx, "workflows", "wf-1")
		assert.ErrorIs(t, err, persistence.ErrDocumentNotFound)
	})

	t.Run("health", func(t *testing.T) {
		store := newStore(t)

		assert.NoError(t, store.HealthCheck(t.Context()))
	})
}

func ids(docs []persistence.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}

	return out
}
