package memory_test

import (
	"testing"

	"github.com/dukex/conductor/pkg/persistence"
	"github.com/dukex/conductor/pkg/persistence/memory"
	"github.com/dukex/conductor/pkg/persistence/persistencetest"
	"github.com/stretchr/testify/require"
)

func TestPersistence(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.Store {
		store, err := memory.NewPersistence()
		require.NoError(t, err)

		t.Cleanup(func() { _ = store.Close(t.Context()) })

		return store
	})
}
