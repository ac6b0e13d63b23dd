package persistence_test

import (
	"encoding/json"
	"testing"

	"github.com/dukex/conductor/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_Matches(t *testing.T) {
	t.Parallel()

	source := json.RawMessage(`{"id":"e1","workflow_id":"wf-1","status":"completed","attempts":2}`)

	tests := []struct {
		name   string
		fields map[string]any
		want   bool
	}{
		{"empty", nil, true},
		{"single", map[string]any{"workflow_id": "wf-1"}, true},
		{"all fields", map[string]any{"workflow_id": "wf-1", "status": "completed"}, true},
		{"number across types", map[string]any{"attempts": 2}, true},
		{"mismatch", map[string]any{"status": "failed"}, false},
		{"missing field", map[string]any{"owner": "ana"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, persistence.Query{Fields: tt.fields}.Matches(source))
		})
	}
}

func TestQuery_FilterLimit(t *testing.T) {
	t.Parallel()

	docs := []persistence.Document{
		{ID: "1", Source: json.RawMessage(`{"kind":"a"}`)},
		{ID: "2", Source: json.RawMessage(`{"kind":"b"}`)},
		{ID: "3", Source: json.RawMessage(`{"kind":"a"}`)},
		{ID: "4", Source: json.RawMessage(`{"kind":"a"}`)},
	}

	result := persistence.Query{Fields: map[string]any{"kind": "a"}, Limit: 2}.Filter(docs)
	require.Len(t, result, 2)
	assert.Equal(t, "1", result[0].ID)
	assert.Equal(t, "3", result[1].ID)
}

func TestMarshal(t *testing.T) {
	t.Parallel()

	raw, err := persistence.Marshal(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	passthrough, err := persistence.Marshal(json.RawMessage(`{"b":2}`))
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(passthrough))

	_, err = persistence.Marshal(func() {})
	assert.Error(t, err)
}
