package delay

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/conductor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAction(t *testing.T) {
	tests := []struct {
		name     string
		duration any
		want     time.Duration
		wantErr  bool
	}{
		{name: "string", duration: "250ms", want: 250 * time.Millisecond},
		{name: "json number", duration: 1500.0, want: 1500 * time.Millisecond},
		{name: "int", duration: 20, want: 20 * time.Millisecond},
		{name: "garbage", duration: "soon", wantErr: true},
		{name: "negative", duration: "-1s", wantErr: true},
		{name: "too long", duration: "48h", wantErr: true},
		{name: "missing", duration: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := NewAction(map[string]any{"duration": tt.duration})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDuration)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, action.Duration)
		})
	}
}

func TestAction_Execute(t *testing.T) {
	action := &Action{Duration: 10 * time.Millisecond}

	out, err := action.Execute(t.Context(), models.ExecutionContext{}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, int64(10), out["waited_ms"])

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Millisecond)
	defer cancel()

	_, err = (&Action{Duration: time.Minute}).Execute(ctx, models.ExecutionContext{}, slog.Default())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
