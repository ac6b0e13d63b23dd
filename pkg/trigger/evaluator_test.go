package trigger

import (
	"log/slog"
	"testing"

	"github.com/dukex/conductor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventWorkflow(t models.Trigger) *models.Workflow {
	t.Type = models.TriggerTypeEvent

	return &models.Workflow{ID: "wf-1", Name: "event workflow", Trigger: t}
}

func contactCreated(data map[string]any) models.Input {
	return models.Input{ID: "evt-1", Type: "contact.created", Source: "crm", Data: data}
}

func TestEvaluator_EventTypeFilter(t *testing.T) {
	e := NewEvaluator(slog.Default())
	input := contactCreated(nil)

	tests := []struct {
		pattern string
		want    bool
	}{
		{"", true},
		{"*", true},
		{"contact.created", true},
		{"contact.*", true},
		{"contact.deleted", false},
		{"campaign.*", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Match(eventWorkflow(models.Trigger{Event: tt.pattern}), input))
		})
	}
}

func TestEvaluator_Operators(t *testing.T) {
	e := NewEvaluator(slog.Default())
	input := contactCreated(map[string]any{
		"email":  "ana@example.com",
		"score":  float64(72),
		"tags":   []any{"vip", "newsletter"},
		"plan":   "pro",
		"nested": map[string]any{"country": "BR", "items": []any{map[string]any{"sku": "A1"}}},
	})

	tests := []struct {
		name string
		cond models.Condition
		want bool
	}{
		{"eq string", models.Condition{Field: "plan", Operator: models.OperatorEq, Value: "pro"}, true},
		{"eq number across types", models.Condition{Field: "score", Operator: models.OperatorEq, Value: 72}, true},
		{"ne", models.Condition{Field: "plan", Operator: models.OperatorNe, Value: "free"}, true},
		{"gt", models.Condition{Field: "score", Operator: models.OperatorGt, Value: 50}, true},
		{"gte equal", models.Condition{Field: "score", Operator: models.OperatorGte, Value: "72"}, true},
		{"lt", models.Condition{Field: "score", Operator: models.OperatorLt, Value: 50}, false},
		{"lte", models.Condition{Field: "score", Operator: models.OperatorLte, Value: 72.5}, true},
		{"contains substring", models.Condition{Field: "email", Operator: models.OperatorContains, Value: "@example"}, true},
		{"contains element", models.Condition{Field: "tags", Operator: models.OperatorContains, Value: "vip"}, true},
		{"not_contains", models.Condition{Field: "tags", Operator: models.OperatorNotContains, Value: "churned"}, true},
		{"in", models.Condition{Field: "plan", Operator: models.OperatorIn, Value: []any{"pro", "enterprise"}}, true},
		{"not_in", models.Condition{Field: "plan", Operator: models.OperatorNotIn, Value: []string{"pro"}}, false},
		{"exists", models.Condition{Field: "nested.country", Operator: models.OperatorExists}, true},
		{"not_exists", models.Condition{Field: "nested.city", Operator: models.OperatorNotExists}, true},
		{"starts_with", models.Condition{Field: "email", Operator: models.OperatorStartsWith, Value: "ana"}, true},
		{"ends_with", models.Condition{Field: "email", Operator: models.OperatorEndsWith, Value: ".org"}, false},
		{"matches", models.Condition{Field: "email", Operator: models.OperatorMatches, Value: `^[a-z]+@example\.com$`}, true},
		{"slice index", models.Condition{Field: "nested.items.0.sku", Operator: models.OperatorEq, Value: "A1"}, true},
		{"prefixed input path", models.Condition{Field: "input.plan", Operator: models.OperatorEq, Value: "pro"}, true},
		{"event metadata", models.Condition{Field: "event_source", Operator: models.OperatorEq, Value: "crm"}, true},
		{"missing field eq", models.Condition{Field: "missing", Operator: models.OperatorEq, Value: "x"}, false},
		{"missing field ne", models.Condition{Field: "missing", Operator: models.OperatorNe, Value: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := eventWorkflow(models.Trigger{Conditions: []models.Condition{tt.cond}})

			ok, err := e.Evaluate(wf, input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestEvaluator_MatchModes(t *testing.T) {
	e := NewEvaluator(slog.Default())
	input := contactCreated(map[string]any{"plan": "free", "score": 90})

	conditions := []models.Condition{
		{Field: "plan", Operator: models.OperatorEq, Value: "pro"},
		{Field: "score", Operator: models.OperatorGt, Value: 80},
	}

	all := eventWorkflow(models.Trigger{Conditions: conditions})
	assert.False(t, e.Match(all, input))

	anyOf := eventWorkflow(models.Trigger{Conditions: conditions, Match: models.MatchAny})
	assert.True(t, e.Match(anyOf, input))
}

func TestEvaluator_Context(t *testing.T) {
	e := NewEvaluator(slog.Default())
	input := contactCreated(map[string]any{})
	input.Context = map[string]any{"tenant": "acme"}

	wf := eventWorkflow(models.Trigger{Conditions: []models.Condition{
		{Field: "context.tenant", Operator: models.OperatorEq, Value: "acme"},
	}})

	assert.True(t, e.Match(wf, input))
}

func TestEvaluator_Expression(t *testing.T) {
	e := NewEvaluator(slog.Default())
	input := contactCreated(map[string]any{"amount": 150.0, "currency": "USD"})

	ok, err := e.Evaluate(eventWorkflow(models.Trigger{Expression: `amount > 100 and currency = "USD"`}), input)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate(eventWorkflow(models.Trigger{Expression: `amount > 1000`}), input)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.Evaluate(eventWorkflow(models.Trigger{Expression: `amount`}), input)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpressionResult)
}

func TestEvaluator_ErrorsAreContained(t *testing.T) {
	e := NewEvaluator(slog.Default())
	input := contactCreated(map[string]any{"plan": "pro"})

	wf := eventWorkflow(models.Trigger{Conditions: []models.Condition{
		{Field: "plan", Operator: models.OperatorGt, Value: map[string]any{"x": 1}},
	}})

	_, err := e.Evaluate(wf, input)
	require.Error(t, err)
	assert.True(t, IsEvaluationError(err))
	assert.ErrorIs(t, err, ErrNotComparable)

	var evalErr *TriggerEvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "wf-1", evalErr.WorkflowID)
	assert.Equal(t, "plan", evalErr.Field)

	assert.False(t, e.Match(wf, input))
}

func TestEvaluator_TriggerTypes(t *testing.T) {
	e := NewEvaluator(slog.Default())
	input := contactCreated(nil)

	manual := &models.Workflow{ID: "m", Trigger: models.Trigger{Type: models.TriggerTypeManual}}
	assert.False(t, e.Match(manual, input))

	schedule := &models.Workflow{ID: "s", Trigger: models.Trigger{Type: models.TriggerTypeSchedule, Cron: "* * * * *"}}
	assert.False(t, e.Match(schedule, input))

	webhook := &models.Workflow{ID: "w", Trigger: models.Trigger{Type: models.TriggerTypeWebhook, Event: "contact.created"}}
	assert.False(t, e.Match(webhook, input))

	input.Source = models.InputSourceWebhook
	assert.True(t, e.Match(webhook, input))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		trigger models.Trigger
		wantErr bool
	}{
		{"manual", models.Trigger{Type: models.TriggerTypeManual}, false},
		{"unknown type", models.Trigger{Type: "carrier-pigeon"}, true},
		{"bad match", models.Trigger{Type: models.TriggerTypeEvent, Match: "most"}, true},
		{"bad operator", models.Trigger{Type: models.TriggerTypeEvent, Conditions: []models.Condition{{Field: "a", Operator: "like"}}}, true},
		{"missing field", models.Trigger{Type: models.TriggerTypeEvent, Conditions: []models.Condition{{Operator: models.OperatorEq}}}, true},
		{"bad regex", models.Trigger{Type: models.TriggerTypeEvent, Conditions: []models.Condition{{Field: "a", Operator: models.OperatorMatches, Value: "("}}}, true},
		{"bad expression", models.Trigger{Type: models.TriggerTypeEvent, Expression: "amount >"}, true},
		{"schedule without cron", models.Trigger{Type: models.TriggerTypeSchedule}, true},
		{"schedule bad cron", models.Trigger{Type: models.TriggerTypeSchedule, Cron: "every day"}, true},
		{"schedule", models.Trigger{Type: models.TriggerTypeSchedule, Cron: "0 9 * * 1-5"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.trigger)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTrigger)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": []any{"x", "y"}}}

	v, ok := Resolve(data, "a.b.1")
	assert.True(t, ok)
	assert.Equal(t, "y", v)

	_, ok = Resolve(data, "a.b.5")
	assert.False(t, ok)

	_, ok = Resolve(data, "a.c")
	assert.False(t, ok)
}
