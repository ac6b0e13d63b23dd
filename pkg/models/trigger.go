package models

import "slices"

// TriggerType enumerates the supported trigger kinds.
type TriggerType string

const (
	TriggerTypeManual   TriggerType = "manual"
	TriggerTypeEvent    TriggerType = "event"
	TriggerTypeWebhook  TriggerType = "webhook"
	TriggerTypeSchedule TriggerType = "schedule"
)

// Valid reports whether the trigger type is supported.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerTypeManual, TriggerTypeEvent, TriggerTypeWebhook, TriggerTypeSchedule:
		return true
	default:
		return false
	}
}

// MatchMode combines a trigger's conditions.
type MatchMode string

const (
	MatchAll MatchMode = "all"
	MatchAny MatchMode = "any"
)

// Operator is a comparison used by a trigger condition.
type Operator string

const (
	OperatorEq          Operator = "eq"
	OperatorNe          Operator = "ne"
	OperatorGt          Operator = "gt"
	OperatorGte         Operator = "gte"
	OperatorLt          Operator = "lt"
	OperatorLte         Operator = "lte"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "not_contains"
	OperatorIn          Operator = "in"
	OperatorNotIn       Operator = "not_in"
	OperatorExists      Operator = "exists"
	OperatorNotExists   Operator = "not_exists"
	OperatorStartsWith  Operator = "starts_with"
	OperatorEndsWith    Operator = "ends_with"
	OperatorMatches     Operator = "matches"
)

// Operators lists every supported comparison.
var Operators = []Operator{
	OperatorEq, OperatorNe, OperatorGt, OperatorGte, OperatorLt, OperatorLte,
	OperatorContains, OperatorNotContains, OperatorIn, OperatorNotIn,
	OperatorExists, OperatorNotExists, OperatorStartsWith, OperatorEndsWith,
	OperatorMatches,
}

// Valid reports whether the operator is supported.
func (o Operator) Valid() bool {
	return slices.Contains(Operators, o)
}

// Condition compares the value found at Field with Value.
type Condition struct {
	Field    string   `json:"field"           yaml:"field"    validate:"required"`
	Operator Operator `json:"operator"        yaml:"operator" validate:"required"`
	Value    any      `json:"value,omitempty" yaml:"value"`
}

// Trigger decides when a workflow fires.
type Trigger struct {
	Type       TriggerType `json:"type"                 yaml:"type"`
	Event      string      `json:"event,omitempty"      yaml:"event"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions" validate:"dive"`
	Match      MatchMode   `json:"match,omitempty"      yaml:"match"`
	Expression string      `json:"expression,omitempty" yaml:"expression"`
	Cron       string      `json:"cron,omitempty"       yaml:"cron"`
}

// Clone copies the trigger and its conditions.
func (t Trigger) Clone() Trigger {
	t.Conditions = slices.Clone(t.Conditions)

	return t
}
