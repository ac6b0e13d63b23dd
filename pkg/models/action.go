package models

import "time"

// ActionType is the closed set of action kinds the executor can dispatch.
type ActionType string

const (
	ActionTypeHTTP      ActionType = "http"
	ActionTypeScript    ActionType = "script"
	ActionTypeCondition ActionType = "condition"
	ActionTypeTransform ActionType = "transform"
	ActionTypeLog       ActionType = "log"
	ActionTypeDelay     ActionType = "delay"
)

const DefaultActionTimeout = 30 * time.Second

// RetryPolicy bounds how often a failing action is attempted. Without a
// Multiplier the pause between attempts is always Delay.
type RetryPolicy struct {
	MaxAttempts int      `json:"max_attempts"         yaml:"max_attempts" validate:"min=1,max=20"`
	Delay       Duration `json:"delay"                yaml:"delay"`
	Multiplier  float64  `json:"multiplier,omitempty" yaml:"multiplier"   validate:"omitempty,gte=1,lte=10"`
	MaxDelay    Duration `json:"max_delay,omitempty"  yaml:"max_delay"`
	Jitter      bool     `json:"jitter,omitempty"     yaml:"jitter"`
}

// Action is one ordered step of a workflow.
type Action struct {
	ID         string         `json:"id"                   yaml:"id"`
	Type       ActionType     `json:"type"                 yaml:"type"       validate:"required"`
	Name       string         `json:"name,omitempty"       yaml:"name"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters"`
	Retry      *RetryPolicy   `json:"retry,omitempty"      yaml:"retry"`
	Timeout    Duration       `json:"timeout,omitempty"    yaml:"timeout"`
}

// Attempts returns the number of tries allowed for the action.
func (a Action) Attempts() int {
	if a.Retry == nil || a.Retry.MaxAttempts < 1 {
		return 1
	}

	return a.Retry.MaxAttempts
}

// RetryDelay returns the pause before the first retry.
func (a Action) RetryDelay() time.Duration {
	if a.Retry == nil {
		return 0
	}

	return a.Retry.Delay.Duration()
}

// EffectiveTimeout returns the per-attempt deadline.
func (a Action) EffectiveTimeout() time.Duration {
	if a.Timeout <= 0 {
		return DefaultActionTimeout
	}

	return a.Timeout.Duration()
}

// Clone copies the action so the parameter map is not shared.
func (a Action) Clone() Action {
	a.Parameters = cloneMap(a.Parameters)

	if a.Retry != nil {
		r := *a.Retry
		a.Retry = &r
	}

	return a
}
