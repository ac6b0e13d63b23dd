package models

import "time"

// ModuleState is a position in the module lifecycle state machine.
type ModuleState string

const (
	ModuleStateStopped      ModuleState = "stopped"
	ModuleStateInitializing ModuleState = "initializing"
	ModuleStateRunning      ModuleState = "running"
	ModuleStateStopping     ModuleState = "stopping"
	ModuleStateError        ModuleState = "error"
)

// ModuleHealth is a read-only snapshot of one module.
type ModuleHealth struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Dependencies []string    `json:"dependencies"`
	State        ModuleState `json:"state"`
	Healthy      bool        `json:"healthy"`
	Message      string      `json:"message,omitempty"`
	LastError    string      `json:"last_error,omitempty"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CheckedAt    *time.Time  `json:"checked_at,omitempty"`
}
