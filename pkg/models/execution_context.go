package models

// ExecutionContext is what an action sees while it runs: the execution's
// input snapshot, outputs of the actions before it and workflow variables.
type ExecutionContext struct {
	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id"`
	Input       map[string]any `json:"input"`
	Steps       map[string]any `json:"steps"`
	Variables   map[string]any `json:"variables"`
}

// Data flattens the context into the map used by templates and expressions.
func (c ExecutionContext) Data() map[string]any {
	return map[string]any{
		"input":     c.Input,
		"steps":     c.Steps,
		"variables": c.Variables,
		"vars":      c.Variables,
		"execution": map[string]any{
			"id":          c.ExecutionID,
			"workflow_id": c.WorkflowID,
		},
	}
}
