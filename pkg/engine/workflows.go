package engine

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dukex/conductor/pkg/events"
	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/persistence"
	"github.com/robfig/cron/v3"
)

// WorkflowUpdate is a partial update. Nil fields are left untouched; a
// non-nil Actions replaces the whole list.
type WorkflowUpdate struct {
	Name        *string                `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string                `json:"description,omitempty"`
	Trigger     *models.Trigger        `json:"trigger,omitempty"`
	Actions     []models.Action        `json:"actions,omitempty"`
	Status      *models.WorkflowStatus `json:"status,omitempty"`
	Enabled     *bool                  `json:"enabled,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Variables   map[string]any         `json:"variables,omitempty"`
}

// CreateWorkflow stores a copy of wf with a generated id (unless one is
// given), timestamps and a draft status by default.
func (e *Engine) CreateWorkflow(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, &ValidationError{Message: "workflow is required"}
	}

	created := wf.Clone()
	if created.ID == "" {
		created.ID = e.newID()
	}

	normalize(created)

	err := e.validateWorkflow(created)
	if err != nil {
		return nil, err
	}

	now := e.now()
	created.CreatedAt = now
	created.UpdatedAt = now
	created.SuccessRate = 0
	created.RunCount = 0
	created.LastRunAt = nil

	e.mu.Lock()

	if _, exists := e.workflows[created.ID]; exists {
		e.mu.Unlock()

		return nil, &WorkflowError{Op: "CreateWorkflow", WorkflowID: created.ID, Err: ErrWorkflowExists}
	}

	e.workflows[created.ID] = created

	scheduled := false
	if created.IsLive() {
		scheduled = e.activate(created)
	}

	snapshot := created.Clone()
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "Workflow created", "workflow_id", snapshot.ID, "status", snapshot.Status)

	e.persist(ctx, persistence.WorkflowsCollection, snapshot.ID, snapshot)
	e.publish(ctx, events.NewWorkflowEvent(events.WorkflowCreatedEvent, snapshot))

	if scheduled {
		e.publish(ctx, events.NewWorkflowEvent(events.WorkflowScheduledEvent, snapshot))
	}

	return snapshot, nil
}

func (e *Engine) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	wf, ok := e.workflows[id]
	if !ok {
		return nil, notFound("GetWorkflow", id)
	}

	return wf.Clone(), nil
}

// ListWorkflows returns matching workflows oldest first.
func (e *Engine) ListWorkflows(_ context.Context, filter models.WorkflowFilter) []*models.Workflow {
	e.mu.RLock()
	result := make([]*models.Workflow, 0, len(e.workflows))

	for _, wf := range e.workflows {
		if filter.Matches(wf) {
			result = append(result, wf.Clone())
		}
	}
	e.mu.RUnlock()

	sortWorkflows(result)

	return result
}

func sortWorkflows(workflows []*models.Workflow) {
	slices.SortFunc(workflows, func(a, b *models.Workflow) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})
}

// UpdateWorkflow merges update into the stored workflow. Disabling an active
// workflow pauses it and removes it from the live set; enabling a paused or
// draft workflow activates it. An explicit status wins over Enabled.
func (e *Engine) UpdateWorkflow(ctx context.Context, id string, update WorkflowUpdate) (*models.Workflow, error) {
	err := e.validate.Struct(update)
	if err != nil {
		return nil, fieldError(err)
	}

	return e.modify(ctx, "UpdateWorkflow", id, func(*models.Workflow) WorkflowUpdate {
		return update
	})
}

// modify builds the update from the current workflow and applies it under a
// single lock.
func (e *Engine) modify(
	ctx context.Context,
	op string,
	id string,
	build func(current *models.Workflow) WorkflowUpdate,
) (*models.Workflow, error) {
	e.mu.Lock()

	current, ok := e.workflows[id]
	if !ok {
		e.mu.Unlock()

		return nil, notFound(op, id)
	}

	next := current.Clone()
	apply(next, build(current))
	normalize(next)

	err := e.validateWorkflow(next)
	if err != nil {
		e.mu.Unlock()

		return nil, err
	}

	next.UpdatedAt = e.now()

	wasLive := current.IsLive()
	if wasLive {
		e.deactivate(current.ID)
	}

	e.workflows[id] = next

	scheduled := false
	if next.IsLive() {
		scheduled = e.activate(next)
	}

	snapshot := next.Clone()
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "Workflow updated", "workflow_id", id, "status", snapshot.Status, "enabled", snapshot.Enabled)

	e.persist(ctx, persistence.WorkflowsCollection, id, snapshot)
	e.publish(ctx, events.NewWorkflowEvent(events.WorkflowUpdatedEvent, snapshot))

	switch {
	case wasLive && !snapshot.IsLive():
		e.publish(ctx, events.NewWorkflowEvent(events.WorkflowUnscheduledEvent, snapshot))
	case scheduled:
		e.publish(ctx, events.NewWorkflowEvent(events.WorkflowScheduledEvent, snapshot))
	}

	return snapshot, nil
}

func apply(wf *models.Workflow, update WorkflowUpdate) {
	if update.Name != nil {
		wf.Name = *update.Name
	}

	if update.Description != nil {
		wf.Description = *update.Description
	}

	if update.Trigger != nil {
		wf.Trigger = update.Trigger.Clone()
	}

	if update.Actions != nil {
		wf.Actions = make([]models.Action, len(update.Actions))
		for i, a := range update.Actions {
			wf.Actions[i] = a.Clone()
		}
	}

	if update.Tags != nil {
		wf.Tags = slices.Clone(update.Tags)
	}

	if update.Variables != nil {
		wf.Variables = maps.Clone(update.Variables)
	}

	if update.Enabled != nil && *update.Enabled != wf.Enabled {
		wf.Enabled = *update.Enabled

		switch {
		case !wf.Enabled && wf.Status == models.WorkflowStatusActive:
			wf.Status = models.WorkflowStatusPaused
		case wf.Enabled:
			wf.Status = models.WorkflowStatusActive
		}
	}

	if update.Status != nil {
		wf.Status = *update.Status
	}
}

// ToggleWorkflow flips the enabled flag.
func (e *Engine) ToggleWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	return e.modify(ctx, "ToggleWorkflow", id, func(current *models.Workflow) WorkflowUpdate {
		enabled := !current.Enabled

		return WorkflowUpdate{Enabled: &enabled}
	})
}

// DeleteWorkflow unschedules then removes the workflow. Its executions stay
// in the ledger.
func (e *Engine) DeleteWorkflow(ctx context.Context, id string) error {
	e.mu.Lock()

	wf, ok := e.workflows[id]
	if !ok {
		e.mu.Unlock()

		return notFound("DeleteWorkflow", id)
	}

	wasLive := wf.IsLive()
	if wasLive {
		e.deactivate(id)
	}

	delete(e.workflows, id)
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", id)

	e.unpersist(ctx, persistence.WorkflowsCollection, id)

	if wasLive {
		e.publish(ctx, events.NewWorkflowEvent(events.WorkflowUnscheduledEvent, wf))
	}

	e.publish(ctx, events.NewWorkflowEvent(events.WorkflowDeletedEvent, wf))

	return nil
}

// LiveWorkflowIDs lists the live trigger set, sorted.
func (e *Engine) LiveWorkflowIDs() []string {
	e.mu.RLock()
	ids := make([]string, 0, len(e.live))

	for id := range e.live {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	slices.Sort(ids)

	return ids
}

// activate adds wf to the live set and, for schedule triggers, to the cron
// scheduler. It reports whether a cron entry was created. Callers hold e.mu.
func (e *Engine) activate(wf *models.Workflow) bool {
	e.live[wf.ID] = struct{}{}

	if wf.Trigger.Type != models.TriggerTypeSchedule || wf.Schedule == nil {
		return false
	}

	schedule, err := models.ParseCron(wf.Schedule.CronExpression)
	if err != nil {
		e.logger.Error("Cannot schedule workflow", "workflow_id", wf.ID, "error", err)

		return false
	}

	id := wf.ID
	e.entries[id] = e.scheduler.Schedule(schedule, cron.FuncJob(func() { e.fire(id) }))

	wf.Schedule.Active = true

	if err := wf.Schedule.NextAfter(e.now()); err != nil {
		e.logger.Warn("Cannot compute next run", "workflow_id", id, "error", err)
	}

	return true
}

// deactivate removes the workflow from the live set and the scheduler.
// Callers hold e.mu.
func (e *Engine) deactivate(id string) {
	delete(e.live, id)

	entry, ok := e.entries[id]
	if !ok {
		return
	}

	e.scheduler.Remove(entry)
	delete(e.entries, id)

	if wf := e.workflows[id]; wf != nil && wf.Schedule != nil {
		wf.Schedule.Active = false
		wf.Schedule.NextRunAt = nil
	}
}

// fire is the cron callback of a scheduled workflow.
func (e *Engine) fire(id string) {
	now := e.now()

	e.mu.Lock()
	if wf, ok := e.workflows[id]; ok && wf.Schedule != nil {
		wf.Schedule.LastScheduledAt = &now

		if err := wf.Schedule.NextAfter(now); err != nil {
			e.logger.Warn("Cannot compute next run", "workflow_id", id, "error", err)
		}
	}
	e.mu.Unlock()

	_, err := e.enqueue(context.Background(), id, models.TriggerTypeSchedule, map[string]any{
		"scheduled_at": now.Format(time.RFC3339),
	})
	if err != nil {
		e.logger.Error("Scheduled run not queued", "workflow_id", id, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, msg events.Message) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(context.WithoutCancel(ctx), events.Topic, msg)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "event_type", msg.Type, "error", err)
	}
}
