package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/recurrence"
	"taskboard/internal/repository"
)

// TaskInput represents data required to create or edit a task.
type TaskInput struct {
	Title          string
	Description    string
	AssignedTo     *string
	AssigneeIDs    []string
	IsShared       bool
	GroupID        *uint
	Type           model.TaskType
	DueDate        string
	RecurrenceType string
	RecurrenceDay  *int
	RecurrenceDays []int
}

// StatusChange is the outcome of a status update. RecurrenceErr is set when
// the task was completed but its next instance could not be created; the
// completion itself stands.
type StatusChange struct {
	Task          *model.Task
	Next          *model.Task
	RecurrenceErr error
}

// TaskStore is the task persistence used by TaskService.
type TaskStore interface {
	RecurrenceStore
	CreateWithAssignees(ctx context.Context, task *model.Task, employeeIDs []string) error
	Update(ctx context.Context, task *model.Task, employeeIDs []string) error
	UpdateStatus(ctx context.Context, id string, status model.TaskStatus, proof *model.Proof) error
	UpdateResponse(ctx context.Context, id, response string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter repository.TaskFilter) ([]model.Task, error)
}

type employeeLookup interface {
	FindByIDs(ctx context.Context, ids []string) ([]model.Employee, error)
}

// TaskService wraps task-related business logic.
type TaskService struct {
	store     TaskStore
	employees employeeLookup
	recreator *Recreator
	logger    *slog.Logger
}

func NewTaskService(store TaskStore, employees employeeLookup, recreator *Recreator, logger *slog.Logger) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{store: store, employees: employees, recreator: recreator, logger: logger}
}

func (s *TaskService) CreateTask(ctx context.Context, p Principal, input TaskInput) (*model.Task, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}

	task := model.Task{Status: model.StatusPending, CreatorName: p.Name}
	if p.EmployeeID != "" {
		creator := p.EmployeeID
		task.CreatedBy = &creator
	}
	assignees, err := s.apply(ctx, &task, input)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateWithAssignees(ctx, &task, assignees); err != nil {
		return nil, err
	}
	s.logger.Info("task created", "task_id", task.ID, "due_date", task.DueDate, "recurrence", task.RecurrenceType)
	return &task, nil
}

// UpdateTask edits a task. Setting the recurrence to none ends the lineage
// after this instance.
func (s *TaskService) UpdateTask(ctx context.Context, p Principal, id string, input TaskInput) (*model.Task, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	task, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	assignees, err := s.apply(ctx, task, input)
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, task, assignees); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task completely, ending its lineage.
func (s *TaskService) DeleteTask(ctx context.Context, p Principal, id string) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	return s.store.Delete(ctx, id)
}

func (s *TaskService) GetTask(ctx context.Context, p Principal, id string) (*model.Task, error) {
	task, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, task, false); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks lists tasks visible to p. Employees only ever see their own,
// shared and jointly assigned tasks.
func (s *TaskService) ListTasks(ctx context.Context, p Principal, filter repository.TaskFilter) ([]model.Task, error) {
	if p.Role == RoleEmployee {
		filter.EmployeeID = p.EmployeeID
	}
	return s.store.List(ctx, filter)
}

// Upcoming returns unfinished tasks due up to days after today, overdue ones
// included.
func (s *TaskService) Upcoming(ctx context.Context, p Principal, today time.Time, days int) ([]model.Task, error) {
	if days < 0 {
		return nil, invalid("look-ahead days must not be negative")
	}
	until := recurrence.FormatDate(recurrence.AddDays(recurrence.DateOf(today), days))
	return s.ListTasks(ctx, p, repository.TaskFilter{OpenOnly: true, DueTo: until})
}

// ChangeStatus moves a task to status. Completing a recurring task creates
// its next instance; failing to do so is reported in the result and logged
// but never rolls the completion back.
func (s *TaskService) ChangeStatus(ctx context.Context, p Principal, id string, status model.TaskStatus, proof *model.Proof, at time.Time) (*StatusChange, error) {
	if !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	task, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, task, true); err != nil {
		return nil, err
	}

	var evidence *model.Proof
	if status == model.StatusCompleted {
		evidence = &model.Proof{}
		if proof != nil {
			*evidence = *proof
		}
		if evidence.CompletedAt == nil {
			evidence.CompletedAt = &at
		}
	}
	if err := s.store.UpdateStatus(ctx, task.ID, status, evidence); err != nil {
		return nil, err
	}

	previous := task.Status
	task.Status = status
	if evidence != nil {
		task.Proof = *evidence
	} else {
		task.Proof.CompletedAt = nil
	}
	change := &StatusChange{Task: task}

	if status != model.StatusCompleted || previous == model.StatusCompleted || !task.IsRecurring() {
		return change, nil
	}

	next, err := s.recreator.Recreate(ctx, task.ID)
	if err != nil {
		s.logger.Error("recurring chain broken",
			"task_id", task.ID,
			"due_date", task.DueDate,
			"recurrence", task.RecurrenceType,
			"error", err,
		)
		change.RecurrenceErr = err
		return change, nil
	}
	if next != nil {
		task.NextTaskID = &next.ID
	}
	change.Next = next
	return change, nil
}

// Respond stores an employee's free-text reply on a task.
func (s *TaskService) Respond(ctx context.Context, p Principal, id, response string) (*model.Task, error) {
	task, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, task, true); err != nil {
		return nil, err
	}
	response = strings.TrimSpace(response)
	if err := s.store.UpdateResponse(ctx, task.ID, response); err != nil {
		return nil, err
	}
	task.Response = response
	return task, nil
}

// authorize loads the assignee set of task and checks that p may see it, or
// change it when write is set.
func (s *TaskService) authorize(ctx context.Context, p Principal, task *model.Task, write bool) error {
	ids, err := s.store.AssigneeIDs(ctx, task.ID)
	if err != nil {
		return err
	}
	task.AssigneeIDs = ids

	switch p.Role {
	case RoleAdmin:
		return nil
	case RoleKiosk:
		if write {
			return ErrForbidden
		}
		return nil
	case RoleEmployee:
		if task.IsShared || (task.AssignedTo != nil && *task.AssignedTo == p.EmployeeID) || slices.Contains(ids, p.EmployeeID) {
			return nil
		}
	}
	return ErrForbidden
}

// apply validates input onto task and returns the normalized assignee set.
func (s *TaskService) apply(ctx context.Context, task *model.Task, input TaskInput) ([]string, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" && description == "" {
		return nil, invalid("title or description is required")
	}

	due, err := recurrence.ParseDate(input.DueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	rule, err := recurrence.FromFields(input.RecurrenceType, input.RecurrenceDay, input.RecurrenceDays)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	taskType := input.Type
	if taskType == "" {
		taskType = model.TypeRoutine
	}
	if !taskType.Valid() {
		return nil, invalid("unknown task type %q", input.Type)
	}

	var assignedTo *string
	if input.AssignedTo != nil && strings.TrimSpace(*input.AssignedTo) != "" {
		v := strings.TrimSpace(*input.AssignedTo)
		assignedTo = &v
	}
	assignees := uniqueIDs(input.AssigneeIDs)
	switch {
	case input.IsShared && (assignedTo != nil || len(assignees) > 0):
		return nil, invalid("a shared task cannot have specific assignees")
	case assignedTo != nil && len(assignees) > 0:
		return nil, invalid("use either a single assignee or a list of assignees")
	case len(assignees) == 1:
		assignedTo, assignees = &assignees[0], nil
	}
	if err := s.checkEmployees(ctx, assignedTo, assignees); err != nil {
		return nil, err
	}

	task.Title = title
	task.Description = description
	task.AssignedTo = assignedTo
	task.IsShared = input.IsShared
	task.GroupID = input.GroupID
	task.Type = taskType
	task.DueDate = recurrence.FormatDate(due)
	task.RecurrenceType = string(rule.Type())
	task.RecurrenceDay = rule.Day()
	task.RecurrenceDays = rule.Days()
	return assignees, nil
}

func (s *TaskService) checkEmployees(ctx context.Context, assignedTo *string, assignees []string) error {
	ids := slices.Clone(assignees)
	if assignedTo != nil {
		ids = append(ids, *assignedTo)
	}
	if len(ids) == 0 || s.employees == nil {
		return nil
	}
	found, err := s.employees.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !slices.ContainsFunc(found, func(e model.Employee) bool { return e.ID == id }) {
			return invalid("unknown employee %q", id)
		}
	}
	return nil
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

// uniqueIDs trims ids and drops blanks and repeats, keeping order.
func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
