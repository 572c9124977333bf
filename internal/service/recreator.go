package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/recurrence"
	"taskboard/internal/repository"
)

// RecurrenceStore is the part of the task store the recreator needs.
type RecurrenceStore interface {
	FindByID(ctx context.Context, id string) (*model.Task, error)
	Create(ctx context.Context, task *model.Task) error
	AssigneeIDs(ctx context.Context, taskID string) ([]string, error)
	AddAssignees(ctx context.Context, taskID string, employeeIDs []string) error
	FindSuccessor(ctx context.Context, originID, dueDate string) (*model.Task, error)
	LinkSuccessor(ctx context.Context, originID, nextID string) error
	ListUnrecreated(ctx context.Context, completedSince time.Time, afterID string, limit int) ([]model.Task, error)
}

// Listener is notified after a recurring task got its next instance.
type Listener interface {
	TaskRecreated(ctx context.Context, original, next *model.Task)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, original, next *model.Task)

func (f ListenerFunc) TaskRecreated(ctx context.Context, original, next *model.Task) {
	f(ctx, original, next)
}

const sweepBatch = 100

// Recreator spawns the next instance of a recurring task once it is completed.
// Instances are keyed by (origin task, due date) so repeating a recreation
// never produces a second instance.
type Recreator struct {
	store     RecurrenceStore
	logger    *slog.Logger
	listeners []Listener
}

func NewRecreator(store RecurrenceStore, logger *slog.Logger) *Recreator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recreator{store: store, logger: logger}
}

// AddListener registers an observer. Not safe to call concurrently with Recreate.
func (r *Recreator) AddListener(l Listener) {
	r.listeners = append(r.listeners, l)
}

// Recreate creates the next instance of the task taskID, reading the
// authoritative record from the store. It returns nil, nil when the task does
// not recur. Errors from the store are *StoreError; rule and date problems are
// the recurrence package sentinels.
func (r *Recreator) Recreate(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := r.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, &StoreError{Op: "fetch task", Err: err}
	}

	nextDate, ok, err := recurrence.NextDate(task.DueDate, task.RecurrenceType, task.RecurrenceDay, task.RecurrenceDays)
	if err != nil {
		return nil, fmt.Errorf("next date of task %s: %w", task.ID, err)
	}
	if !ok {
		return nil, nil
	}

	existing, err := r.store.FindSuccessor(ctx, task.ID, nextDate)
	switch {
	case err == nil:
		return r.finish(ctx, task, existing, true)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, &StoreError{Op: "find successor", Err: err}
	}

	next := task.Successor(nextDate)
	if err := r.store.Create(ctx, next); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, &StoreError{Op: "insert task", Err: err}
		}
		// A concurrent completion won the insert.
		existing, ferr := r.store.FindSuccessor(ctx, task.ID, nextDate)
		if ferr != nil {
			return nil, &StoreError{Op: "find successor", Err: ferr}
		}
		return r.finish(ctx, task, existing, true)
	}

	return r.finish(ctx, task, next, false)
}

// finish copies the assignee set and links the lineage. Already linked
// successors are returned untouched.
func (r *Recreator) finish(ctx context.Context, original, next *model.Task, existed bool) (*model.Task, error) {
	if existed && original.NextTaskID != nil && *original.NextTaskID == next.ID {
		return next, nil
	}

	assignees, err := r.copyAssignees(ctx, original.ID, next.ID, existed)
	if err != nil {
		return nil, err
	}
	next.AssigneeIDs = assignees

	if err := r.store.LinkSuccessor(ctx, original.ID, next.ID); err != nil {
		return nil, &StoreError{Op: "link successor", Err: err}
	}
	nextID := next.ID
	original.NextTaskID = &nextID

	r.logger.Info("recurring task recreated",
		"task_id", original.ID,
		"next_task_id", next.ID,
		"due_date", original.DueDate,
		"next_due_date", next.DueDate,
		"recurrence", original.RecurrenceType,
		"assignees", len(assignees),
	)
	for _, l := range r.listeners {
		l.TaskRecreated(ctx, original, next)
	}
	return next, nil
}

func (r *Recreator) copyAssignees(ctx context.Context, fromID, toID string, existed bool) ([]string, error) {
	source, err := r.store.AssigneeIDs(ctx, fromID)
	if err != nil {
		return nil, &StoreError{Op: "fetch assignees", Err: err}
	}
	if len(source) == 0 {
		return nil, nil
	}

	missing := source
	if existed {
		present, err := r.store.AssigneeIDs(ctx, toID)
		if err != nil {
			return nil, &StoreError{Op: "fetch assignees", Err: err}
		}
		missing = slices.DeleteFunc(slices.Clone(source), func(id string) bool {
			return slices.Contains(present, id)
		})
	}
	if len(missing) > 0 {
		if err := r.store.AddAssignees(ctx, toID, missing); err != nil {
			return nil, &StoreError{Op: "insert assignees", Err: err}
		}
	}
	return source, nil
}

// Sweep retries recreation for recurring tasks completed since the given time
// that never got a successor, e.g. after a crash between the two writes. It
// pages through every candidate, so tasks that keep failing do not hide newer
// ones. It returns how many chains were repaired.
func (r *Recreator) Sweep(ctx context.Context, since time.Time) (int, error) {
	var (
		repaired int
		errs     []error
		afterID  string
	)
	for {
		tasks, err := r.store.ListUnrecreated(ctx, since, afterID, sweepBatch)
		if err != nil {
			errs = append(errs, &StoreError{Op: "list unrecreated", Err: err})
			break
		}
		for _, task := range tasks {
			if err := ctx.Err(); err != nil {
				return repaired, errors.Join(append(errs, err)...)
			}
			next, err := r.Recreate(ctx, task.ID)
			if err != nil {
				r.logger.Error("recurring chain broken",
					"task_id", task.ID,
					"due_date", task.DueDate,
					"recurrence", task.RecurrenceType,
					"error", err,
				)
				errs = append(errs, err)
				continue
			}
			if next != nil {
				repaired++
			}
		}
		if len(tasks) < sweepBatch {
			break
		}
		afterID = tasks[len(tasks)-1].ID
	}
	if repaired > 0 {
		r.logger.Info("recurrence sweep repaired chains", "count", repaired)
	}
	return repaired, errors.Join(errs...)
}
