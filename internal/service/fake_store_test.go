package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/repository"
)

// fakeStore is an in-memory TaskStore that records every write.
type fakeStore struct {
	mu        sync.Mutex
	tasks     map[string]*model.Task
	assignees map[string][]string
	writes    []string
	seq       int

	failOn map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:     make(map[string]*model.Task),
		assignees: make(map[string][]string),
		failOn:    make(map[string]error),
	}
}

func (f *fakeStore) seed(task model.Task, assignees ...string) *model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task.ID == "" {
		f.seq++
		task.ID = fmt.Sprintf("seed-%d", f.seq)
	}
	t := task
	f.tasks[t.ID] = &t
	if len(assignees) > 0 {
		f.assignees[t.ID] = slices.Clone(assignees)
	}
	return &t
}

func (f *fakeStore) fail(op string) error {
	return f.failOn[op]
}

func (f *fakeStore) record(op string) {
	f.writes = append(f.writes, op)
}

func (f *fakeStore) get(id string) *model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil
	}
	c := *t
	return &c
}

func (f *fakeStore) writeLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.writes)
}

func (f *fakeStore) FindByID(_ context.Context, id string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("FindByID"); err != nil {
		return nil, err
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("find task %s: %w", id, repository.ErrNotFound)
	}
	c := *t
	return &c, nil
}

func (f *fakeStore) Create(_ context.Context, task *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Create"); err != nil {
		return err
	}
	if task.OriginTaskID != nil {
		for _, t := range f.tasks {
			if t.OriginTaskID != nil && *t.OriginTaskID == *task.OriginTaskID && t.DueDate == task.DueDate {
				return fmt.Errorf("create task: %w", repository.ErrDuplicate)
			}
		}
	}
	f.record("Create")
	f.seq++
	task.ID = fmt.Sprintf("task-%d", f.seq)
	c := *task
	f.tasks[task.ID] = &c
	return nil
}

func (f *fakeStore) CreateWithAssignees(ctx context.Context, task *model.Task, employeeIDs []string) error {
	if err := f.Create(ctx, task); err != nil {
		return err
	}
	return f.AddAssignees(ctx, task.ID, employeeIDs)
}

func (f *fakeStore) AssigneeIDs(_ context.Context, taskID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AssigneeIDs"); err != nil {
		return nil, err
	}
	return slices.Clone(f.assignees[taskID]), nil
}

func (f *fakeStore) AddAssignees(_ context.Context, taskID string, employeeIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(employeeIDs) == 0 {
		return nil
	}
	if err := f.fail("AddAssignees"); err != nil {
		return err
	}
	for _, id := range employeeIDs {
		f.record("AddAssignee")
		f.assignees[taskID] = append(f.assignees[taskID], id)
	}
	return nil
}

func (f *fakeStore) FindSuccessor(_ context.Context, originID, dueDate string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("FindSuccessor"); err != nil {
		return nil, err
	}
	for _, t := range f.tasks {
		if t.OriginTaskID != nil && *t.OriginTaskID == originID && t.DueDate == dueDate {
			c := *t
			return &c, nil
		}
	}
	return nil, fmt.Errorf("find successor: %w", repository.ErrNotFound)
}

func (f *fakeStore) LinkSuccessor(_ context.Context, originID, nextID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("LinkSuccessor"); err != nil {
		return err
	}
	f.record("LinkSuccessor")
	if t, ok := f.tasks[originID]; ok {
		id := nextID
		t.NextTaskID = &id
	}
	return nil
}

func (f *fakeStore) ListUnrecreated(_ context.Context, _ time.Time, afterID string, limit int) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Task
	for _, t := range f.tasks {
		if t.Status == model.StatusCompleted && t.IsRecurring() && t.NextTaskID == nil && t.ID > afterID {
			out = append(out, *t)
		}
	}
	slices.SortFunc(out, func(a, b model.Task) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, task *model.Task, employeeIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Update")
	c := *task
	f.tasks[task.ID] = &c
	f.assignees[task.ID] = slices.Clone(employeeIDs)
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, status model.TaskStatus, proof *model.Proof) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateStatus"); err != nil {
		return err
	}
	t, ok := f.tasks[id]
	if !ok {
		return repository.ErrNotFound
	}
	f.record("UpdateStatus")
	t.Status = status
	if proof != nil {
		t.Proof = *proof
	}
	return nil
}

func (f *fakeStore) UpdateResponse(_ context.Context, id, response string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return repository.ErrNotFound
	}
	f.record("UpdateResponse")
	t.Response = response
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	f.record("Delete")
	delete(f.tasks, id)
	delete(f.assignees, id)
	return nil
}

func (f *fakeStore) List(_ context.Context, filter repository.TaskFilter) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Task
	for _, t := range f.tasks {
		if filter.OpenOnly && t.Status == model.StatusCompleted {
			continue
		}
		if filter.DueTo != "" && t.DueDate > filter.DueTo {
			continue
		}
		if filter.EmployeeID != "" {
			mine := t.IsShared || (t.AssignedTo != nil && *t.AssignedTo == filter.EmployeeID) ||
				slices.Contains(f.assignees[t.ID], filter.EmployeeID)
			if !mine {
				continue
			}
		}
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b model.Task) int {
		switch {
		case a.DueDate < b.DueDate:
			return -1
		case a.DueDate > b.DueDate:
			return 1
		}
		return 0
	})
	return out, nil
}

var errBoom = errors.New("boom")
