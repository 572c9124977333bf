package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"taskboard/internal/model"
)

// TaskFilter narrows task listings. Zero fields do not filter.
type TaskFilter struct {
	Status     model.TaskStatus
	EmployeeID string // direct assignment, join membership or shared
	GroupID    *uint
	DueFrom    string
	DueTo      string
	OpenOnly   bool
}

// TaskRepository handles CRUD for tasks and the task-assignee join.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", translate(err))
	}
	return nil
}

// CreateWithAssignees inserts a task and its assignee rows atomically.
func (r *TaskRepository) CreateWithAssignees(ctx context.Context, task *model.Task, employeeIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("create task: %w", translate(err))
		}
		if err := insertAssignees(tx, task.ID, employeeIDs); err != nil {
			return err
		}
		task.AssigneeIDs = employeeIDs
		return nil
	})
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, fmt.Errorf("find task %s: %w", id, translate(err))
	}
	return &task, nil
}

// Update saves the editable fields of a task and replaces its assignees.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task, employeeIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(task).Error; err != nil {
			return fmt.Errorf("update task: %w", translate(err))
		}
		if err := tx.Where("task_id = ?", task.ID).Delete(&model.TaskAssignee{}).Error; err != nil {
			return fmt.Errorf("clear assignees: %w", err)
		}
		if err := insertAssignees(tx, task.ID, employeeIDs); err != nil {
			return err
		}
		task.AssigneeIDs = employeeIDs
		return nil
	})
}

// UpdateStatus writes a status change. Completing records proof; leaving the
// completed state clears the completion time.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status model.TaskStatus, proof *model.Proof) error {
	updates := map[string]interface{}{"status": status}
	switch {
	case status == model.StatusCompleted && proof != nil:
		updates["proof_photo_url"] = proof.PhotoURL
		updates["proof_audio_url"] = proof.AudioURL
		updates["proof_comment"] = proof.Comment
		updates["proof_completed_at"] = proof.CompletedAt
	case status != model.StatusCompleted:
		updates["proof_completed_at"] = nil
	}
	res := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update task status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update task status %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *TaskRepository) UpdateResponse(ctx context.Context, id, response string) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", id).Update("response", response)
	if res.Error != nil {
		return fmt.Errorf("update task response: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update task response %s: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a task together with its assignee rows.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&model.TaskAssignee{}).Error; err != nil {
			return fmt.Errorf("delete assignees: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&model.Task{})
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.OpenOnly {
		q = q.Where("status <> ?", model.StatusCompleted)
	}
	if filter.EmployeeID != "" {
		q = q.Where("(assigned_to = ? OR is_shared = ? OR id IN (?))",
			filter.EmployeeID, true,
			r.db.Model(&model.TaskAssignee{}).Select("task_id").Where("employee_id = ?", filter.EmployeeID))
	}
	if filter.GroupID != nil {
		q = q.Where("group_id = ?", *filter.GroupID)
	}
	if filter.DueFrom != "" {
		q = q.Where("due_date >= ?", filter.DueFrom)
	}
	if filter.DueTo != "" {
		q = q.Where("due_date <= ?", filter.DueTo)
	}

	var tasks []model.Task
	if err := q.Order("due_date ASC, created_at ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if err := r.attachAssignees(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// AssigneeIDs returns the employees joined to a task.
func (r *TaskRepository) AssigneeIDs(ctx context.Context, taskID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.TaskAssignee{}).
		Where("task_id = ?", taskID).Order("id ASC").Pluck("employee_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	return ids, nil
}

func (r *TaskRepository) AddAssignees(ctx context.Context, taskID string, employeeIDs []string) error {
	return insertAssignees(r.db.WithContext(ctx), taskID, employeeIDs)
}

// FindSuccessor returns the instance recreated from originID for dueDate.
func (r *TaskRepository) FindSuccessor(ctx context.Context, originID, dueDate string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Where("origin_task_id = ? AND due_date = ?", originID, dueDate).First(&task).Error
	if err != nil {
		return nil, fmt.Errorf("find successor of %s: %w", originID, translate(err))
	}
	return &task, nil
}

// LinkSuccessor records that originID has been recreated as nextID.
func (r *TaskRepository) LinkSuccessor(ctx context.Context, originID, nextID string) error {
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", originID).
		Update("next_task_id", nextID).Error; err != nil {
		return fmt.Errorf("link successor: %w", err)
	}
	return nil
}

// ListUnrecreated returns completed recurring tasks without a recorded
// successor, ordered by id. Pass the last id of the previous page as afterID
// to continue past rows that could not be repaired.
func (r *TaskRepository) ListUnrecreated(ctx context.Context, completedSince time.Time, afterID string, limit int) ([]model.Task, error) {
	var tasks []model.Task
	q := r.db.WithContext(ctx).
		Where("status = ? AND recurrence_type NOT IN ? AND next_task_id IS NULL", model.StatusCompleted, []string{"", "none"}).
		Where("updated_at >= ?", completedSince)
	if afterID != "" {
		q = q.Where("id > ?", afterID)
	}
	q = q.Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list unrecreated tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) attachAssignees(ctx context.Context, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]string, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}
	var rows []model.TaskAssignee
	if err := r.db.WithContext(ctx).Where("task_id IN ?", ids).Order("id ASC").Find(&rows).Error; err != nil {
		return fmt.Errorf("list assignees: %w", err)
	}
	byTask := make(map[string][]string, len(rows))
	for _, row := range rows {
		byTask[row.TaskID] = append(byTask[row.TaskID], row.EmployeeID)
	}
	for i := range tasks {
		tasks[i].AssigneeIDs = byTask[tasks[i].ID]
	}
	return nil
}

func insertAssignees(db *gorm.DB, taskID string, employeeIDs []string) error {
	if len(employeeIDs) == 0 {
		return nil
	}
	rows := make([]model.TaskAssignee, 0, len(employeeIDs))
	for _, id := range employeeIDs {
		rows = append(rows, model.TaskAssignee{TaskID: taskID, EmployeeID: id})
	}
	if err := db.Create(&rows).Error; err != nil {
		return fmt.Errorf("create assignees: %w", translate(err))
	}
	return nil
}
