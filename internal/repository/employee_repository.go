package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskboard/internal/model"
)

// EmployeeRepository handles CRUD for employees.
type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) Create(ctx context.Context, employee *model.Employee) error {
	if err := r.db.WithContext(ctx).Create(employee).Error; err != nil {
		return fmt.Errorf("create employee: %w", translate(err))
	}
	return nil
}

func (r *EmployeeRepository) Save(ctx context.Context, employee *model.Employee) error {
	if err := r.db.WithContext(ctx).Save(employee).Error; err != nil {
		return fmt.Errorf("save employee: %w", translate(err))
	}
	return nil
}

func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*model.Employee, error) {
	var employee model.Employee
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&employee).Error; err != nil {
		return nil, fmt.Errorf("find employee %s: %w", id, translate(err))
	}
	return &employee, nil
}

func (r *EmployeeRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.Employee, error) {
	var employee model.Employee
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&employee).Error; err != nil {
		return nil, fmt.Errorf("find employee by telegram id: %w", translate(err))
	}
	return &employee, nil
}

// FindByIDs returns the employees with the given ids; unknown ids are skipped.
func (r *EmployeeRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var employees []model.Employee
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&employees).Error; err != nil {
		return nil, fmt.Errorf("find employees: %w", err)
	}
	return employees, nil
}

func (r *EmployeeRepository) List(ctx context.Context, activeOnly bool) ([]model.Employee, error) {
	q := r.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var employees []model.Employee
	if err := q.Order("name ASC").Find(&employees).Error; err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return employees, nil
}

// SetTelegramID links a Telegram account to an employee, unlinking any
// other employee that held it.
func (r *EmployeeRepository) SetTelegramID(ctx context.Context, id string, telegramID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Employee{}).Where("telegram_id = ? AND id <> ?", telegramID, id).
			Update("telegram_id", nil).Error; err != nil {
			return fmt.Errorf("unlink telegram id: %w", err)
		}
		res := tx.Model(&model.Employee{}).Where("id = ?", id).Update("telegram_id", telegramID)
		if res.Error != nil {
			return fmt.Errorf("link telegram id: %w", translate(res.Error))
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("link telegram id %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// Delete removes an employee with their assignee and group member rows.
// Tasks assigned directly to them become unassigned.
func (r *EmployeeRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("employee_id = ?", id).Delete(&model.TaskAssignee{}).Error; err != nil {
			return fmt.Errorf("delete employee assignments: %w", err)
		}
		if err := tx.Where("employee_id = ?", id).Delete(&model.GroupMember{}).Error; err != nil {
			return fmt.Errorf("delete employee memberships: %w", err)
		}
		if err := tx.Model(&model.Task{}).Where("assigned_to = ?", id).Update("assigned_to", nil).Error; err != nil {
			return fmt.Errorf("unassign employee tasks: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&model.Employee{})
		if res.Error != nil {
			return fmt.Errorf("delete employee: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete employee %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
