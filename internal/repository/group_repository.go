package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"taskboard/internal/model"
)

// GroupRepository manages task groups.
type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) GetOrCreate(ctx context.Context, name, color, icon string) (*model.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	var group model.Group
	db := r.db.WithContext(ctx)
	err := db.Where("name = ?", name).First(&group).Error
	switch {
	case err == nil:
		return &group, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		group = model.Group{Name: name, Color: color, Icon: icon}
		if err := db.Create(&group).Error; err != nil {
			return nil, fmt.Errorf("create group: %w", translate(err))
		}
		return &group, nil
	default:
		return nil, fmt.Errorf("find group: %w", err)
	}
}

func (r *GroupRepository) List(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

func (r *GroupRepository) GetByID(ctx context.Context, id uint) (*model.Group, error) {
	var group model.Group
	if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
		return nil, fmt.Errorf("find group %d: %w", id, translate(err))
	}
	return &group, nil
}

// Members returns the ids of the employees in a group, oldest membership
// first.
func (r *GroupRepository) Members(ctx context.Context, groupID uint) ([]string, error) {
	var members []model.GroupMember
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC, id ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("list members of group %d: %w", groupID, err)
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.EmployeeID)
	}
	return ids, nil
}

// SetMembers replaces the membership of a group. Employees already in the
// group keep their original row.
func (r *GroupRepository) SetMembers(ctx context.Context, groupID uint, employeeIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model.Group{}, groupID).Error; err != nil {
			return fmt.Errorf("find group %d: %w", groupID, translate(err))
		}

		del := tx.Where("group_id = ?", groupID)
		if len(employeeIDs) > 0 {
			del = del.Where("employee_id NOT IN ?", employeeIDs)
		}
		if err := del.Delete(&model.GroupMember{}).Error; err != nil {
			return fmt.Errorf("prune members of group %d: %w", groupID, err)
		}

		var existing []string
		if err := tx.Model(&model.GroupMember{}).Where("group_id = ?", groupID).Pluck("employee_id", &existing).Error; err != nil {
			return fmt.Errorf("list members of group %d: %w", groupID, err)
		}
		have := make(map[string]bool, len(existing))
		for _, id := range existing {
			have[id] = true
		}
		for _, id := range employeeIDs {
			if have[id] {
				continue
			}
			have[id] = true
			if err := tx.Create(&model.GroupMember{GroupID: groupID, EmployeeID: id}).Error; err != nil {
				return fmt.Errorf("add member to group %d: %w", groupID, translate(err))
			}
		}
		return nil
	})
}
