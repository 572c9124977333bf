package service

import (
	"context"
	"strings"

	"taskboard/internal/model"
	"taskboard/internal/repository"
)

// GroupService provides helpers around task groups.
type GroupService struct {
	repo      *repository.GroupRepository
	employees *repository.EmployeeRepository
}

func NewGroupService(repo *repository.GroupRepository, employees *repository.EmployeeRepository) *GroupService {
	return &GroupService{repo: repo, employees: employees}
}

func (s *GroupService) List(ctx context.Context) ([]model.Group, error) {
	return s.repo.List(ctx)
}

// Ensure returns the group called name, creating it when missing.
func (s *GroupService) Ensure(ctx context.Context, p Principal, name, color, icon string) (*model.Group, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	group, err := s.repo.GetOrCreate(ctx, name, strings.TrimSpace(color), strings.TrimSpace(icon))
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, invalid("group name is required")
	}
	return group, nil
}

func (s *GroupService) Members(ctx context.Context, p Principal, groupID uint) ([]model.Employee, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if _, err := s.repo.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	ids, err := s.repo.Members(ctx, groupID)
	if err != nil {
		return nil, err
	}
	found, err := s.employees.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Employee, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}
	members := make([]model.Employee, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			members = append(members, e)
		}
	}
	return members, nil
}

// SetMembers replaces the employees of a group. Every id must name an
// existing employee.
func (s *GroupService) SetMembers(ctx context.Context, p Principal, groupID uint, employeeIDs []string) ([]model.Employee, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	ids := uniqueIDs(employeeIDs)
	found, err := s.employees.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		known := make(map[string]bool, len(found))
		for _, e := range found {
			known[e.ID] = true
		}
		for _, id := range ids {
			if !known[id] {
				return nil, invalid("unknown employee %q", id)
			}
		}
	}
	if err := s.repo.SetMembers(ctx, groupID, ids); err != nil {
		return nil, err
	}
	return s.Members(ctx, p, groupID)
}
