package model

import "time"

// Group buckets tasks by area (kitchen, garden, laundry, etc.).
type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex" json:"name"`
	Color     string    `json:"color,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupMember puts an employee in a group.
type GroupMember struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	GroupID    uint      `gorm:"not null;uniqueIndex:idx_group_employee" json:"group_id"`
	EmployeeID string    `gorm:"size:36;not null;uniqueIndex:idx_group_employee;index" json:"employee_id"`
	CreatedAt  time.Time `json:"created_at"`
}
