package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/recurrence"
	"taskboard/internal/repository"
)

// ReminderService builds the per-employee daily digest.
type ReminderService struct {
	tasks     *TaskService
	groupRepo *repository.GroupRepository
	lookAhead int
}

func NewReminderService(tasks *TaskService, groupRepo *repository.GroupRepository, lookAheadDays int) *ReminderService {
	return &ReminderService{tasks: tasks, groupRepo: groupRepo, lookAhead: lookAheadDays}
}

// DailySummary renders the open tasks of employee as Telegram HTML: overdue,
// due today and the look-ahead window.
func (s *ReminderService) DailySummary(ctx context.Context, employee model.Employee, today time.Time) (string, error) {
	p := Principal{Role: RoleEmployee, EmployeeID: employee.ID, Name: employee.Name}
	tasks, err := s.tasks.Upcoming(ctx, p, today, s.lookAhead)
	if err != nil {
		return "", err
	}

	groups, err := s.groupRepo.List(ctx)
	if err != nil {
		return "", err
	}
	groupNames := make(map[uint]string, len(groups))
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}

	return renderDigest(employee.Name, tasks, groupNames, today, s.lookAhead), nil
}

func renderDigest(name string, tasks []model.Task, groupNames map[uint]string, today time.Time, lookAhead int) string {
	todayStr := recurrence.FormatDate(recurrence.DateOf(today))

	var overdue, dueToday, upcoming []model.Task
	for _, task := range tasks {
		switch {
		case task.DueDate < todayStr:
			overdue = append(overdue, task)
		case task.DueDate == todayStr:
			dueToday = append(dueToday, task)
		default:
			upcoming = append(upcoming, task)
		}
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📋 <b>Good morning, %s</b>\n", html.EscapeString(name)))
	builder.WriteString(fmt.Sprintf("🗓 %s\n", todayStr))

	writeSection(&builder, "⚠️ <b>Overdue</b>", overdue, groupNames)
	writeSection(&builder, "🔥 <b>Today</b>", dueToday, groupNames)
	writeSection(&builder, fmt.Sprintf("⏳ <b>Next %d days</b>", lookAhead), upcoming, groupNames)

	if len(tasks) == 0 {
		builder.WriteString("\n— nothing pending, enjoy the day\n")
	}
	return strings.TrimSpace(builder.String())
}

func writeSection(sb *strings.Builder, title string, tasks []model.Task, groupNames map[uint]string) {
	if len(tasks) == 0 {
		return
	}
	sb.WriteString("\n" + title + "\n")
	for _, task := range tasks {
		sb.WriteString(FormatTaskLine(task, groupNames))
	}
}

// FormatTaskLine renders one task as a digest line.
func FormatTaskLine(task model.Task, groupNames map[uint]string) string {
	var sb strings.Builder

	icon := "🟢"
	switch task.Status {
	case model.StatusInProgress:
		icon = "🔄"
	case model.StatusBlocked:
		icon = "⛔"
	}
	label := strings.TrimSpace(task.Title)
	if label == "" {
		label = strings.TrimSpace(task.Description)
	}
	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(label)))

	if task.GroupID != nil {
		if name := strings.TrimSpace(groupNames[*task.GroupID]); name != "" {
			sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(name)))
		}
	}
	sb.WriteString(fmt.Sprintf("\n   ⏰ %s", task.DueDate))
	if task.IsRecurring() {
		if rule, err := recurrence.FromFields(task.RecurrenceType, task.RecurrenceDay, task.RecurrenceDays); err == nil {
			sb.WriteString(fmt.Sprintf(" · ♻️ %s", rule.Describe()))
		}
	}
	if task.IsShared {
		sb.WriteString(" · 👥 shared")
	}
	sb.WriteByte('\n')
	return sb.String()
}
