package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/model"
	"taskboard/internal/repository"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNextCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "monthly clamps to february",
			args: []string{"next", "--date", "2024-01-31", "--type", "monthly", "--day", "31"},
			want: "monthly (day 31) after 2024-01-31:\n2024-02-29\n",
		},
		{
			name: "custom wraps to next week",
			args: []string{"next", "--date", "2024-01-05", "--type", "custom", "--days", "1,3", "-n", "3"},
			want: "custom (Mon, Wed) after 2024-01-05:\n2024-01-08\n2024-01-10\n2024-01-15\n",
		},
		{
			name: "daily crosses the year",
			args: []string{"next", "--date", "2024-12-31", "--type", "daily"},
			want: "daily after 2024-12-31:\n2025-01-01\n",
		},
		{
			name: "none",
			args: []string{"next", "--date", "2024-01-01", "--type", "none"},
			want: "does not recur\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestNextCommandErrors(t *testing.T) {
	_, err := runCLI(t, "next", "--date", "2024-13-01", "--type", "daily")
	assert.Error(t, err)

	_, err = runCLI(t, "next", "--date", "2024-01-01", "--type", "custom")
	assert.Error(t, err)

	_, err = runCLI(t, "next", "--date", "2024-01-01", "--type", "daily", "-n", "0")
	assert.Error(t, err)
}

func TestUpcomingCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "taskboard.db")
	t.Setenv("TASKBOARD_DATABASE_URL", dbPath)
	t.Setenv("TASKBOARD_LOG_LEVEL", "error")

	db, err := repository.NewDB(dbPath)
	require.NoError(t, err)
	ctx := context.Background()
	ana := &model.Employee{Name: "Ana", Active: true}
	require.NoError(t, repository.NewEmployeeRepository(db).Create(ctx, ana))
	require.NoError(t, repository.NewTaskRepository(db).Create(ctx, &model.Task{
		Title:          "Clean the pool",
		AssignedTo:     &ana.ID,
		Type:           model.TypeRoutine,
		DueDate:        "2020-01-06",
		Status:         model.StatusPending,
		RecurrenceType: "weekly",
	}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	out, err := runCLI(t, "upcoming", "--days", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "│ Due ")
	assert.Contains(t, out, "2020-01-06 (overdue)")
	assert.Contains(t, out, "Clean the pool")
	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, "weekly")
	assert.Contains(t, out, "1 overdue")
}

func TestSweepCommand(t *testing.T) {
	t.Setenv("TASKBOARD_DATABASE_URL", filepath.Join(t.TempDir(), "taskboard.db"))
	t.Setenv("TASKBOARD_LOG_LEVEL", "error")

	out, err := runCLI(t, "sweep")
	require.NoError(t, err)
	assert.Equal(t, "Repaired 0 recurring chain(s)\n", out)
}

func TestRenderTaskTable(t *testing.T) {
	long := "Wash the windows of the living room and both bedrooms upstairs"
	got := renderTaskTable([]taskRow{
		{Due: "2024-01-01", Overdue: true, Task: "Dust", Assignee: "Ana", Status: "pending", Repeats: "-"},
		{Due: "2024-01-02", Task: long, Assignee: "everyone", Status: "in_progress", Repeats: "daily"},
	})

	assert.Contains(t, got, "╭")
	assert.Contains(t, got, "│ Due ")
	assert.Contains(t, got, "Assignee")
	assert.NotContains(t, got, "DUE")
	assert.Contains(t, got, "2024-01-01 (overdue)")
	assert.NotContains(t, got, "2024-01-02 (overdue)")
	assert.Contains(t, got, "1 overdue")
	assert.Contains(t, got, "2 open")
	assert.NotContains(t, got, long)
	assert.Contains(t, got, "Wash the windows")

	assert.Empty(t, renderTaskTable(nil))
}

func TestUpcomingRow(t *testing.T) {
	ana, bia := "ana", "bia"
	names := map[string]string{ana: "Ana", bia: "Bia"}
	day := 15

	row := upcomingRow(model.Task{
		Description:    "pay the electricity bill",
		AssigneeIDs:    []string{ana, bia},
		DueDate:        "2024-03-15",
		Status:         model.StatusPending,
		RecurrenceType: "monthly",
		RecurrenceDay:  &day,
	}, names, "2024-03-20")
	assert.Equal(t, taskRow{
		Due:      "2024-03-15",
		Overdue:  true,
		Task:     "pay the electricity bill",
		Assignee: "Ana, Bia",
		Status:   "pending",
		Repeats:  "monthly (day 15)",
	}, row)

	row = upcomingRow(model.Task{Title: "Mop", IsShared: true, DueDate: "2024-03-20", Status: model.StatusPending}, names, "2024-03-20")
	assert.False(t, row.Overdue)
	assert.Equal(t, "everyone", row.Assignee)
	assert.Equal(t, "-", row.Repeats)
}
