package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskboard/internal/model"
	"taskboard/internal/recurrence"
	"taskboard/internal/service"
)

func newUpcomingCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List open tasks that are overdue or due soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.LookAheadDays
			}
			today := recurrence.DateOf(time.Now().In(ctx.location))

			return ctx.withApp(func(a *app) error {
				tasks, err := a.tasks.Upcoming(cmd.Context(), service.System, today, days)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(tasks) == 0 {
					fmt.Fprintln(out, "No open tasks.")
					return nil
				}

				names, err := employeeNames(cmd, a)
				if err != nil {
					return err
				}
				rows := make([]taskRow, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, upcomingRow(task, names, recurrence.FormatDate(today)))
				}
				fmt.Fprint(out, renderTaskTable(rows))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Look-ahead window in days")
	return cmd
}

func employeeNames(cmd *cobra.Command, a *app) (map[string]string, error) {
	employees, err := a.employees.List(cmd.Context(), service.System)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(employees))
	for _, e := range employees {
		names[e.ID] = e.Name
	}
	return names, nil
}

func upcomingRow(task model.Task, names map[string]string, today string) taskRow {
	row := taskRow{
		Due:     task.DueDate,
		Overdue: task.DueDate < today,
		Task:    task.Title,
		Status:  string(task.Status),
		Repeats: "-",
	}
	if row.Task == "" {
		row.Task = task.Description
	}

	switch {
	case task.IsShared:
		row.Assignee = "everyone"
	case task.AssignedTo != nil:
		row.Assignee = names[*task.AssignedTo]
	case len(task.AssigneeIDs) > 0:
		list := make([]string, 0, len(task.AssigneeIDs))
		for _, id := range task.AssigneeIDs {
			list = append(list, names[id])
		}
		row.Assignee = strings.Join(list, ", ")
	}

	if task.IsRecurring() {
		if rule, err := recurrence.FromFields(task.RecurrenceType, task.RecurrenceDay, task.RecurrenceDays); err == nil {
			row.Repeats = rule.Describe()
		}
	}
	return row
}
