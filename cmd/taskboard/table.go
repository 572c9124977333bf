package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const taskColumnWidth = 40

// taskRow is one open task as listed by the upcoming command.
type taskRow struct {
	Due      string
	Overdue  bool
	Task     string
	Assignee string
	Status   string
	Repeats  string
}

var taskHeader = table.Row{"Due", "Task", "Assignee", "Status", "Repeats"}

// renderTaskTable draws rows as a rounded box with a footer counting open
// and overdue tasks. Long titles wrap inside the task column.
func renderTaskTable(rows []taskRow) string {
	if len(rows) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault
	tw.AppendHeader(taskHeader)

	overdue := 0
	for _, row := range rows {
		due := row.Due
		if row.Overdue {
			due += " (overdue)"
			overdue++
		}
		tw.AppendRow(table.Row{due, row.Task, row.Assignee, row.Status, row.Repeats})
	}
	tw.AppendFooter(table.Row{fmt.Sprintf("%d overdue", overdue), fmt.Sprintf("%d open", len(rows))})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Task", WidthMax: taskColumnWidth, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Status", Align: text.AlignCenter, AlignHeader: text.AlignCenter},
	})

	return tw.Render() + "\n"
}
