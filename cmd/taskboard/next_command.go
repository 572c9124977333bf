package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"taskboard/internal/recurrence"
)

func newNextCommand() *cobra.Command {
	var (
		date    string
		typ     string
		day     int
		days    []int
		repeats int
	)

	cmd := &cobra.Command{
		Use:         "next",
		Short:       "Print the next occurrence dates of a recurrence rule",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = recurrence.FormatDate(time.Now())
			}
			var dayPtr *int
			if cmd.Flags().Changed("day") {
				dayPtr = &day
			}
			rule, err := recurrence.FromFields(typ, dayPtr, days)
			if err != nil {
				return err
			}
			if repeats < 1 {
				return fmt.Errorf("--count must be at least 1")
			}

			out := cmd.OutOrStdout()
			current := date
			for i := 0; i < repeats; i++ {
				next, ok, err := recurrence.NextDate(current, typ, dayPtr, days)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "does not recur")
					return nil
				}
				if i == 0 {
					fmt.Fprintf(out, "%s after %s:\n", rule.Describe(), date)
				}
				fmt.Fprintln(out, next)
				current = next
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Current due date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&typ, "type", "", "Recurrence type: none, daily, weekly, monthly or custom")
	cmd.Flags().IntVar(&day, "day", 0, "Day of month for monthly rules (weekday for weekly)")
	cmd.Flags().IntSliceVar(&days, "days", nil, "Weekdays for custom rules, 0=Sunday (e.g. 1,3,5)")
	cmd.Flags().IntVarP(&repeats, "count", "n", 1, "Number of occurrences to print")
	return cmd
}
