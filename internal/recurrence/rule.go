// Package recurrence computes the next due date of recurring tasks.
//
// Everything here operates on calendar dates (UTC midnight values) and never
// reads the wall clock, so the same rule and date always give the same answer.
package recurrence

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Type is the recurrence tag stored on a task.
type Type string

const (
	None    Type = "none"
	Daily   Type = "daily"
	Weekly  Type = "weekly"
	Monthly Type = "monthly"
	Custom  Type = "custom"
)

// ParseType normalizes a stored tag. An empty tag means None.
func ParseType(raw string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return None, nil
	case None, Daily, Weekly, Monthly, Custom:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRecurrenceType, raw)
	}
}

// Rule is a validated recurrence rule. The zero value does not recur.
type Rule struct {
	typ  Type
	day  *int
	days []int
}

// NoRecurrence returns a rule for one-off tasks.
func NoRecurrence() Rule { return Rule{typ: None} }

// EveryDay returns a rule that repeats on the following calendar day.
func EveryDay() Rule { return Rule{typ: Daily} }

// EveryWeek returns a rule that repeats seven days later. The weekday is
// informational; when present it must be a valid weekday index.
func EveryWeek(day *int) (Rule, error) {
	if day != nil && !validWeekday(*day) {
		return Rule{}, fmt.Errorf("%w: %d", ErrInvalidWeekday, *day)
	}
	return Rule{typ: Weekly, day: cloneInt(day)}, nil
}

// EveryMonth returns a rule that repeats in the following calendar month on
// the given day, clamped to the month length. A nil or out-of-range day keeps
// the current day of month.
func EveryMonth(day *int) Rule {
	return Rule{typ: Monthly, day: cloneInt(day)}
}

// OnWeekdays returns a custom rule firing on the given weekdays (0=Sunday).
func OnWeekdays(days ...int) (Rule, error) {
	if len(days) == 0 {
		return Rule{}, ErrMissingRecurrenceDays
	}
	set := make([]int, 0, len(days))
	for _, d := range days {
		if !validWeekday(d) {
			return Rule{}, fmt.Errorf("%w: %d", ErrInvalidWeekday, d)
		}
		if !slices.Contains(set, d) {
			set = append(set, d)
		}
	}
	slices.Sort(set)
	return Rule{typ: Custom, days: set}, nil
}

// FromFields builds a rule from the loosely typed fields persisted on a task.
// Fields that do not apply to the rule type are ignored.
func FromFields(typ string, day *int, days []int) (Rule, error) {
	t, err := ParseType(typ)
	if err != nil {
		return Rule{}, err
	}
	switch t {
	case Daily:
		return EveryDay(), nil
	case Weekly:
		return EveryWeek(day)
	case Monthly:
		return EveryMonth(day), nil
	case Custom:
		return OnWeekdays(days...)
	default:
		return NoRecurrence(), nil
	}
}

// Type returns the rule tag.
func (r Rule) Type() Type {
	if r.typ == "" {
		return None
	}
	return r.typ
}

// Recurs reports whether the rule produces further occurrences.
func (r Rule) Recurs() bool { return r.Type() != None }

// Day returns the weekly weekday or monthly day-of-month, if any.
func (r Rule) Day() *int { return cloneInt(r.day) }

// Days returns the sorted weekday set of a custom rule.
func (r Rule) Days() []int { return slices.Clone(r.days) }

// Next returns the occurrence following due. The boolean is false when the
// rule does not recur.
func (r Rule) Next(due time.Time) (time.Time, bool) {
	due = DateOf(due)
	switch r.Type() {
	case Daily:
		return AddDays(due, 1), true
	case Weekly:
		return AddDays(due, 7), true
	case Monthly:
		return nextMonthly(due, r.day), true
	case Custom:
		return nextCustom(due, r.days), true
	default:
		return time.Time{}, false
	}
}

// Describe renders the rule for humans, e.g. "custom (Mon, Wed)".
func (r Rule) Describe() string {
	switch r.Type() {
	case Weekly:
		if r.day != nil {
			return fmt.Sprintf("weekly (%s)", weekdayShort(*r.day))
		}
		return "weekly"
	case Monthly:
		if r.day != nil && validMonthDay(*r.day) {
			return fmt.Sprintf("monthly (day %d)", *r.day)
		}
		return "monthly"
	case Custom:
		names := make([]string, len(r.days))
		for i, d := range r.days {
			names[i] = weekdayShort(d)
		}
		return fmt.Sprintf("custom (%s)", strings.Join(names, ", "))
	default:
		return string(r.Type())
	}
}

// NextDate is the string boundary of the calculator: it parses current,
// builds the rule and formats the next due date. The boolean is false for
// non-recurring rules; that case is not an error.
func NextDate(current string, typ string, day *int, days []int) (string, bool, error) {
	rule, err := FromFields(typ, day, days)
	if err != nil {
		return "", false, err
	}
	if !rule.Recurs() {
		return "", false, nil
	}
	due, err := ParseDate(current)
	if err != nil {
		return "", false, err
	}
	next, _ := rule.Next(due)
	return FormatDate(next), true, nil
}

func nextMonthly(due time.Time, day *int) time.Time {
	year, month := due.Year(), due.Month()+1
	if month > time.December {
		year, month = year+1, time.January
	}
	target := due.Day()
	if day != nil && validMonthDay(*day) {
		target = *day
	}
	target = min(target, DaysIn(year, month))
	return time.Date(year, month, target, 0, 0, 0, 0, time.UTC)
}

func nextCustom(due time.Time, days []int) time.Time {
	cur := int(due.Weekday())
	for _, d := range days {
		if d > cur {
			return AddDays(due, d-cur)
		}
	}
	return AddDays(due, 7-cur+days[0])
}

func validWeekday(d int) bool { return d >= 0 && d <= 6 }

func validMonthDay(d int) bool { return d >= 1 && d <= 31 }

func weekdayShort(d int) string {
	if !validWeekday(d) {
		return fmt.Sprintf("day %d", d)
	}
	return time.Weekday(d).String()[:3]
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
