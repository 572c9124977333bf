package recurrence

import "errors"

var (
	// ErrInvalidDate is returned when a due date cannot be parsed as YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
	// ErrMissingRecurrenceDays is returned for a custom rule without weekdays.
	ErrMissingRecurrenceDays = errors.New("custom recurrence requires at least one weekday")
	// ErrUnknownRecurrenceType is returned for an unrecognized rule tag.
	ErrUnknownRecurrenceType = errors.New("unknown recurrence type")
	// ErrInvalidWeekday is returned when a weekday index is outside 0..6.
	ErrInvalidWeekday = errors.New("weekday must be between 0 (Sunday) and 6 (Saturday)")
)
