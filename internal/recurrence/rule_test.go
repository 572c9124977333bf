package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNextDate(t *testing.T) {
	tests := []struct {
		name    string
		current string
		typ     string
		day     *int
		days    []int
		want    string
	}{
		{name: "daily", current: "2024-03-14", typ: "daily", want: "2024-03-15"},
		{name: "daily leap day", current: "2024-02-29", typ: "daily", want: "2024-03-01"},
		{name: "daily into leap day", current: "2024-02-28", typ: "daily", want: "2024-02-29"},
		{name: "daily year end", current: "2023-12-31", typ: "daily", want: "2024-01-01"},
		{name: "weekly", current: "2024-01-01", typ: "weekly", want: "2024-01-08"},
		{name: "weekly ignores day", current: "2024-01-01", typ: "weekly", day: intPtr(5), want: "2024-01-08"},
		{name: "weekly across year", current: "2023-12-28", typ: "weekly", want: "2024-01-04"},
		{name: "monthly same day", current: "2024-03-15", typ: "monthly", want: "2024-04-15"},
		{name: "monthly day 31 into leap february", current: "2024-01-31", typ: "monthly", day: intPtr(31), want: "2024-02-29"},
		{name: "monthly day 31 into february", current: "2023-01-31", typ: "monthly", day: intPtr(31), want: "2023-02-28"},
		{name: "monthly restores day after short month", current: "2023-02-28", typ: "monthly", day: intPtr(31), want: "2023-03-31"},
		{name: "monthly without day clamps", current: "2023-01-31", typ: "monthly", want: "2023-02-28"},
		{name: "monthly without day from 31 to 30", current: "2024-03-31", typ: "monthly", want: "2024-04-30"},
		{name: "monthly december", current: "2023-12-15", typ: "monthly", day: intPtr(15), want: "2024-01-15"},
		{name: "monthly out of range day uses current", current: "2024-05-10", typ: "monthly", day: intPtr(40), want: "2024-06-10"},
		{name: "monthly zero day uses current", current: "2024-05-10", typ: "monthly", day: intPtr(0), want: "2024-06-10"},
		{name: "custom later same week", current: "2024-01-01", typ: "custom", days: []int{1, 3}, want: "2024-01-03"},
		{name: "custom wraps to next week", current: "2024-01-04", typ: "custom", days: []int{1, 3}, want: "2024-01-08"},
		{name: "custom on last selected day wraps", current: "2024-01-03", typ: "custom", days: []int{3, 1}, want: "2024-01-08"},
		{name: "custom single day is weekly", current: "2024-01-03", typ: "custom", days: []int{3}, want: "2024-01-10"},
		{name: "custom saturday to sunday", current: "2024-01-06", typ: "custom", days: []int{0, 6}, want: "2024-01-07"},
		{name: "custom duplicates", current: "2024-01-01", typ: "custom", days: []int{5, 5, 5}, want: "2024-01-05"},
		{name: "uppercase tag", current: "2024-01-01", typ: "DAILY", want: "2024-01-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := NextDate(tt.current, tt.typ, tt.day, tt.days)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextDateNone(t *testing.T) {
	for _, current := range []string{"2024-01-01", "2023-12-31", "not-a-date", ""} {
		got, ok, err := NextDate(current, "none", nil, nil)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, got)
	}

	got, ok, err := NextDate("2024-01-01", "", nil, nil)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestNextDateErrors(t *testing.T) {
	tests := []struct {
		name    string
		current string
		typ     string
		days    []int
		wantErr error
	}{
		{name: "unparseable date", current: "01/02/2024", typ: "daily", wantErr: ErrInvalidDate},
		{name: "impossible date", current: "2023-02-29", typ: "weekly", wantErr: ErrInvalidDate},
		{name: "empty date", current: "", typ: "monthly", wantErr: ErrInvalidDate},
		{name: "custom without days", current: "2024-01-01", typ: "custom", wantErr: ErrMissingRecurrenceDays},
		{name: "custom empty days", current: "2024-01-01", typ: "custom", days: []int{}, wantErr: ErrMissingRecurrenceDays},
		{name: "custom bad weekday", current: "2024-01-01", typ: "custom", days: []int{1, 7}, wantErr: ErrInvalidWeekday},
		{name: "unknown type", current: "2024-01-01", typ: "yearly", wantErr: ErrUnknownRecurrenceType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := NextDate(tt.current, tt.typ, nil, tt.days)
			require.ErrorIs(t, err, tt.wantErr)
			assert.False(t, ok)
			assert.Empty(t, got)
		})
	}
}

func TestDailyAndWeeklyOverAYear(t *testing.T) {
	daily := EveryDay()
	weekly, err := EveryWeek(nil)
	require.NoError(t, err)

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 366; i++ {
		d := start.AddDate(0, 0, i)

		next, ok := daily.Next(d)
		require.True(t, ok)
		assert.Equal(t, d.AddDate(0, 0, 1), next)

		next, ok = weekly.Next(d)
		require.True(t, ok)
		assert.Equal(t, d.AddDate(0, 0, 7), next)
		assert.Equal(t, d.Weekday(), next.Weekday())
	}
}

func TestMonthlyNeverSkipsAMonth(t *testing.T) {
	rule := EveryMonth(intPtr(31))
	d := time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 24; i++ {
		next, ok := rule.Next(d)
		require.True(t, ok)
		wantMonth := (int(d.Month()) % 12) + 1
		assert.Equal(t, wantMonth, int(next.Month()), "from %s", FormatDate(d))
		assert.Equal(t, DaysIn(next.Year(), next.Month()), next.Day())
		d = next
	}
}

func TestCustomResultIsSelectedWeekday(t *testing.T) {
	rule, err := OnWeekdays(2, 4, 6)
	require.NoError(t, err)

	d := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		next, ok := rule.Next(d)
		require.True(t, ok)
		assert.Contains(t, []time.Weekday{time.Tuesday, time.Thursday, time.Saturday}, next.Weekday())
		assert.True(t, next.After(d))
		assert.LessOrEqual(t, next.Sub(d), 7*24*time.Hour)
		d = next
	}
}

func TestNextIgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)
	due := time.Date(2024, time.January, 31, 23, 30, 0, 0, loc)

	next, ok := EveryDay().Next(due)
	require.True(t, ok)
	assert.Equal(t, "2024-02-01", FormatDate(next))
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, raw := range []string{"2024-02-29", "1999-12-31", "2024-01-01"} {
		d, err := ParseDate(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, FormatDate(d))

		next, ok := EveryDay().Next(d)
		require.True(t, ok)
		again, err := ParseDate(FormatDate(next))
		require.NoError(t, err)
		assert.Equal(t, next, again)
	}
}

func TestFromFields(t *testing.T) {
	rule, err := FromFields("weekly", intPtr(1), []int{2, 3})
	require.NoError(t, err)
	assert.Equal(t, Weekly, rule.Type())
	assert.Equal(t, 1, *rule.Day())
	assert.Empty(t, rule.Days())

	rule, err = FromFields("custom", intPtr(9), []int{3, 1, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, rule.Days())
	assert.Nil(t, rule.Day())

	_, err = FromFields("weekly", intPtr(7), nil)
	assert.ErrorIs(t, err, ErrInvalidWeekday)

	rule, err = FromFields("none", intPtr(3), []int{1})
	require.NoError(t, err)
	assert.False(t, rule.Recurs())

	var zero Rule
	assert.Equal(t, None, zero.Type())
	_, ok := zero.Next(time.Now())
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	weekly, err := EveryWeek(intPtr(1))
	require.NoError(t, err)
	custom, err := OnWeekdays(3, 1)
	require.NoError(t, err)

	assert.Equal(t, "none", NoRecurrence().Describe())
	assert.Equal(t, "daily", EveryDay().Describe())
	assert.Equal(t, "weekly (Mon)", weekly.Describe())
	assert.Equal(t, "monthly (day 31)", EveryMonth(intPtr(31)).Describe())
	assert.Equal(t, "monthly", EveryMonth(nil).Describe())
	assert.Equal(t, "custom (Mon, Wed)", custom.Describe())
}
