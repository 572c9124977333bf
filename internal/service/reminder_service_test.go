package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"taskboard/internal/model"
)

func TestRenderDigest(t *testing.T) {
	group := uint(1)
	today := time.Date(2024, 1, 10, 7, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{Title: "Pay <bills>", DueDate: "2024-01-08", Status: model.StatusPending},
		{Description: "Water plants", DueDate: "2024-01-10", Status: model.StatusInProgress, GroupID: &group,
			RecurrenceType: "custom", RecurrenceDays: model.Weekdays{1, 3}},
		{Title: "Clean garage", DueDate: "2024-01-14", Status: model.StatusBlocked, IsShared: true},
	}

	out := renderDigest("Ana", tasks, map[uint]string{1: "Garden"}, today, 7)

	assert.Contains(t, out, "Good morning, Ana")
	assert.Contains(t, out, "🗓 2024-01-10")
	assert.Contains(t, out, "⚠️ <b>Overdue</b>\n🟢 Pay &lt;bills&gt;")
	assert.Contains(t, out, "🔥 <b>Today</b>\n🔄 Water plants <i>(Garden)</i>")
	assert.Contains(t, out, "♻️ custom (Mon, Wed)")
	assert.Contains(t, out, "⏳ <b>Next 7 days</b>\n⛔ Clean garage")
	assert.Contains(t, out, "👥 shared")
	assert.NotContains(t, out, "nothing pending")
}

func TestRenderDigestEmpty(t *testing.T) {
	out := renderDigest("Bia", nil, nil, time.Date(2024, 1, 10, 7, 0, 0, 0, time.UTC), 3)
	assert.Contains(t, out, "nothing pending")
	assert.NotContains(t, out, "Overdue")
}
