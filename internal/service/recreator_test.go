package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/model"
	"taskboard/internal/recurrence"
)

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func TestRecreator_CarriesStaticFieldsAndClearsProof(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	completedAt := time.Date(2024, 1, 31, 18, 0, 0, 0, time.UTC)
	group := uint(4)
	original := store.seed(model.Task{
		Title:          "Pay the gardener",
		Description:    "Transfer via bank app",
		AssignedTo:     strPtr("ana"),
		GroupID:        &group,
		Type:           model.TypeRoutine,
		DueDate:        "2024-01-31",
		Status:         model.StatusCompleted,
		RecurrenceType: "monthly",
		RecurrenceDay:  intPtr(31),
		Response:       "will do",
		Proof:          model.Proof{PhotoURL: "p.jpg", AudioURL: "a.ogg", Comment: "paid", CompletedAt: &completedAt},
		CreatedBy:      strPtr("admin"),
		CreatorName:    "Administrator",
	})

	next, err := NewRecreator(store, nil).Recreate(ctx, original.ID)
	require.NoError(t, err)
	require.NotNil(t, next)

	assert.NotEqual(t, original.ID, next.ID)
	assert.Equal(t, "2024-02-29", next.DueDate)
	assert.Equal(t, model.StatusPending, next.Status)
	assert.Equal(t, "Pay the gardener", next.Title)
	assert.Equal(t, "Transfer via bank app", next.Description)
	assert.Equal(t, "ana", *next.AssignedTo)
	assert.Equal(t, uint(4), *next.GroupID)
	assert.Equal(t, model.TypeRoutine, next.Type)
	assert.Equal(t, "monthly", next.RecurrenceType)
	assert.Equal(t, 31, *next.RecurrenceDay)
	assert.Equal(t, "will do", next.Response)
	assert.Equal(t, "admin", *next.CreatedBy)
	assert.Equal(t, "Administrator", next.CreatorName)
	assert.True(t, next.Proof.Empty())
	assert.Equal(t, original.ID, *next.OriginTaskID)

	stored := store.get(original.ID)
	require.NotNil(t, stored.NextTaskID)
	assert.Equal(t, next.ID, *stored.NextTaskID)
	assert.Equal(t, "2024-01-31", stored.DueDate)
	assert.Equal(t, "paid", stored.Proof.Comment)
}

func TestRecreator_CopiesAssigneesToNewTask(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	original := store.seed(model.Task{
		Description:    "Deep clean kitchen",
		DueDate:        "2024-01-01",
		Status:         model.StatusCompleted,
		RecurrenceType: "weekly",
	}, "ana", "bia", "caio")

	next, err := NewRecreator(store, nil).Recreate(ctx, original.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"ana", "bia", "caio"}, next.AssigneeIDs)
	ids, err := store.AssigneeIDs(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "bia", "caio"}, ids)

	ids, err = store.AssigneeIDs(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "bia", "caio"}, ids)

	assert.Equal(t, []string{"Create", "AddAssignee", "AddAssignee", "AddAssignee", "LinkSuccessor"}, store.writeLog())
}

func TestRecreator_NonRecurringIsNoop(t *testing.T) {
	store := newFakeStore()
	original := store.seed(model.Task{Description: "once", DueDate: "2024-01-01", Status: model.StatusCompleted, RecurrenceType: "none"})

	next, err := NewRecreator(store, nil).Recreate(context.Background(), original.ID)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Empty(t, store.writeLog())
}

func TestRecreator_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	original := store.seed(model.Task{Description: "daily", DueDate: "2024-03-01", Status: model.StatusCompleted, RecurrenceType: "daily"}, "ana", "bia")

	var notified int
	r := NewRecreator(store, nil)
	r.AddListener(ListenerFunc(func(_ context.Context, _, _ *model.Task) { notified++ }))

	first, err := r.Recreate(ctx, original.ID)
	require.NoError(t, err)
	second, err := r.Recreate(ctx, original.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, notified)
	assert.Equal(t, []string{"Create", "AddAssignee", "AddAssignee", "LinkSuccessor"}, store.writeLog())
}

func TestRecreator_RepairsUnlinkedSuccessor(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	original := store.seed(model.Task{Description: "weekly", DueDate: "2024-01-01", Status: model.StatusCompleted, RecurrenceType: "weekly"}, "ana", "bia")
	// A previous attempt inserted the successor and one assignee, then crashed.
	orphan := store.seed(model.Task{Description: "weekly", DueDate: "2024-01-08", Status: model.StatusPending, RecurrenceType: "weekly", OriginTaskID: strPtr(original.ID)}, "ana")

	next, err := NewRecreator(store, nil).Recreate(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, orphan.ID, next.ID)

	ids, err := store.AssigneeIDs(ctx, orphan.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ana", "bia"}, ids)
	assert.Equal(t, []string{"AddAssignee", "LinkSuccessor"}, store.writeLog())
}

func TestRecreator_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing task", func(t *testing.T) {
		_, err := NewRecreator(newFakeStore(), nil).Recreate(ctx, "nope")
		var storeErr *StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, "fetch task", storeErr.Op)
		assert.True(t, IsNotFound(err))
	})

	t.Run("invalid due date", func(t *testing.T) {
		store := newFakeStore()
		task := store.seed(model.Task{DueDate: "31/01/2024", Status: model.StatusCompleted, RecurrenceType: "daily"})
		_, err := NewRecreator(store, nil).Recreate(ctx, task.ID)
		assert.ErrorIs(t, err, recurrence.ErrInvalidDate)
		assert.Empty(t, store.writeLog())
	})

	t.Run("custom without days", func(t *testing.T) {
		store := newFakeStore()
		task := store.seed(model.Task{DueDate: "2024-01-01", Status: model.StatusCompleted, RecurrenceType: "custom"})
		_, err := NewRecreator(store, nil).Recreate(ctx, task.ID)
		assert.ErrorIs(t, err, recurrence.ErrMissingRecurrenceDays)
	})

	t.Run("unknown rule", func(t *testing.T) {
		store := newFakeStore()
		task := store.seed(model.Task{DueDate: "2024-01-01", Status: model.StatusCompleted, RecurrenceType: "fortnightly"})
		_, err := NewRecreator(store, nil).Recreate(ctx, task.ID)
		assert.ErrorIs(t, err, recurrence.ErrUnknownRecurrenceType)
	})

	t.Run("insert fails", func(t *testing.T) {
		store := newFakeStore()
		task := store.seed(model.Task{DueDate: "2024-01-01", Status: model.StatusCompleted, RecurrenceType: "daily"})
		store.failOn["Create"] = errBoom
		_, err := NewRecreator(store, nil).Recreate(ctx, task.ID)
		var storeErr *StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, "insert task", storeErr.Op)
		assert.ErrorIs(t, err, errBoom)
		assert.Nil(t, store.get(task.ID).NextTaskID)
	})
}

func TestRecreator_Sweep(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	broken := store.seed(model.Task{ID: "a", Description: "daily", DueDate: "2024-05-01", Status: model.StatusCompleted, RecurrenceType: "daily"})
	store.seed(model.Task{ID: "b", Description: "bad", DueDate: "2024-05-01", Status: model.StatusCompleted, RecurrenceType: "custom"})
	store.seed(model.Task{ID: "c", Description: "open", DueDate: "2024-05-01", Status: model.StatusPending, RecurrenceType: "daily"})

	repaired, err := NewRecreator(store, nil).Sweep(ctx, time.Time{})
	assert.Equal(t, 1, repaired)
	assert.ErrorIs(t, err, recurrence.ErrMissingRecurrenceDays)

	next, ferr := store.FindSuccessor(ctx, broken.ID, "2024-05-02")
	require.NoError(t, ferr)
	assert.Equal(t, model.StatusPending, next.Status)

	repaired, err = NewRecreator(store, nil).Sweep(ctx, time.Time{})
	assert.Equal(t, 0, repaired)
	assert.ErrorIs(t, err, recurrence.ErrMissingRecurrenceDays)
}

func TestRecreator_SweepPagesPastFailingTasks(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	for i := 0; i < sweepBatch+5; i++ {
		store.seed(model.Task{
			ID:             fmt.Sprintf("bad-%03d", i),
			Description:    "no weekdays",
			DueDate:        "2024-05-01",
			Status:         model.StatusCompleted,
			RecurrenceType: "custom",
		})
	}
	late := store.seed(model.Task{ID: "zz-late", Description: "daily", DueDate: "2024-05-01", Status: model.StatusCompleted, RecurrenceType: "daily"})

	repaired, err := NewRecreator(store, nil).Sweep(ctx, time.Time{})
	assert.Equal(t, 1, repaired)
	assert.ErrorIs(t, err, recurrence.ErrMissingRecurrenceDays)

	next, ferr := store.FindSuccessor(ctx, late.ID, "2024-05-02")
	require.NoError(t, ferr)
	assert.Equal(t, model.StatusPending, next.Status)
}
