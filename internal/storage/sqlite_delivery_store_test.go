package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/mailworker/internal/storage"
)

func TestSQLiteDeliveryStore(t *testing.T) {
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	store := storage.NewSQLiteDeliveryStore(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []storage.DeliveryRecord{
		{EmailID: "e1", NotificationID: "n1", Event: "email.received", Status: "Pending", OccurredAt: base},
		{EmailID: "e1", NotificationID: "n1", Event: "email.processing", Status: "Processing", OccurredAt: base.Add(time.Second)},
		{EmailID: "e1", NotificationID: "n1", Event: "email.sent", Status: "Sent", ExternalMessageID: "m1", OccurredAt: base.Add(2 * time.Second)},
		{EmailID: "e2", NotificationID: "n2", Event: "email.failed", Status: "Failed", ErrorMessage: "smtp down", RetryCount: 1, OccurredAt: base.Add(48 * time.Hour)},
	}
	for _, r := range records {
		require.NoError(t, store.Record(ctx, r))
	}

	t.Run("list newest first", func(t *testing.T) {
		list, err := store.List(ctx, 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "email.failed", list[0].Event)
		assert.Equal(t, "smtp down", list[0].ErrorMessage)
		assert.Equal(t, 1, list[0].RetryCount)
		assert.Equal(t, "email.sent", list[1].Event)
		assert.Equal(t, "m1", list[1].ExternalMessageID)
	})

	t.Run("default limit", func(t *testing.T) {
		list, err := store.List(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, list, 4)
	})

	t.Run("by notification in write order", func(t *testing.T) {
		list, err := store.ListByNotification(ctx, "n1")
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"Pending", "Processing", "Sent"},
			[]string{list[0].Status, list[1].Status, list[2].Status})
		assert.True(t, list[0].OccurredAt.Equal(base))
	})

	t.Run("unknown notification", func(t *testing.T) {
		list, err := store.ListByNotification(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, list)
		assert.NotNil(t, list)
	})

	t.Run("prune", func(t *testing.T) {
		n, err := store.Prune(ctx, base.Add(24*time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)

		list, err := store.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "n2", list[0].NotificationID)
	})
}

func TestSQLiteDeliveryStore_ListByNotificationOrdersByOccurrence(t *testing.T) {
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	store := storage.NewSQLiteDeliveryStore(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Inserted out of order, as concurrent recorders could.
	records := []storage.DeliveryRecord{
		{EmailID: "e1", NotificationID: "n1", Event: "email.sent", Status: "Sent", OccurredAt: base.Add(2 * time.Second)},
		{EmailID: "e1", NotificationID: "n1", Event: "email.received", Status: "Pending", OccurredAt: base},
		{EmailID: "e1", NotificationID: "n1", Event: "email.processing", Status: "Processing", OccurredAt: base.Add(time.Second)},
	}
	for _, r := range records {
		require.NoError(t, store.Record(ctx, r))
	}

	list, err := store.ListByNotification(ctx, "n1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Pending", "Processing", "Sent"},
		[]string{list[0].Status, list[1].Status, list[2].Status})
}

func TestSQLiteDeliveryStore_ListByNotificationTiesKeepInsertOrder(t *testing.T) {
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	store := storage.NewSQLiteDeliveryStore(db)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, status := range []string{"Pending", "Processing", "Sent"} {
		require.NoError(t, store.Record(ctx, storage.DeliveryRecord{
			EmailID: "e1", NotificationID: "n1", Status: status, OccurredAt: at,
		}))
	}

	list, err := store.ListByNotification(ctx, "n1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Pending", "Processing", "Sent"},
		[]string{list[0].Status, list[1].Status, list[2].Status})
}
