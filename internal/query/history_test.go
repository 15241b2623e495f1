package query

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleHistory(t *testing.T) {
	now := time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC)
	source := NewSampleHistory(0, rand.New(rand.NewSource(42)))
	source.now = func() time.Time { return now }

	entries, err := source.History(context.Background(), "ravi")
	require.NoError(t, err)
	require.Len(t, entries, 10)

	oldest := now.AddDate(0, 0, -(SampleHistoryDays - 1))
	for i, e := range entries {
		assert.Equal(t, "ravi", e.Metadata.Username)
		assert.Equal(t, e.DocumentID, e.Metadata.DocumentID)
		assert.Equal(t, e.DocumentID, e.Item.DocumentID)
		assert.Len(t, e.Metadata.GSTNumber, 12)
		assert.Len(t, e.Metadata.Tags, 2)
		assert.NotEqual(t, e.Metadata.Tags[0], e.Metadata.Tags[1])
		assert.Equal(t, "medicine", e.Item.ItemType)
		assert.GreaterOrEqual(t, e.Item.Quantity, 1)
		assert.LessOrEqual(t, e.Item.Quantity, 20)
		assert.GreaterOrEqual(t, e.Item.Price, 10.0)
		assert.LessOrEqual(t, e.Item.Price, 200.0)

		ts, err := time.Parse(TimestampLayout, e.Metadata.Timestamp)
		require.NoError(t, err)
		assert.False(t, ts.After(now))
		assert.False(t, ts.Before(oldest))

		if i > 0 {
			assert.GreaterOrEqual(t, entries[i-1].Metadata.Timestamp, e.Metadata.Timestamp)
		}
	}
}

func TestStoreHistory(t *testing.T) {
	store, err := storage.NewSQLiteStorage(storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	base := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveExpenseRecords(ctx, []model.ExpenseRecord{
		{ID: "r1", UserID: "ravi", GeoInfo: model.GeoInfoFromLocation("Nellore"), CreatedAt: base,
			Fields: map[string]any{"item_name": "syrup", "price": 42.5, "quantity": 2.0, "store_type": "Pharmacy"}},
		{ID: "r2", UserID: "ravi", GeoInfo: "Bangalore", CreatedAt: base.Add(24 * time.Hour)},
	}))

	entries, err := NewStoreHistory(store, 0).History(ctx, "ravi")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "r2", entries[0].DocumentID)
	assert.Equal(t, "Bangalore", entries[0].Metadata.AdditionalInfo["location"])

	assert.Equal(t, "r1", entries[1].DocumentID)
	assert.Equal(t, "Nellore", entries[1].Metadata.AdditionalInfo["location"])
	assert.Equal(t, "Pharmacy", entries[1].Metadata.AdditionalInfo["store_type"])
	assert.Equal(t, "syrup", entries[1].Item.ItemName)
	assert.InDelta(t, 42.5, entries[1].Item.Price, 1e-9)
	assert.Equal(t, 2, entries[1].Item.Quantity)
	assert.Equal(t, "2025-07-01T10:00:00.000000Z", entries[1].Metadata.Timestamp)

	empty, err := NewStoreHistory(store, 0).History(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
