//go:build integration

package mongostore

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
)

func newContainerStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("failed to start mongo container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get mongo connection string: %v", err)
	}

	store, err := New(ctx, Options{
		URI:        uri,
		Database:   "bill-mgmt",
		Collection: "item_metadata",
		Timeout:    10 * time.Second,
	}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	return store
}

func TestStore_Integration(t *testing.T) {
	store := newContainerStore(t)
	ctx := context.Background()

	uid := "a36fcca2-70e1-4eeb-9f25-565de0ecfc32"
	locations := []string{
		"20, Kala Circle, Nellore-128613",
		"15, Main Street, Bangalore-560001",
		"Shop 5, Market Square, Nellore-128613",
		"7, Tech Park, Hyderabad-500081",
	}
	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	records := make([]model.ExpenseRecord, len(locations))
	for i, loc := range locations {
		records[i] = model.ExpenseRecord{
			ID:        uid + "-" + string(rune('a'+i)),
			UserID:    uid,
			GeoInfo:   model.GeoInfoFromLocation(loc),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	require.NoError(t, store.SaveExpenseRecords(ctx, records))
	require.NoError(t, store.SaveExpenseRecords(ctx, records))

	total, err := store.CountUserRecords(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	at, err := store.CountUserRecordsAt(ctx, uid, "nellore")
	require.NoError(t, err)
	assert.Equal(t, int64(2), at)

	at, err = store.CountUserRecordsAt(ctx, uid, "Nell.re")
	require.NoError(t, err)
	assert.Zero(t, at)

	history, err := store.GetUserRecords(ctx, uid, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "7, Tech Park, Hyderabad-500081", history[0].Location())

	_, err = store.db.Collection("purchase_stats").InsertOne(ctx, bson.M{"_id": "nellore", "city": "Nellore"})
	require.NoError(t, err)

	doc, err := store.GetDocument(ctx, "purchase_stats", "nellore")
	require.NoError(t, err)
	assert.Equal(t, "Nellore", doc.Data["city"])
	assert.NotContains(t, doc.Data, "_id")

	_, err = store.GetDocument(ctx, "purchase_stats", "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	deleted, err := store.DeleteUserRecords(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
}
