package mongo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/your-org/commerce-session/internal/domain/docstore"
	"github.com/your-org/commerce-session/internal/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	// transactions need a replica set
	mongoContainer, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	store := NewStore(db, logger.Discard().Logger)
	require.NoError(t, store.CreateIndexes(ctx))

	cleanup := func() {
		_ = store.Close(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return store, cleanup
}

func TestStore_GetSetQuery(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetDocument(ctx, "users/u1/state/cart")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, store.SetDocumentMerge(ctx, "users/u1/state/cart", map[string]any{
		"version": 1,
		"items":   []any{map[string]any{"id": "p1", "quantity": 2}},
	}))
	require.NoError(t, store.SetDocumentMerge(ctx, "users/u1/state/cart", map[string]any{
		"selectedPackaging": "essential",
		"updatedAt":         time.Now(),
	}))

	doc, err := store.GetDocument(ctx, "users/u1/state/cart")
	require.NoError(t, err)
	assert.Equal(t, "essential", doc.Data["selectedPackaging"])
	n, ok := docstore.ToInt64(doc.Data["version"])
	require.True(t, ok)
	assert.Equal(t, int64(1), n)
	items, ok := doc.Data["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	item, ok := items[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p1", item["id"])
	_, ok = doc.Data["updatedAt"].(time.Time)
	assert.True(t, ok)

	require.NoError(t, store.SetDocumentMerge(ctx, "coupons/c1", map[string]any{"code": "SAVE10"}))
	require.NoError(t, store.SetDocumentMerge(ctx, "coupons/c2", map[string]any{"code": "OTHER"}))

	docs, err := store.QueryByField(ctx, "coupons", "code", "SAVE10")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "c1", docs[0].ID())
}

func TestStore_RunAtomicBatch(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SetDocumentMerge(ctx, "coupons/c1", map[string]any{"code": "SAVE10", "timesUsed": 0}))
	limit := int64(1)

	require.NoError(t, store.RunAtomicBatch(ctx, []docstore.Op{
		docstore.RequireOp("coupons/c1", "timesUsed", 0),
		docstore.IncrementOp("coupons/c1", "timesUsed", 1, &limit),
		docstore.IncrementOp("couponUsage/SAVE10__u1", "count", 1, nil),
		docstore.SetOp("couponUsage/SAVE10__u1", map[string]any{"userId": "u1"}),
	}))

	err := store.RunAtomicBatch(ctx, []docstore.Op{
		docstore.IncrementOp("coupons/c1", "timesUsed", 1, &limit),
		docstore.SetOp("couponUsage/SAVE10__u2", map[string]any{"userId": "u2"}),
	})
	var limitErr *docstore.LimitError
	require.True(t, errors.As(err, &limitErr))

	_, err = store.GetDocument(ctx, "couponUsage/SAVE10__u2")
	assert.ErrorIs(t, err, docstore.ErrNotFound, "no partial write")

	err = store.RunAtomicBatch(ctx, []docstore.Op{
		docstore.RequireOp("coupons/c1", "timesUsed", 0),
		docstore.SetOp("coupons/c1", map[string]any{"note": "stale"}),
	})
	assert.ErrorIs(t, err, docstore.ErrConflict)

	usage, err := store.GetDocument(ctx, "couponUsage/SAVE10__u1")
	require.NoError(t, err)
	n, _ := docstore.ToInt64(usage.Data["count"])
	assert.Equal(t, int64(1), n)

	var rec bson.M
	require.NoError(t, store.collection.FindOne(ctx, bson.M{"_id": "couponUsage/SAVE10__u1"}).Decode(&rec))
	assert.Equal(t, "couponUsage", rec["collection"])
}

func TestStore_ConcurrentIncrementsRespectLimit(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SetDocumentMerge(ctx, "coupons/c1", map[string]any{"timesUsed": 0}))
	limit := int64(3)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.RunAtomicBatch(ctx, []docstore.Op{
				docstore.IncrementOp("coupons/c1", "timesUsed", 1, &limit),
			})
		}()
	}
	wg.Wait()

	doc, err := store.GetDocument(ctx, "coupons/c1")
	require.NoError(t, err)
	n, _ := docstore.ToInt64(doc.Data["timesUsed"])
	assert.LessOrEqual(t, n, limit)
}
