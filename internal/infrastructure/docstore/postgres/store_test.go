package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/your-org/commerce-session/internal/domain/docstore"
	"github.com/your-org/commerce-session/internal/pkg/logger"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("commerce"),
		tcpostgres.WithUsername("commerce"),
		tcpostgres.WithPassword("commerce"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Document{}))

	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return NewStore(db, logger.Discard().Logger), cleanup
}

func TestJSONMap_ScanValue(t *testing.T) {
	m := JSONMap{"code": "SAVE10", "timesUsed": 3}
	v, err := m.Value()
	require.NoError(t, err)

	var out JSONMap
	require.NoError(t, out.Scan([]byte(v.(string))))
	assert.Equal(t, "SAVE10", out["code"])
	n, ok := docstore.ToInt64(out["timesUsed"])
	require.True(t, ok)
	assert.Equal(t, int64(3), n)

	assert.Error(t, out.Scan(42))

	var empty JSONMap
	v, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
}

func TestStore_GetSetQuery(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetDocument(ctx, "users/u1/state/cart")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, store.SetDocumentMerge(ctx, "users/u1/state/cart", map[string]any{"version": 1}))
	require.NoError(t, store.SetDocumentMerge(ctx, "users/u1/state/cart", map[string]any{
		"selectedPackaging": "essential",
		"updatedAt":         time.Now().UTC(),
	}))

	doc, err := store.GetDocument(ctx, "users/u1/state/cart")
	require.NoError(t, err)
	assert.Equal(t, "essential", doc.Data["selectedPackaging"])
	n, _ := docstore.ToInt64(doc.Data["version"])
	assert.Equal(t, int64(1), n, "merge keeps earlier fields")

	require.NoError(t, store.SetDocumentMerge(ctx, "coupons/c1", map[string]any{"code": "SAVE10"}))
	require.NoError(t, store.SetDocumentMerge(ctx, "coupons/c2", map[string]any{"code": "OTHER"}))
	require.NoError(t, store.SetDocumentMerge(ctx, "archive/x/coupons/c3", map[string]any{"code": "SAVE10"}))

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
	}))

	err := store.RunAtomicBatch(ctx, []docstore.Op{
		docstore.SetOp("couponUsage/SAVE10__u2", map[string]any{"userId": "u2"}),
		docstore.IncrementOp("coupons/c1", "timesUsed", 1, &limit),
	})
	var limitErr *docstore.LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, "coupons/c1", limitErr.Path)

	_, err = store.GetDocument(ctx, "couponUsage/SAVE10__u2")
	assert.ErrorIs(t, err, docstore.ErrNotFound, "no partial write")

	err = store.RunAtomicBatch(ctx, []docstore.Op{
		docstore.RequireOp("coupons/c1", "timesUsed", 0),
		docstore.SetOp("coupons/c1", map[string]any{"note": "stale"}),
	})
	assert.ErrorIs(t, err, docstore.ErrConflict)

	doc, err := store.GetDocument(ctx, "coupons/c1")
	require.NoError(t, err)
	n, _ := docstore.ToInt64(doc.Data["timesUsed"])
	assert.Equal(t, int64(1), n)
	assert.Equal(t, "SAVE10", doc.Data["code"])
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
