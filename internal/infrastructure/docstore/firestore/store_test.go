package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/commerce-session/internal/domain/docstore"
	"github.com/your-org/commerce-session/internal/pkg/logger"
)

// The client library talks to the emulator when FIRESTORE_EMULATOR_HOST is set
func setupTestStore(t *testing.T) *Store {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()

	client, err := NewClient(ctx, "commerce-session-test", "")
	require.NoError(t, err)

	store := NewStore(client, logger.Discard().Logger)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// unique keeps runs against a long-lived emulator apart
func unique(t *testing.T, prefix string) string {
	return fmt.Sprintf("%s-%s-%d", prefix, t.Name(), time.Now().UnixNano())
}

func TestStore_GetSetQuery(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	user := unique(t, "u")
	path := "users/" + user + "/state/cart"

	_, err := store.GetDocument(ctx, path)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, store.SetDocumentMerge(ctx, path, map[string]any{"version": 1}))
	require.NoError(t, store.SetDocumentMerge(ctx, path, map[string]any{"selectedPackaging": "essential"}))

	doc, err := store.GetDocument(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "essential", doc.Data["selectedPackaging"])
	n, _ := docstore.ToInt64(doc.Data["version"])
	assert.Equal(t, int64(1), n)

	code := unique(t, "CODE")
	require.NoError(t, store.SetDocumentMerge(ctx, "coupons/"+code, map[string]any{"code": code}))
	docs, err := store.QueryByField(ctx, "coupons", "code", code)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, code, docs[0].ID())
}

func TestStore_RunAtomicBatch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	couponPath := "coupons/" + unique(t, "c")
	usagePath := "couponUsage/" + unique(t, "usage")
	limit := int64(1)

	require.NoError(t, store.RunAtomicBatch(ctx, []docstore.Op{
		docstore.RequireOp(couponPath, "timesUsed", 0),
		docstore.IncrementOp(couponPath, "timesUsed", 1, &limit),
	}))

	err := store.RunAtomicBatch(ctx, []docstore.Op{
		docstore.SetOp(usagePath, map[string]any{"userId": "u1"}),
		docstore.IncrementOp(couponPath, "timesUsed", 1, &limit),
	})
	var limitErr *docstore.LimitError
	require.True(t, errors.As(err, &limitErr))

	_, err = store.GetDocument(ctx, usagePath)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	err = store.RunAtomicBatch(ctx, []docstore.Op{
		docstore.RequireOp(couponPath, "timesUsed", 0),
		docstore.SetOp(couponPath, map[string]any{"note": "stale"}),
	})
	assert.ErrorIs(t, err, docstore.ErrConflict)
}
