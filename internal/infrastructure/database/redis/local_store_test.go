package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/commerce-session/internal/domain/persistence"
)

func setupLocalStore(t *testing.T, ttl time.Duration) (*LocalStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLocalStore(NewFromClient(rdb), ttl), mr
}

func TestLocalStore_SetGet(t *testing.T) {
	store, mr := setupLocalStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "session:dev-1:cart", []byte(`{"version":1}`)))

	got, err := store.Get(ctx, "session:dev-1:cart")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1}`, string(got))
	assert.Equal(t, time.Hour, mr.TTL("session:dev-1:cart"))
}

func TestLocalStore_Miss(t *testing.T) {
	store, _ := setupLocalStore(t, time.Hour)

	_, err := store.Get(context.Background(), "session:nobody:cart")
	assert.ErrorIs(t, err, persistence.ErrMiss)
}

func TestLocalStore_Expiry(t *testing.T) {
	store, mr := setupLocalStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "session:dev-1:wishlist", []byte(`{}`)))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "session:dev-1:wishlist")
	assert.ErrorIs(t, err, persistence.ErrMiss)
}

func TestLocalStore_Delete(t *testing.T) {
	store, _ := setupLocalStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v")))
	require.NoError(t, store.Delete(ctx, "k"))

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, persistence.ErrMiss)
}

func TestLocalStore_ConnectionError(t *testing.T) {
	store, mr := setupLocalStore(t, time.Hour)
	mr.Close()

	_, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, persistence.ErrMiss)
}
