package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subman/internal/config"
	"github.com/magabrotheeeer/subman/internal/models"
)

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewRedis(context.Background(), config.Cache{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func backends(t *testing.T) map[string]Cache {
	r, _ := setupRedis(t)
	return map[string]Cache{
		"redis":  r,
		"memory": NewMemory(time.Minute),
	}
}

func TestCache_SetAndGet(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			expected := models.Subscription{
				ID:             7,
				UserID:         1,
				Name:           "Netflix",
				Price:          999,
				Category:       models.CategoryStreaming,
				BillingCycle:   models.CycleMonthly,
				DueDate:        time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
				PaymentHistory: []string{"2023-12-10"},
			}
			require.NoError(t, c.Set("subscription:7", expected, time.Minute))

			var actual models.Subscription
			found, err := c.Get("subscription:7", &actual)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, expected, actual)
		})
	}
}

func TestCache_GetNotFound(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var out models.Subscription
			found, err := c.Get("no_such_key", &out)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestCache_Invalidate(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Set("key", "value", time.Minute))
			require.NoError(t, c.Invalidate("key"))
			require.NoError(t, c.Invalidate("key"))

			var out string
			found, err := c.Get("key", &out)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestCache_SetUnmarshalable(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := c.Set("bad", make(chan int), time.Minute)
			assert.Error(t, err)
		})
	}
}

func TestRedis_GetInvalidJSON(t *testing.T) {
	c, mr := setupRedis(t)
	require.NoError(t, mr.Set("bad", "not-json"))

	var out models.Subscription
	found, err := c.Get("bad", &out)
	assert.False(t, found)
	assert.Error(t, err)
}

func TestRedis_Expiration(t *testing.T) {
	c, mr := setupRedis(t)
	require.NoError(t, c.Set("short", 1, time.Second))

	mr.FastForward(2 * time.Second)

	var out int
	found, err := c.Get("short", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewRedis_InvalidAddr(t *testing.T) {
	c, err := NewRedis(context.Background(), config.Cache{Address: "127.0.0.1:1"})
	assert.Nil(t, c)
	assert.Error(t, err)
}

func TestNew_PicksBackend(t *testing.T) {
	mem, err := New(context.Background(), config.Cache{TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, mem)

	mr := miniredis.RunT(t)
	red, err := New(context.Background(), config.Cache{Address: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, red)
	_ = red.(*Redis).Close()
}
