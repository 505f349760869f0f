package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-insights/pkg/logger"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log, err := logger.New("error", "console")
	require.NoError(t, err)

	return New(client, log), mr
}

func TestStore_SetGet(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	s.Set(ctx, "reviews:loc-1", payload{Name: "cafe", Count: 42}, TTLReviews)

	var got payload
	require.True(t, s.Get(ctx, "reviews:loc-1", &got))
	assert.Equal(t, "cafe", got.Name)
	assert.Equal(t, 42, got.Count)

	assert.False(t, s.Get(ctx, "reviews:loc-missing", &got))
}

func TestStore_GetSurvivesLocalEviction(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	s.Set(ctx, "location:stats:loc-1", map[string]int{"total": 7}, TTLStats)
	s.local.Flush()

	var got map[string]int
	require.True(t, s.Get(ctx, "location:stats:loc-1", &got))
	assert.Equal(t, 7, got["total"])
}

func TestStore_DeleteByPattern(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	s.Set(ctx, "insight:ctx:u1:loc:loc-1", "a", TTLShort)
	s.Set(ctx, "insight:ctx:u1:locs:loc-1+loc-2", "b", TTLShort)
	s.Set(ctx, "insight:ctx:u2:loc:loc-3", "c", TTLShort)

	deleted := s.DeleteByPattern(ctx, "insight:ctx:*loc-1*")
	assert.Equal(t, 2, deleted)

	var v string
	assert.False(t, s.Has(ctx, "insight:ctx:u1:loc:loc-1"))
	assert.False(t, s.Has(ctx, "insight:ctx:u1:locs:loc-1+loc-2"))
	assert.True(t, s.Get(ctx, "insight:ctx:u2:loc:loc-3", &v))
}

func TestStore_InvalidateLocation(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	s.Set(ctx, LocationReviewsKey("loc-1"), "reviews", TTLReviews)
	s.Set(ctx, LocationStatsKey("loc-1"), "stats", TTLStats)
	s.Set(ctx, BuildContextKey("u1", []string{"loc-1", "loc-2"}), "multi", TTLShort)
	s.Set(ctx, BuildContextKey("u1", nil), "global", TTLShort)
	s.Set(ctx, LocationReviewsKey("loc-other"), "keep", TTLReviews)

	s.InvalidateLocation(ctx, "loc-1")

	assert.False(t, s.Has(ctx, LocationReviewsKey("loc-1")))
	assert.False(t, s.Has(ctx, LocationStatsKey("loc-1")))
	assert.False(t, s.Has(ctx, BuildContextKey("u1", []string{"loc-1", "loc-2"})))
	assert.False(t, s.Has(ctx, BuildContextKey("u1", nil)))
	assert.True(t, s.Has(ctx, LocationReviewsKey("loc-other")))
}

func TestStore_ErrorsAreSwallowed(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	s.Set(ctx, "reviews:loc-1", "x", TTLReviews)
	mr.Close()
	s.local.Flush()

	var got string
	assert.False(t, s.Get(ctx, "reviews:loc-1", &got))
	assert.NotPanics(t, func() {
		s.Set(ctx, "reviews:loc-1", "y", TTLReviews)
		s.Delete(ctx, "reviews:loc-1")
		s.DeleteByPattern(ctx, "reviews:*")
	})
}

func TestBuildContextKey_Symmetry(t *testing.T) {
	a := BuildContextKey("u1", []string{"loc-b", "loc-a"})
	b := BuildContextKey("u1", []string{"loc-a", "loc-b"})
	assert.Equal(t, a, b)

	assert.Equal(t, "insight:ctx:u1:global", BuildContextKey("u1", nil))
	assert.Equal(t, "insight:ctx:u1:loc:loc-a", BuildContextKey("u1", []string{"loc-a"}))
	assert.NotEqual(t, BuildContextKey("u1", []string{"loc-a"}), BuildContextKey("u2", []string{"loc-a"}))
}

func TestLocalTTLCap(t *testing.T) {
	assert.Equal(t, localTTLCap, localTTL(TTLReviews))
	assert.Equal(t, time.Minute, localTTL(time.Minute))
	assert.Equal(t, localTTLCap, localTTL(0))
}
