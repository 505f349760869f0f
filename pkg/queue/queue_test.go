package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-insights/pkg/logger"
)

func setupPublisher(t *testing.T) (*Publisher, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log, err := logger.New("error", "console")
	require.NoError(t, err)

	return NewPublisher(client, 1000, log), client
}

func TestPublisher_Publish(t *testing.T) {
	p, client := setupPublisher(t)
	ctx := context.Background()

	type job struct {
		JobID      string `json:"job_id"`
		LocationID string `json:"location_id"`
	}

	id, err := p.Publish(ctx, "review.scrape.jobs", job{JobID: "scrape-loc-1-1", LocationID: "loc-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "review.scrape.jobs", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got job
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &got))
	assert.Equal(t, "scrape-loc-1-1", got.JobID)
	assert.Equal(t, "loc-1", got.LocationID)
}

func TestEnsureGroup_Idempotent(t *testing.T) {
	_, client := setupPublisher(t)
	ctx := context.Background()

	require.NoError(t, EnsureGroup(ctx, client, "review.scrape.jobs", "worker-group"))
	require.NoError(t, EnsureGroup(ctx, client, "review.scrape.jobs", "worker-group"))

	groups, err := client.XInfoGroups(ctx, "review.scrape.jobs").Result()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "worker-group", groups[0].Name)
}
