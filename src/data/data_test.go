package data

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realfinder/verifier/src/verification/types"
)

func TestEnsureParam(t *testing.T) {
	assert.Equal(t, "u:p@tcp(db)/v?parseTime=true", ensureParam("u:p@tcp(db)/v", "parseTime", "true"))
	assert.Equal(t, "u:p@tcp(db)/v?a=b&parseTime=true", ensureParam("u:p@tcp(db)/v?a=b", "parseTime", "true"))
	assert.Equal(t, "u:p@tcp(db)/v?parseTime=false", ensureParam("u:p@tcp(db)/v?parseTime=false", "parseTime", "true"))
}

func TestSettingsCache(t *testing.T) {
	ReplaceSettings(map[string]string{"model": "gemini-2.5-pro"})
	t.Cleanup(func() { ReplaceSettings(nil) })

	assert.Equal(t, map[string]string{"model": "gemini-2.5-pro"}, Settings())

	copied := Settings()
	copied["model"] = "changed"
	assert.Equal(t, "gemini-2.5-pro", Settings()["model"])
}

func TestStreamValues(t *testing.T) {
	d := &types.Decision{
		ID:            "d-1",
		SubjectType:   types.SubjectBroker,
		SubjectID:     "B-7",
		Decision:      types.Flag,
		CombinedScore: 0.61234,
		PerCheck:      map[string]types.CheckResult{"document": {Status: types.StatusPass, ConfidenceScore: 0.7}},
		DecidedAt:     time.Unix(1700000000, 0).UTC(),
	}
	v, err := streamValues(d)
	require.NoError(t, err)
	assert.Equal(t, "FLAG", v["decision"])
	assert.Equal(t, "0.6123", v["combined_score"])
	assert.Equal(t, int64(1700000000), v["time"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(v["payload"].(string)), &payload))
	assert.Contains(t, payload, "document")
}

// Runs against a real server when VERIFIER_TEST_REDIS_URL is set.
func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("VERIFIER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("VERIFIER_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	rdb, err := ConnectRedis(ctx, url)
	require.NoError(t, err)
	defer rdb.Close()

	cache := NewRedisCache(rdb)
	_, ok, err := cache.Get(ctx, "verifier:test:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "verifier:test:key", []byte(`{"score":1}`), time.Minute))
	val, ok, err := cache.Get(ctx, "verifier:test:key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"score":1}`, string(val))

	pub := NewStreamPublisher(rdb, "verifier.test.decisions")
	require.NoError(t, pub.Publish(ctx, &types.Decision{ID: "x", Decision: types.Approve, DecidedAt: time.Now()}))
}
