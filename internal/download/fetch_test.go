package download

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetchChunkRetryThenSucceed(t *testing.T) {
	data := testData(100)
	ts := newTestServer(t, data)
	var failures atomic.Int64
	ts.getStatus = func(start int64) int {
		// First two attempts fail, the third succeeds.
		if failures.Add(1) <= 2 {
			return http.StatusInternalServerError
		}
		return 0
	}
	sink := newRecordingSink()
	engine := New(Config{
		URL:   ts.srv.URL,
		Retry: RetryPolicy{MaxAttempts: 3},
	}, ts.srv.Client(), sink)

	chunk := Chunk{Index: 0, StartByte: 0, EndByte: 24, Ranged: true}
	segment, err := engine.fetchChunk(context.Background(), chunk)
	require.NoError(t, err)
	require.Equal(t, data[:25], segment.Data)
	require.Equal(t, int64(3), ts.getCount.Load())
	// Rollbacks keep the counters honest across failed attempts.
	require.Equal(t, int64(25), sink.aggregate)
	require.Equal(t, int64(25), sink.perSegment[0])
}

func TestFetchChunkExhausted(t *testing.T) {
	ts := newTestServer(t, testData(100))
	ts.getStatus = func(start int64) int { return http.StatusBadGateway }
	sink := newRecordingSink()
	engine := New(Config{
		URL:   ts.srv.URL,
		Retry: RetryPolicy{MaxAttempts: 4},
	}, ts.srv.Client(), sink)

	chunk := Chunk{Index: 2, StartByte: 50, EndByte: 74, Ranged: true}
	_, err := engine.fetchChunk(context.Background(), chunk)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 4, exhausted.Attempts)
	require.Equal(t, chunk, exhausted.Chunk)
	require.Equal(t, int64(4), ts.getCount.Load())
	require.Equal(t, int64(0), sink.aggregate)
}

func TestFetchChunkBackoffWaits(t *testing.T) {
	ts := newTestServer(t, testData(100))
	var failures atomic.Int64
	ts.getStatus = func(start int64) int {
		if failures.Add(1) <= 2 {
			return http.StatusInternalServerError
		}
		return 0
	}
	engine := New(Config{
		URL:   ts.srv.URL,
		Retry: RetryPolicy{MaxAttempts: 3, Delay: 30 * time.Millisecond},
	}, ts.srv.Client(), nil)

	started := time.Now()
	_, err := engine.fetchChunk(context.Background(), Chunk{Index: 0, StartByte: 0, EndByte: 9, Ranged: true})
	require.NoError(t, err)
	// Two failed attempts mean exactly two backoff waits.
	require.GreaterOrEqual(t, time.Since(started), 60*time.Millisecond)
}

func TestFetchChunkShortBodyRetries(t *testing.T) {
	data := testData(100)
	ts := newTestServer(t, data)
	engine := New(Config{
		URL:   ts.srv.URL,
		Retry: RetryPolicy{MaxAttempts: 2},
	}, ts.srv.Client(), nil)

	// The server clamps the range to the resource, so asking past the end
	// yields fewer bytes than the chunk span.
	chunk := Chunk{Index: 0, StartByte: 50, EndByte: 199, Ranged: true}
	_, err := engine.fetchChunk(context.Background(), chunk)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.ErrorContains(t, err, "size mismatch")
	require.Equal(t, int64(2), ts.getCount.Load())
}

func TestStatusAllowed(t *testing.T) {
	cfg := Config{}
	require.True(t, cfg.statusAllowed(200))
	require.True(t, cfg.statusAllowed(206))
	require.True(t, cfg.statusAllowed(299))
	require.False(t, cfg.statusAllowed(304))
	require.False(t, cfg.statusAllowed(404))
	require.False(t, cfg.statusAllowed(500))

	cfg.AllowedStatusCodes = []int{304}
	require.True(t, cfg.statusAllowed(304))
	require.True(t, cfg.statusAllowed(200), "the 2xx allow-list always applies")
	require.False(t, cfg.statusAllowed(404))
}
