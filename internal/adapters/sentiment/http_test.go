package sentiment_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltabot/internal/adapters/sentiment"
)

func TestFetch_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sentiment", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"score":0.72,"confidence":0.9}`)
	}))
	defer srv.Close()

	p, err := sentiment.New(sentiment.Config{BaseURL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)

	score, err := p.Fetch(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 0.72, score.Score, 1e-9)
	assert.InDelta(t, 0.9, score.Confidence, 1e-9)
	assert.False(t, score.FetchedAt.IsZero())
}

func TestFetch_CachesWithinTTL(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"score":0.5,"confidence":1}`)
	}))
	defer srv.Close()

	p, err := sentiment.New(sentiment.Config{BaseURL: srv.URL, TTL: time.Minute})
	require.NoError(t, err)

	_, err = p.Fetch(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	_, err = p.Fetch(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// a different symbol is a different cache entry
	_, err = p.Fetch(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"score":0.6,"confidence":0.8}`)
	}))
	defer srv.Close()

	p, err := sentiment.New(sentiment.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	score, err := p.Fetch(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, score.Score, 1e-9)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_ClientErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown symbol", http.StatusNotFound)
	}))
	defer srv.Close()

	p, err := sentiment.New(sentiment.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Fetch(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := sentiment.New(sentiment.Config{})
	assert.Error(t, err)
}
