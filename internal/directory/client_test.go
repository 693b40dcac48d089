package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `[2,["J18.9","J15.9"],null,[["J18.9","Pneumonia, unspecified organism"],["J15.9","Unspecified bacterial pneumonia"]]]`

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		BaseURL:     server.URL,
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
	}, nil)
}

func TestSearch_ParsesDisplayPairs(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pneumonia", r.URL.Query().Get("terms"))
		_, _ = w.Write([]byte(searchBody))
	}))

	matches, err := client.Search(context.Background(), "pneumonia", 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, Match{Code: "J18.9", Name: "Pneumonia, unspecified organism"}, matches[0])
}

func TestSearch_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(searchBody))
	}))

	matches, err := client.Search(context.Background(), "pneumonia", 5)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSearch_ExhaustedBudgetReturnsError(t *testing.T) {
	var calls int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.Search(context.Background(), "pneumonia", 5)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSearch_MalformedPayloadIsRetryable(t *testing.T) {
	var calls int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))

	_, err := client.Search(context.Background(), "pneumonia", 5)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSearch_ContextCancellationStopsRetrying(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Search(ctx, "pneumonia", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseSearchPayload_SkipsShortPairs(t *testing.T) {
	matches, err := parseSearchPayload([]byte(`[1,["A00"],null,[["A00"],["A01","Typhoid fever"]]]`))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "A01", matches[0].Code)
}
