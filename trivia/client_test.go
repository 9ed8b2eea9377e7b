package trivia

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

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientOptions{
		BaseURL:       srv.URL + "/",
		HTTPClient:    srv.Client(),
		MaxTries:      3,
		RetryInterval: time.Millisecond,
	})
	require.NoError(t, err)

	return c, srv
}

func TestClientCategories(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/categories", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "42", r.URL.Query().Get("offset"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"category":"SCIENCE","clue_count":12},
			{"category":5},
			{"nope":"x"},
			{"category":"world history"}
		]}`))
	})

	entries, err := c.Categories(context.Background(), 100, 42)
	require.NoError(t, err)

	assert.Equal(t, []CategoryEntry{
		{Name: "SCIENCE", ClueCount: 12},
		{Name: "world history"},
	}, entries)
}

func TestClientClues(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/clues", r.URL.Path)
		assert.Equal(t, "rock & roll", r.URL.Query().Get("category"))

		_, _ = w.Write([]byte(`{"data":[
			{"id":7,"value":200,"category":"rock & roll","clue":"Elvis hometown","response":"Tupelo"},
			{"id":8,"clue":"missing response"},
			{"id":9,"clue":["wrong"],"response":"type"},
			{"id":10,"clue":"Bell Jar author","response":"<i>Plath</i>"}
		]}`))
	})

	entries, err := c.Clues(context.Background(), "rock & roll")
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, ClueEntry{ID: 7, Value: 200, Category: "rock & roll", Clue: "Elvis hometown", Response: "Tupelo"}, entries[0])
	assert.Equal(t, "<i>Plath</i>", entries[1].Response)
}

func TestClientEmptyData(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	entries, err := c.Clues(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClientMalformed(t *testing.T) {
	for _, body := range []string{`not json`, `{"data":{}}`, `{"results":[]}`} {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})

		_, err := c.Categories(context.Background(), 10, 1)
		assert.ErrorIs(t, err, ErrSourceUnavailable, "body %q", body)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"category":"science"}]}`))
	})

	entries, err := c.Categories(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.EqualValues(t, 3, hits.Load())
}

func TestClientGivesUpAfterMaxTries(t *testing.T) {
	var hits atomic.Int32

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Categories(context.Background(), 10, 1)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.EqualValues(t, 3, hits.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Clues(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.EqualValues(t, 1, hits.Load())
}

func TestClientCancelled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Categories(ctx, 10, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(ClientOptions{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	c, err := NewClient(ClientOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL.String())
}
