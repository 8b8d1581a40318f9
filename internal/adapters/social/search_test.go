package social

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictor/internal/classifier"
	"github.com/alejandrodnm/predictor/internal/domain"
)

const testRegistry = `
s1:
  handles: [reuters]
  domains: []
expert_bio_keywords: [analyst]
`

func testSearcher(t *testing.T, srv *httptest.Server) *Searcher {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRegistry), 0o644))
	reg, err := classifier.LoadRegistry(path)
	require.NoError(t, err)

	base := ""
	if srv != nil {
		base = srv.URL
	}
	return NewSearcher(base, "test-key", reg, slog.Default())
}

const searchBody = `{
	"data": [
		{"text": "Fed cuts rates, confirmed by official statement", "author_id": "1",
		 "created_at": "2026-03-10T11:50:00Z",
		 "public_metrics": {"like_count": 500, "retweet_count": 100, "reply_count": 20}},
		{"text": "Fed cuts rates confirmed by the official statement", "author_id": "2",
		 "created_at": "2026-03-10T11:52:00Z",
		 "public_metrics": {"like_count": 50, "retweet_count": 5, "reply_count": 2}},
		{"text": "hot take nobody saw this coming", "author_id": "3",
		 "created_at": "2026-03-10T11:55:00Z",
		 "public_metrics": {"like_count": 2, "retweet_count": 0, "reply_count": 0}},
		{"text": "rates commentary from an amplifier", "author_id": "4",
		 "created_at": "2026-03-10T11:56:00Z",
		 "public_metrics": {"like_count": 90, "retweet_count": 10, "reply_count": 5}}
	],
	"includes": {"users": [
		{"id": "1", "username": "reuters", "name": "Reuters",
		 "public_metrics": {"followers_count": 25000000, "following_count": 1000}},
		{"id": "2", "username": "randomtrader", "name": "Trader Joe",
		 "public_metrics": {"followers_count": 5000, "following_count": 300}},
		{"id": "3", "username": "smallaccount", "name": "Small",
		 "public_metrics": {"followers_count": 120000, "following_count": 100}},
		{"id": "4", "username": "newsfeed_hourly", "name": "News Feed",
		 "public_metrics": {"followers_count": 80000, "following_count": 200}}
	]}
}`

func TestSearch_PrefilterDedupAndOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("query"), "Fed")
		_, _ = w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	s := testSearcher(t, srv)
	signals, err := s.Search(context.Background(), []string{"Fed", "rates"})
	require.NoError(t, err)

	// El post 3 cae por engagement, el 4 por nombre de bot/feed, y el 2 es
	// casi idéntico al 1: queda solo el de Reuters.
	require.Len(t, signals, 1)
	assert.Equal(t, "reuters", signals[0].Author)
	assert.Equal(t, domain.TierS1, signals[0].SourceTier)
	assert.Equal(t, 620, signals[0].Engagement)
}

func TestSearch_TransportFailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	srv.Close() // conexión rechazada

	s := testSearcher(t, srv)
	signals, err := s.Search(context.Background(), []string{"Fed"})
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestTokenOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, tokenOverlap("Fed cuts rates today", "fed cuts rates today!"), 1e-9)
	assert.Less(t, tokenOverlap("Fed cuts rates", "completely different text here"), 0.5)
}

func TestLooksLikeBot(t *testing.T) {
	assert.True(t, looksLikeBot(searchUser{Name: "CryptoBot 3000", Username: "cb3000"}))
	assert.True(t, looksLikeBot(searchUser{Name: "Hourly", Username: "news_autopost"}))
	assert.False(t, looksLikeBot(searchUser{Name: "Jane Doe", Username: "janedoe"}))
}
