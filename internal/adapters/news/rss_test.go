package news

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictor/internal/domain"
)

var newsNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func rssBody(items ...string) string {
	body := `<?xml version="1.0"?><rss version="2.0"><channel>`
	for _, it := range items {
		body += it
	}
	return body + `</channel></rss>`
}

func rssItemXML(title string, published time.Time) string {
	return fmt.Sprintf("<item><title>%s</title><pubDate>%s</pubDate></item>",
		title, published.Format(time.RFC1123Z))
}

func testCollector(t *testing.T, servers map[string]*httptest.Server) *Collector {
	t.Helper()
	c := &Collector{
		http:      &http.Client{},
		log:       slog.Default(),
		now:       func() time.Time { return newsNow },
		firstSeen: make(map[string]time.Time),
	}
	tier := "s1"
	for name, srv := range servers {
		c.feeds = append(c.feeds, Feed{Name: name, URL: srv.URL, Tier: tier})
		tier = "s2"
	}
	return c
}

func TestFetchHeadlines_FreshMatchingOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rssBody(
			rssItemXML("Fed announces surprise rate cut", newsNow.Add(-30*time.Minute)),
			rssItemXML("Fed chair speech from yesterday", newsNow.Add(-5*time.Hour)),
			rssItemXML("Local sports roundup", newsNow.Add(-10*time.Minute)),
		)))
	}))
	defer srv.Close()

	c := testCollector(t, map[string]*httptest.Server{"feed-a": srv})
	signals, err := c.FetchHeadlines(context.Background(), []string{"Fed"})
	require.NoError(t, err)

	require.Len(t, signals, 1)
	assert.Equal(t, "Fed announces surprise rate cut", signals[0].Content)
	assert.True(t, signals[0].HeadlineOnly)
	assert.Equal(t, domain.TierS1, signals[0].SourceTier)
	assert.Equal(t, domain.SourceRSS, signals[0].SourceKind)
}

func TestFetchHeadlines_DedupAcrossCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rssBody(
			rssItemXML("Bitcoin breaks 100k", newsNow.Add(-15*time.Minute)),
		)))
	}))
	defer srv.Close()

	c := testCollector(t, map[string]*httptest.Server{"feed-a": srv})

	first, err := c.FetchHeadlines(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := c.FetchHeadlines(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
	assert.Empty(t, second, "el mismo titular no se reemite")
}

func TestFetchHeadlines_BrokenFeedIsolated(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rssBody(
			rssItemXML("Bitcoin ETF approved", newsNow.Add(-5*time.Minute)),
		)))
	}))
	defer ok.Close()

	c := testCollector(t, map[string]*httptest.Server{"broken": broken, "ok": ok})
	signals, err := c.FetchHeadlines(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
	assert.Len(t, signals, 1)
}

func TestFetchHeadlines_AtomEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := fmt.Sprintf(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom">
			<entry><title>Ethereum upgrade ships</title><updated>%s</updated></entry>
		</feed>`, newsNow.Add(-20*time.Minute).Format(time.RFC3339))
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := testCollector(t, map[string]*httptest.Server{"atom": srv})
	signals, err := c.FetchHeadlines(context.Background(), []string{"ethereum"})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "Ethereum upgrade ships", signals[0].Content)
}
