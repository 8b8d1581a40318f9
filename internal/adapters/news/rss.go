// Package news recolecta titulares de feeds RSS/Atom configurados y los
// normaliza en señales headline-only.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/predictor/internal/domain"
)

const (
	freshnessWindow = 2 * time.Hour
	dedupRetention  = 24 * time.Hour
	fetchTimeout    = 10 * time.Second
)

// Feed es una entrada del registro YAML de feeds.
type Feed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Tier string `yaml:"tier"`
}

type feedsFile struct {
	Feeds []Feed `yaml:"feeds"`
}

// Collector consulta todos los feeds y filtra titulares frescos que casan
// con las keywords del mercado. Un feed caído no interrumpe el resto.
type Collector struct {
	feeds []Feed
	http  *http.Client
	log   *slog.Logger
	now   func() time.Time

	mu        sync.Mutex
	firstSeen map[string]time.Time // titular normalizado -> primera vez visto
}

// NewCollector carga el registro de feeds desde el YAML dado.
func NewCollector(path string, log *slog.Logger) (*Collector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("news.NewCollector: read %q: %w", path, err)
	}
	var f feedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("news.NewCollector: parse YAML: %w", err)
	}
	return &Collector{
		feeds:     f.Feeds,
		http:      &http.Client{Timeout: fetchTimeout},
		log:       log,
		now:       time.Now,
		firstSeen: make(map[string]time.Time),
	}, nil
}

// FetchHeadlines devuelve señales headline-only de las últimas 2 horas que
// contienen alguna keyword. El dedup por titular persiste 24h: un titular
// repetido conserva su primer timestamp y no se reemite.
func (c *Collector) FetchHeadlines(ctx context.Context, keywords []string) ([]domain.Signal, error) {
	now := c.now()
	c.pruneDedup(now)

	var out []domain.Signal
	for _, feed := range c.feeds {
		items, err := c.fetchFeed(ctx, feed)
		if err != nil {
			c.log.Warn("feed fetch failed", "feed", feed.Name, "error", err)
			continue
		}
		for _, item := range items {
			if now.Sub(item.published) > freshnessWindow {
				continue
			}
			if !matchesKeywords(item.title, keywords) {
				continue
			}
			if c.alreadySeen(item.title, now) {
				continue
			}
			out = append(out, domain.Signal{
				SourceKind:   domain.SourceRSS,
				SourceTier:   tierOf(feed.Tier),
				Content:      item.title,
				Credibility:  tierOf(feed.Tier).Credibility(),
				Author:       feed.Name,
				Timestamp:    item.published,
				HeadlineOnly: true,
			})
		}
	}
	return out, nil
}

type feedItem struct {
	title     string
	published time.Time
}

// rssDoc cubre RSS 2.0 y Atom con un solo esquema tolerante.
type rssDoc struct {
	XMLName xml.Name
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title   string `xml:"title"`
	PubDate string `xml:"pubDate"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Updated string `xml:"updated"`
}

func (c *Collector) fetchFeed(ctx context.Context, feed Feed) ([]feedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var doc rssDoc
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}

	var items []feedItem
	for _, it := range doc.Channel.Items {
		items = append(items, feedItem{title: strings.TrimSpace(it.Title), published: parseFeedTime(it.PubDate)})
	}
	for _, e := range doc.Entries {
		items = append(items, feedItem{title: strings.TrimSpace(e.Title), published: parseFeedTime(e.Updated)})
	}
	return items, nil
}

// parseFeedTime acepta los formatos habituales de RSS y Atom.
func parseFeedTime(s string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func matchesKeywords(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimPrefix(kw, "$"))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (c *Collector) alreadySeen(title string, now time.Time) bool {
	key := strings.ToLower(strings.TrimSpace(title))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.firstSeen[key]; ok {
		return true
	}
	c.firstSeen[key] = now
	return false
}

func (c *Collector) pruneDedup(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, seen := range c.firstSeen {
		if now.Sub(seen) > dedupRetention {
			delete(c.firstSeen, k)
		}
	}
}

func tierOf(s string) domain.SourceTier {
	switch strings.ToLower(s) {
	case "s1":
		return domain.TierS1
	case "s2":
		return domain.TierS2
	case "s3":
		return domain.TierS3
	default:
		return domain.TierS6
	}
}
