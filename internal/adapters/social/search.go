// Package social busca posts recientes en la API de búsqueda de X y los
// normaliza en señales con tier asignado por el classifier.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/predictor/internal/classifier"
	"github.com/alejandrodnm/predictor/internal/domain"
)

const (
	defaultBase = "https://api.x.com/2"
	searchPath  = "/tweets/search/recent"

	maxSignals     = 10
	minFollowers   = 1000
	minEngagement  = 10
	dedupOverlap   = 0.8
	searchTimeout  = 10 * time.Second
	searchPerSec   = 1 // la API de búsqueda es la más restrictiva
)

// Searcher implementa ports.SocialSearcher.
type Searcher struct {
	http     *http.Client
	base     string
	apiKey   string
	registry *classifier.Registry
	limiter  *rate.Limiter
	log      *slog.Logger
	now      func() time.Time
}

// NewSearcher crea el buscador. base vacío usa la API de producción.
func NewSearcher(base, apiKey string, registry *classifier.Registry, log *slog.Logger) *Searcher {
	if base == "" {
		base = defaultBase
	}
	return &Searcher{
		http:     &http.Client{Timeout: searchTimeout},
		base:     base,
		apiKey:   apiKey,
		registry: registry,
		limiter:  rate.NewLimiter(searchPerSec, 2),
		log:      log,
		now:      time.Now,
	}
}

type searchResponse struct {
	Data []struct {
		Text      string `json:"text"`
		AuthorID  string `json:"author_id"`
		CreatedAt string `json:"created_at"`
		Metrics   struct {
			Likes    int `json:"like_count"`
			Retweets int `json:"retweet_count"`
			Replies  int `json:"reply_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []searchUser `json:"users"`
	} `json:"includes"`
}

type searchUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Verified  bool   `json:"verified"`
	Bio       string `json:"description"`
	Metrics   struct {
		Followers int `json:"followers_count"`
		Following int `json:"following_count"`
	} `json:"public_metrics"`
}

// Search devuelve como máximo 10 señales ordenadas por credibilidad. Un
// fallo de transporte degrada a lista vacía: el pipeline sigue con las
// señales de noticias y de mercado.
func (s *Searcher) Search(ctx context.Context, keywords []string) ([]domain.Signal, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, nil
	}

	resp, err := s.fetch(ctx, keywords)
	if err != nil {
		s.log.Warn("social search failed", "error", err)
		return nil, nil
	}

	users := make(map[string]searchUser, len(resp.Includes.Users))
	for _, u := range resp.Includes.Users {
		users[u.ID] = u
	}

	var signals []domain.Signal
	for _, post := range resp.Data {
		user, ok := users[post.AuthorID]
		if !ok {
			continue
		}
		engagement := post.Metrics.Likes + post.Metrics.Retweets + post.Metrics.Replies
		if !passesPrefilter(user, engagement) {
			continue
		}

		tier := s.registry.Classify(classifier.Source{
			Kind:      domain.SourceSocial,
			Handle:    user.Username,
			Verified:  user.Verified,
			Followers: user.Metrics.Followers,
			Bio:       user.Bio,
		})

		ts := s.now()
		if t, err := time.Parse(time.RFC3339, post.CreatedAt); err == nil {
			ts = t
		}
		signals = append(signals, domain.Signal{
			SourceKind:  domain.SourceSocial,
			SourceTier:  tier,
			Content:     post.Text,
			Credibility: tier.Credibility(),
			Author:      user.Username,
			Followers:   user.Metrics.Followers,
			Engagement:  engagement,
			Timestamp:   ts,
		})
	}

	signals = dedupByOverlap(signals)
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Credibility > signals[j].Credibility
	})
	if len(signals) > maxSignals {
		signals = signals[:maxSignals]
	}
	return signals, nil
}

func (s *Searcher) fetch(ctx context.Context, keywords []string) (*searchResponse, error) {
	query := strings.Join(keywords, " OR ")
	u := fmt.Sprintf("%s%s?query=%s&expansions=author_id&tweet.fields=created_at,public_metrics&user.fields=verified,description,public_metrics",
		s.base, searchPath, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}

// passesPrefilter descarta cuentas pequeñas, posts sin tracción y bots
// evidentes antes de gastar contexto del LM.
func passesPrefilter(user searchUser, engagement int) bool {
	if user.Metrics.Followers < minFollowers || engagement < minEngagement {
		return false
	}
	return !looksLikeBot(user)
}

func looksLikeBot(user searchUser) bool {
	name := strings.ToLower(user.Name + " " + user.Username)
	for _, marker := range []string{"bot", "autopost", "feed"} {
		if strings.Contains(name, marker) {
			return true
		}
	}
	// Ratio de seguimiento absurdo: típico de redes de amplificación.
	if user.Metrics.Followers > 0 && float64(user.Metrics.Following)/float64(user.Metrics.Followers) > 50 {
		return true
	}
	return false
}

// dedupByOverlap descarta posts casi idénticos (80% de tokens compartidos),
// conservando el primero visto.
func dedupByOverlap(signals []domain.Signal) []domain.Signal {
	var kept []domain.Signal
	for _, s := range signals {
		dup := false
		for _, k := range kept {
			if tokenOverlap(s.Content, k.Content) >= dedupOverlap {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, s)
		}
	}
	return kept
}

// tokenOverlap devuelve la fracción de tokens del texto menor presentes en
// el mayor.
func tokenOverlap(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	small, big := ta, tb
	if len(tb) < len(ta) {
		small, big = tb, ta
	}
	shared := 0
	for tok := range small {
		if big[tok] {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		out[strings.Trim(tok, ".,!?#@:;\"'()")] = true
	}
	delete(out, "")
	return out
}
