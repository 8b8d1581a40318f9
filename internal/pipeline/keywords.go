// Package pipeline construye el contexto por mercado: extracción de
// keywords de búsqueda y ensamblado del prompt para el LM.
package pipeline

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/alejandrodnm/predictor/internal/domain"
	"github.com/alejandrodnm/predictor/internal/ports"
)

const maxKeywords = 5

var (
	// Secuencias de palabras capitalizadas (entidades nombradas).
	reEntity = regexp.MustCompile(`\b[A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+){0,2}\b`)
	// Acrónimos de 2 a 6 letras mayúsculas.
	reAcronym = regexp.MustCompile(`\b[A-Z]{2,6}\b`)
	// Tickers con prefijo $.
	reTicker = regexp.MustCompile(`\$[A-Z]{2,6}\b`)
)

// Palabras capitalizadas de inicio de pregunta que no son entidades.
var stopwords = map[string]bool{
	"will": true, "who": true, "what": true, "when": true, "where": true,
	"which": true, "how": true, "does": true, "did": true, "is": true,
	"are": true, "the": true, "a": true, "an": true, "by": true,
	"before": true, "after": true, "above": true, "below": true,
	"yes": true, "no": true, "or": true, "and": true, "in": true,
	"on": true, "at": true, "to": true, "of": true, "be": true,
	"reach": true, "hit": true, "win": true, "close": true, "end": true,
}

// Keywords extra por tipo de mercado, añadidas tras la extracción.
var typeSupplements = map[domain.MarketType][]string{
	domain.TypeCrypto15m:  {"bitcoin", "crypto"},
	domain.TypeEconomic:   {"fed", "inflation"},
	domain.TypePolitical:  {"election"},
	domain.TypeRegulatory: {"sec", "regulation"},
}

// KeywordExtractor extrae 2-5 entidades de búsqueda de una pregunta de
// mercado. Cachea por market_id porque la pregunta no cambia entre escaneos.
type KeywordExtractor struct {
	completer ports.Completer
	log       *slog.Logger

	mu    sync.Mutex
	cache map[string][]string
}

// NewKeywordExtractor crea el extractor. El completer se usa solo como
// fallback cuando la extracción por regex no produce al menos 2 entidades.
func NewKeywordExtractor(completer ports.Completer, log *slog.Logger) *KeywordExtractor {
	return &KeywordExtractor{
		completer: completer,
		log:       log,
		cache:     make(map[string][]string),
	}
}

// Extract devuelve las keywords para el mercado, usando la caché si existe.
func (k *KeywordExtractor) Extract(ctx context.Context, m domain.Market) []string {
	k.mu.Lock()
	if cached, ok := k.cache[m.MarketID]; ok {
		k.mu.Unlock()
		return cached
	}
	k.mu.Unlock()

	kws := extractByRegex(m.Question)
	if len(kws) < 2 && k.completer != nil {
		llmKws, err := k.completer.ExtractKeywords(ctx, m.Question)
		if err != nil {
			k.log.Warn("keyword fallback failed", "market_id", m.MarketID, "error", err)
		} else {
			kws = merge(kws, llmKws)
		}
	}
	kws = merge(kws, typeSupplements[m.MarketType])
	if len(kws) > maxKeywords {
		kws = kws[:maxKeywords]
	}

	k.mu.Lock()
	k.cache[m.MarketID] = kws
	k.mu.Unlock()
	return kws
}

func extractByRegex(question string) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(s string) {
		s = strings.TrimSpace(s)
		lower := strings.ToLower(s)
		if s == "" || stopwords[lower] || seen[lower] {
			return
		}
		seen[lower] = true
		out = append(out, s)
	}

	for _, t := range reTicker.FindAllString(question, -1) {
		add(t)
	}
	for _, e := range reEntity.FindAllString(question, -1) {
		// Descarta el primer token si es stopword ("Will Trump" -> "Trump").
		words := strings.Fields(e)
		for len(words) > 0 && stopwords[strings.ToLower(words[0])] {
			words = words[1:]
		}
		if len(words) > 0 {
			add(strings.Join(words, " "))
		}
	}
	for _, a := range reAcronym.FindAllString(question, -1) {
		add(a)
	}
	return out
}

func merge(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, b := range base {
		seen[strings.ToLower(b)] = true
	}
	for _, e := range extra {
		if e == "" || seen[strings.ToLower(e)] {
			continue
		}
		seen[strings.ToLower(e)] = true
		base = append(base, e)
	}
	return base
}
