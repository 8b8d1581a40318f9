// Package llm implementa ports.Completer contra una API de chat
// compatible con OpenAI (xAI Grok por defecto).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
)

const (
	defaultBase = "https://api.x.ai/v1"
	chatPath    = "/chat/completions"

	maxAttempts    = 3
	requestTimeout = 60 * time.Second

	// Precios por token del modelo grok fast.
	costPerTokenIn  = 0.000005
	costPerTokenOut = 0.000025
)

// Client es el cliente del modelo de lenguaje.
type Client struct {
	http   *http.Client
	base   string
	apiKey string
	model  string
	log    *slog.Logger
	sleep  func(time.Duration)
}

// NewClient crea el cliente. base vacío usa la API de xAI.
func NewClient(base, apiKey, model string, log *slog.Logger) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:   &http.Client{Timeout: requestTimeout},
		base:   base,
		apiKey: apiKey,
		model:  model,
		log:    log,
		sleep:  time.Sleep,
	}
}

// Model devuelve el identificador del modelo activo.
func (c *Client) Model() string { return c.model }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// EstimateMarket envía el prompt y parsea la respuesta con tolerancia.
// Reintenta hasta 3 veces con backoff lineal; si ningún intento produce un
// JSON válido devuelve *domain.ParseError con la última respuesta cruda.
func (c *Client) EstimateMarket(ctx context.Context, prompt string) (domain.Estimate, error) {
	var lastRaw string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, tokensIn, tokensOut, err := c.complete(ctx, prompt)
		if err != nil {
			c.log.Warn("llm request failed", "attempt", attempt, "error", err)
			if attempt == maxAttempts {
				return domain.Estimate{}, fmt.Errorf("llm.EstimateMarket: %w", err)
			}
			c.backoff(ctx, attempt)
			continue
		}
		lastRaw = raw

		est, perr := parseEstimate(raw)
		if perr != nil {
			c.log.Warn("llm response unparseable", "attempt", attempt, "error", perr)
			if attempt == maxAttempts {
				break
			}
			c.backoff(ctx, attempt)
			continue
		}

		est.TokensIn = tokensIn
		est.TokensOut = tokensOut
		est.CostUSD = float64(tokensIn)*costPerTokenIn + float64(tokensOut)*costPerTokenOut
		return est, nil
	}
	return domain.Estimate{}, &domain.ParseError{Raw: lastRaw, Attempts: maxAttempts}
}

// ExtractKeywords pide al modelo entidades de búsqueda para la pregunta.
func (c *Client) ExtractKeywords(ctx context.Context, question string) ([]string, error) {
	prompt := fmt.Sprintf(`Extract 2-5 short search keywords (proper nouns, tickers,
acronyms) for finding news about this prediction market question.
Respond with ONLY a JSON array of strings.

Question: %s`, question)

	raw, _, _, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm.ExtractKeywords: %w", err)
	}

	var kws []string
	if err := json.Unmarshal([]byte(extractJSON(raw, '[', ']')), &kws); err != nil {
		return nil, fmt.Errorf("llm.ExtractKeywords: parse %q: %w", raw, err)
	}
	return kws, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (raw string, tokensIn, tokensOut int, err error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+chatPath, bytes.NewReader(body))
	if err != nil {
		return "", 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", 0, 0, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, 0, fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("empty choices")
	}
	return out.Choices[0].Message.Content, out.Usage.PromptTokens, out.Usage.CompletionTokens, nil
}

// backoff lineal: 2s, 3s... tras el intento n.
func (c *Client) backoff(ctx context.Context, attempt int) {
	select {
	case <-ctx.Done():
	default:
		c.sleep(time.Duration(attempt+1) * time.Second)
	}
}
