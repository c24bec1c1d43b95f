// Package sentiment fetches external sentiment scores over HTTP with
// rate limiting, retries and a short TTL cache, so a slow or flaky
// provider never stalls the decision loop twice for the same symbol.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"deltabot/internal/domain"
)

const (
	defaultTTL     = 5 * time.Minute
	defaultTimeout = 5 * time.Second
	ratePerSec     = 2
	rateBurst      = 5

	maxRetries    = 2
	baseRetryWait = 200 * time.Millisecond
)

// Config configures the HTTP provider.
type Config struct {
	BaseURL string
	APIKey  string
	TTL     time.Duration
	Timeout time.Duration
}

// HTTPProvider implements ports.SentimentProvider against a JSON API:
// GET {base}/v1/sentiment?symbol=X → {"score":0.7,"confidence":0.8}.
type HTTPProvider struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[string]cachedScore
}

type cachedScore struct {
	score   domain.SentimentScore
	expires time.Time
}

// New creates a provider; TTL and timeout fall back to defaults.
func New(cfg Config) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("sentiment.New: base URL required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTPProvider{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(ratePerSec, rateBurst),
		cache:   make(map[string]cachedScore),
	}, nil
}

// Fetch returns the sentiment score for a symbol, serving from cache
// while the TTL holds.
func (p *HTTPProvider) Fetch(ctx context.Context, symbol string) (domain.SentimentScore, error) {
	p.mu.Lock()
	if c, ok := p.cache[symbol]; ok && time.Now().Before(c.expires) {
		p.mu.Unlock()
		return c.score, nil
	}
	p.mu.Unlock()

	var payload struct {
		Score      float64 `json:"score"`
		Confidence float64 `json:"confidence"`
	}
	endpoint := fmt.Sprintf("%s/v1/sentiment?symbol=%s", p.cfg.BaseURL, url.QueryEscape(symbol))
	if err := p.get(ctx, endpoint, &payload); err != nil {
		return domain.SentimentScore{}, fmt.Errorf("sentiment.Fetch: %s: %w", symbol, err)
	}

	score := domain.SentimentScore{
		Score:      payload.Score,
		Confidence: payload.Confidence,
		FetchedAt:  time.Now(),
	}
	p.mu.Lock()
	p.cache[symbol] = cachedScore{score: score, expires: time.Now().Add(p.cfg.TTL)}
	p.mu.Unlock()
	return score, nil
}

// get performs a GET with rate limiting and exponential backoff.
func (p *HTTPProvider) get(ctx context.Context, endpoint string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := p.do(ctx, endpoint)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			p.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("sentiment API retry", "status", resp.StatusCode, "attempt", attempt+1)
			p.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (p *HTTPProvider) do(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	return p.http.Do(req)
}

func (p *HTTPProvider) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
