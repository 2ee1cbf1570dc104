package verify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arbelos/keel/internal/confidence"
	"github.com/arbelos/keel/internal/model"
	"github.com/arbelos/keel/internal/worker"
)

const maxRetries = 3

// sleepFunc is the backoff sleep between retries (injectable for tests)
var sleepFunc = time.Sleep

// Staleness penalties applied to a source's quality ranking
const (
	staleAfter     = 365 * 24 * time.Hour
	veryStaleAfter = 3 * 365 * 24 * time.Hour
	stalePenalty   = 5
	veryStale      = 15
	deadDivisor    = 2
)

// Validator turns raw URLs into ranked, verified source descriptors. Each
// URL is checked live: robots.txt permitting, the page is fetched, ranked by
// host reputation, penalized for staleness, and marked verified when it is
// reachable and mentions the topic terms.
type Validator struct {
	cfg        model.VerifyConfig
	httpClient *http.Client
	limiter    *worker.Limiter
	robots     *robotsGate
	logger     *zap.Logger
}

// Result pairs the produced source with fetch diagnostics
type Result struct {
	Source      model.Source `json:"source"`
	StatusCode  int          `json:"status_code,omitempty"`
	RedirectURL string       `json:"redirect_url,omitempty"`
	Stale       bool         `json:"stale,omitempty"`
	Title       string       `json:"title,omitempty"`
	Blocked     bool         `json:"blocked,omitempty"` // Disallowed by robots.txt
	Error       string       `json:"error,omitempty"`
}

// NewValidator creates a source validator
func NewValidator(cfg model.VerifyConfig, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2_000_000
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}

	return &Validator{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: proxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		limiter: worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		robots:  newRobotsGate(cfg.UserAgent, cfg.Timeout),
		logger:  logger,
	}
}

// ValidateSources checks every URL concurrently and returns one source per
// URL in input order. terms are topic keywords the fetched page should
// mention for the source to count as verified.
func (v *Validator) ValidateSources(ctx context.Context, urls []string, terms []string) []model.Source {
	results := v.Validate(ctx, urls, terms)
	sources := make([]model.Source, len(results))
	for i, r := range results {
		sources[i] = r.Source
	}
	return sources
}

// Validate is ValidateSources with full fetch diagnostics
func (v *Validator) Validate(ctx context.Context, urls []string, terms []string) []Result {
	results := make([]Result, len(urls))
	if len(urls) == 0 {
		return results
	}

	semaphore := make(chan struct{}, v.cfg.Workers)
	var wg sync.WaitGroup
	for i, rawURL := range urls {
		wg.Add(1)
		go func(idx int, u string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				results[idx] = Result{
					Source: v.baseSource(u),
					Error:  "context cancelled",
				}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = v.validateOne(ctx, u, terms)
		}(i, rawURL)
	}
	wg.Wait()
	return results
}

func (v *Validator) validateOne(ctx context.Context, rawURL string, terms []string) Result {
	result := Result{Source: v.baseSource(rawURL)}

	if v.cfg.RespectRobots {
		allowed, delay := v.robots.allowed(ctx, rawURL)
		if !allowed {
			result.Blocked = true
			result.Error = "disallowed by robots.txt"
			return result
		}
		if err := v.limiter.WaitWithDelay(ctx, rawURL, delay); err != nil {
			result.Error = fmt.Sprintf("rate limit wait: %v", err)
			return result
		}
	} else if err := v.limiter.Wait(ctx, rawURL); err != nil {
		result.Error = fmt.Sprintf("rate limit wait: %v", err)
		return result
	}

	v.fetchWithRetry(ctx, rawURL, terms, &result)

	if !result.Source.Verified {
		result.Source.Quality /= deadDivisor
	}
	return result
}

// fetchWithRetry fetches the page, retrying transient failures with
// exponential backoff, and fills in verification and staleness.
func (v *Validator) fetchWithRetry(ctx context.Context, rawURL string, terms []string, result *Result) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		v.fetchOnce(ctx, rawURL, terms, result)
		if !retryable(result) {
			return
		}
		if attempt < maxRetries-1 {
			sleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
}

func (v *Validator) fetchOnce(ctx context.Context, rawURL string, terms []string, result *Result) {
	result.Error = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		return
	}
	req.Header.Set("User-Agent", v.cfg.UserAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	if resp.Request.URL.String() != rawURL {
		result.RedirectURL = resp.Request.URL.String()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Error = fmt.Sprintf("status %d", resp.StatusCode)
		return
	}

	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		if t, err := time.Parse(time.RFC1123, lastModified); err == nil {
			age := time.Since(t)
			if age > veryStaleAfter {
				result.Stale = true
				result.Source.Quality = model.Clamp(result.Source.Quality - veryStale)
			} else if age > staleAfter {
				result.Stale = true
				result.Source.Quality = model.Clamp(result.Source.Quality - stalePenalty)
			}
		}
	}

	doc, err := parsePage(http.MaxBytesReader(nil, resp.Body, v.cfg.MaxBodyBytes))
	if err != nil {
		result.Error = fmt.Sprintf("parse page: %v", err)
		return
	}
	result.Title = doc.Title

	// Reachable is enough when the caller gave no topic terms
	result.Source.Verified = len(terms) == 0 || doc.mentionsAny(terms)
	if !result.Source.Verified {
		result.Error = "page does not mention the topic"
	}
}

func (v *Validator) baseSource(rawURL string) model.Source {
	quality := confidence.ClassifySource(rawURL)
	return model.Source{
		URL:     rawURL,
		Domain:  hostOf(rawURL),
		Type:    confidence.SourceTypeName(quality),
		Quality: quality,
	}
}

// retryable reports whether the last fetch failed transiently
func retryable(result *Result) bool {
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if result.StatusCode >= 500 && result.StatusCode < 600 {
		return true
	}
	if result.Error != "" {
		s := strings.ToLower(result.Error)
		return strings.Contains(s, "timeout") ||
			strings.Contains(s, "connection refused") ||
			strings.Contains(s, "connection reset")
	}
	return false
}

// proxyFunc routes requests through configured proxies, falling back to the
// process environment when none are set
func proxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}
	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(strings.TrimPrefix(rawURL, "www."))
	}
	host := strings.ToLower(parsed.Host)
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return strings.TrimPrefix(host, "www.")
}
