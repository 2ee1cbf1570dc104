package verify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsGate checks robots.txt before a host is fetched. Parsed files are
// cached per host for the life of the validator.
type robotsGate struct {
	mu         sync.RWMutex
	cache      map[string]*robotstxt.RobotsData
	httpClient *http.Client
	agent      string // Product token, e.g. "Keel"
}

func newRobotsGate(userAgent string, timeout time.Duration) *robotsGate {
	return &robotsGate{
		cache:      make(map[string]*robotstxt.RobotsData),
		httpClient: &http.Client{Timeout: timeout},
		agent:      productToken(userAgent),
	}
}

// allowed reports whether the URL may be fetched, plus any crawl delay the
// host requests. Unreachable robots.txt allows by default.
func (g *robotsGate) allowed(ctx context.Context, rawURL string) (bool, time.Duration) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0
	}

	data, err := g.robotsFor(ctx, parsed)
	if err != nil {
		return true, 0
	}

	delay := time.Duration(0)
	if group := data.FindGroup(g.agent); group != nil {
		delay = group.CrawlDelay
	}
	return data.TestAgent(parsed.Path, g.agent), delay
}

func (g *robotsGate) robotsFor(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	g.mu.RLock()
	data, ok := g.cache[target.Host]
	g.mu.RUnlock()
	if ok {
		return data, nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", target.Scheme, target.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.agent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		// Missing robots.txt allows everything
		data, _ = robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	} else {
		data, err = robotstxt.FromResponse(resp)
		if err != nil {
			return nil, fmt.Errorf("parse robots.txt: %w", err)
		}
	}

	g.mu.Lock()
	g.cache[target.Host] = data
	g.mu.Unlock()
	return data, nil
}

// productToken reduces a full user agent to the name robots.txt groups match
func productToken(ua string) string {
	fields := strings.Fields(ua)
	if len(fields) == 0 {
		return ua
	}
	return strings.Split(fields[0], "/")[0]
}
