package verify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arbelos/keel/internal/model"
)

func testConfig() model.VerifyConfig {
	return model.VerifyConfig{
		Timeout:           2 * time.Second,
		UserAgent:         "Keel/0.1 (+https://github.com/arbelos/keel)",
		MaxBodyBytes:      1 << 20,
		Workers:           4,
		RequestsPerSecond: 100,
		Burst:             10,
	}
}

func TestValidate_ReachablePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Eiffel Tower</title></head><body><p>The Eiffel Tower stands in Paris.</p></body></html>`)
	}))
	defer server.Close()

	v := NewValidator(testConfig(), nil)
	results := v.Validate(context.Background(), []string{server.URL}, []string{"Eiffel Tower"})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Error != "" {
		t.Fatalf("unexpected error: %s", r.Error)
	}
	if !r.Source.Verified {
		t.Error("reachable page mentioning the topic should verify")
	}
	if r.Title != "Eiffel Tower" {
		t.Errorf("expected page title, got %q", r.Title)
	}
	if r.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", r.StatusCode)
	}
}

func TestValidate_TopicMismatchHalvesQuality(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>Nothing relevant here.</p></body></html>`)
	}))
	defer server.Close()

	v := NewValidator(testConfig(), nil)
	results := v.Validate(context.Background(), []string{server.URL}, []string{"Eiffel Tower"})

	r := results[0]
	if r.Source.Verified {
		t.Error("page without the topic must not verify")
	}
	base := v.baseSource(server.URL)
	if r.Source.Quality != base.Quality/2 {
		t.Errorf("unverified source should halve quality: got %d, base %d", r.Source.Quality, base.Quality)
	}
}

func TestValidate_NoTermsVerifiesOnReachability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>Anything at all.</p></body></html>`)
	}))
	defer server.Close()

	v := NewValidator(testConfig(), nil)
	sources := v.ValidateSources(context.Background(), []string{server.URL}, nil)
	if !sources[0].Verified {
		t.Error("reachable page with no topic terms should verify")
	}
}

func TestValidate_RobotsDisallow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		fmt.Fprint(w, `<html><body><p>Secret.</p></body></html>`)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.RespectRobots = true
	v := NewValidator(cfg, nil)

	results := v.Validate(context.Background(), []string{server.URL + "/private/page"}, nil)
	if !results[0].Blocked {
		t.Error("disallowed path should be blocked")
	}
	if results[0].Source.Verified {
		t.Error("blocked source must not verify")
	}

	// Allowed paths on the same host still fetch
	results = v.Validate(context.Background(), []string{server.URL + "/public"}, nil)
	if results[0].Blocked {
		t.Error("allowed path should not be blocked")
	}
}

func TestValidate_DeadLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	v := NewValidator(testConfig(), nil)
	results := v.Validate(context.Background(), []string{server.URL}, nil)

	r := results[0]
	if r.Source.Verified {
		t.Error("404 must not verify")
	}
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", r.StatusCode)
	}
}

func TestValidate_RetriesServerErrors(t *testing.T) {
	restore := sleepFunc
	sleepFunc = func(time.Duration) {}
	defer func() { sleepFunc = restore }()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `<html><body><p>Recovered.</p></body></html>`)
	}))
	defer server.Close()

	v := NewValidator(testConfig(), nil)
	results := v.Validate(context.Background(), []string{server.URL}, nil)
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if !results[0].Source.Verified {
		t.Errorf("recovered fetch should verify, error: %s", results[0].Error)
	}
}

func TestValidate_StalePenalty(t *testing.T) {
	old := time.Now().Add(-4 * 365 * 24 * time.Hour).UTC().Format(time.RFC1123)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", old)
		fmt.Fprint(w, `<html><body><p>Old but reachable.</p></body></html>`)
	}))
	defer server.Close()

	v := NewValidator(testConfig(), nil)
	results := v.Validate(context.Background(), []string{server.URL}, nil)

	r := results[0]
	if !r.Stale {
		t.Error("four-year-old page should be stale")
	}
	base := v.baseSource(server.URL)
	if r.Source.Quality != model.Clamp(base.Quality-veryStale) {
		t.Errorf("expected very-stale penalty: got %d, base %d", r.Source.Quality, base.Quality)
	}
}

func TestValidate_PreservesInputOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>ok</p></body></html>`)
	}))
	defer server.Close()

	urls := []string{server.URL + "/a", server.URL + "/b", server.URL + "/c"}
	v := NewValidator(testConfig(), nil)
	sources := v.ValidateSources(context.Background(), urls, nil)
	for i, u := range urls {
		if sources[i].URL != u {
			t.Errorf("result %d out of order: got %s, want %s", i, sources[i].URL, u)
		}
	}
}

func TestParsePage(t *testing.T) {
	doc := `<html><head><title>Launch Report</title><style>p{}</style></head>
		<body><script>var x=1;</script><p>All systems nominal.</p></body></html>`
	p, err := parsePage(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parsePage failed: %v", err)
	}
	if p.Title != "Launch Report" {
		t.Errorf("expected title, got %q", p.Title)
	}
	if !strings.Contains(p.Text, "All systems nominal.") {
		t.Errorf("visible text missing: %q", p.Text)
	}
	if strings.Contains(p.Text, "var x=1") {
		t.Error("script content leaked into visible text")
	}
	if strings.Contains(p.Text, "p{}") {
		t.Error("style content leaked into visible text")
	}

	if !p.mentionsAny([]string{"nominal"}) {
		t.Error("mentionsAny should match visible text")
	}
	if p.mentionsAny([]string{"", "absent-term"}) {
		t.Error("mentionsAny must ignore empty and missing terms")
	}
}

func TestProductToken(t *testing.T) {
	if got := productToken("Keel/0.1 (+https://github.com/arbelos/keel)"); got != "Keel" {
		t.Errorf("expected Keel, got %q", got)
	}
}
