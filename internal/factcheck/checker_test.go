package factcheck

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/arbelos/keel/internal/cache"
	"github.com/arbelos/keel/internal/model"
)

func testChecker(kb *KnowledgeBase, c cache.Cache) *Checker {
	cfg := model.FactCheckConfig{
		MinSupportingSources: 2,
		MinSourceQuality:     20,
		CacheTTL:             time.Minute,
		Workers:              4,
	}
	return NewChecker(cfg, kb, c, nil, nil)
}

func TestCheckResponse_OpinionExcludedFromScore(t *testing.T) {
	checker := testChecker(nil, nil)

	text := "The Eiffel Tower is in Paris. I think it's beautiful."
	sources := []model.Source{
		{Domain: "britannica.com", Quality: 85},
		{Domain: "nasa.gov", Quality: 95},
	}
	report, err := checker.CheckResponse(context.Background(), text, CheckOptions{Sources: sources})
	if err != nil {
		t.Fatalf("CheckResponse failed: %v", err)
	}

	if len(report.Claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(report.Claims))
	}
	if report.OverallScore != 100 {
		t.Errorf("verified factual claim with opinion excluded should score 100, got %d", report.OverallScore)
	}
	if report.OverallStatus != model.StatusVerified {
		t.Errorf("expected verified, got %s", report.OverallStatus)
	}

	opinions := 0
	for _, r := range report.Results {
		if r.Status == model.StatusOpinion {
			opinions++
		}
	}
	if opinions != 1 {
		t.Errorf("expected 1 opinion result, got %d", opinions)
	}
}

func TestCheckResponse_NoClaims(t *testing.T) {
	checker := testChecker(nil, nil)

	report, err := checker.CheckResponse(context.Background(), "Hi there! OK.", CheckOptions{})
	if err != nil {
		t.Fatalf("CheckResponse failed: %v", err)
	}
	if report.OverallScore != 100 {
		t.Errorf("no claims should score 100, got %d", report.OverallScore)
	}
	if report.OverallStatus != model.StatusVerified {
		t.Errorf("no claims should report verified, got %s", report.OverallStatus)
	}
}

func TestCheckResponse_FalseClaimDominates(t *testing.T) {
	kb := NewKnowledgeBase("The Sun is not orbiting the Earth in our solar system")
	checker := testChecker(kb, nil)

	text := "The Sun is orbiting the Earth in our solar system constantly."
	report, err := checker.CheckResponse(context.Background(), text, CheckOptions{})
	if err != nil {
		t.Fatalf("CheckResponse failed: %v", err)
	}

	if report.OverallStatus != model.StatusFalse {
		t.Errorf("critical contradiction should mark the report false, got %s", report.OverallStatus)
	}
	if len(report.Warnings) == 0 {
		t.Error("false report should carry a warning")
	}

	reports, failed := checker.Stats()
	if reports != 1 || failed != 1 {
		t.Errorf("expected 1 report and 1 failure, got %d/%d", reports, failed)
	}
}

func TestCheckResponse_CacheHit(t *testing.T) {
	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	checker := testChecker(nil, mem)

	text := "The Great Barrier Reef is off the coast of Australia."
	opts := CheckOptions{Sources: []model.Source{{Domain: "bbc.com", Quality: 80}}}

	first, err := checker.CheckResponse(context.Background(), text, opts)
	if err != nil {
		t.Fatalf("first CheckResponse failed: %v", err)
	}
	second, err := checker.CheckResponse(context.Background(), text, opts)
	if err != nil {
		t.Fatalf("second CheckResponse failed: %v", err)
	}

	if first.OverallScore != second.OverallScore || first.OverallStatus != second.OverallStatus {
		t.Error("cached report should match the original")
	}
	// A cache hit skips finish, so the report counter stays at one
	if reports, _ := checker.Stats(); reports != 1 {
		t.Errorf("expected 1 finished report after cache hit, got %d", reports)
	}
}

func TestCheckResponse_ResultsFollowClaimOrder(t *testing.T) {
	checker := testChecker(nil, nil)

	text := "The Eiffel Tower is in Paris tonight. The Amazon River flows through South America. " +
		"The Pacific Ocean is larger than the Atlantic Ocean overall."
	report, err := checker.CheckResponse(context.Background(), text, CheckOptions{})
	if err != nil {
		t.Fatalf("CheckResponse failed: %v", err)
	}

	if len(report.Results) != len(report.Claims) {
		t.Fatalf("expected %d results, got %d", len(report.Claims), len(report.Results))
	}
	for i, claim := range report.Claims {
		if report.Results[i].ClaimID != claim.ID {
			t.Errorf("result %d out of order: got claim %s, want %s", i, report.Results[i].ClaimID, claim.ID)
		}
	}
}

func TestCheckResponse_ManyClaimsCompleteWithFewWorkers(t *testing.T) {
	cfg := model.FactCheckConfig{
		MinSupportingSources: 2,
		MinSourceQuality:     20,
		CacheTTL:             time.Minute,
		Workers:              2,
	}
	checker := NewChecker(cfg, nil, nil, nil, nil)

	sentences := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		sentences = append(sentences, fmt.Sprintf("The river in region %d flows east toward the sea.", i))
	}
	text := strings.Join(sentences, " ")

	type outcome struct {
		report *model.FactCheckReport
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := checker.CheckResponse(context.Background(), text, CheckOptions{})
		done <- outcome{report, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			t.Fatalf("CheckResponse failed: %v", o.err)
		}
		if len(o.report.Claims) != 60 {
			t.Fatalf("expected 60 claims, got %d", len(o.report.Claims))
		}
		if len(o.report.Results) != len(o.report.Claims) {
			t.Errorf("expected one result per claim, got %d for %d claims",
				len(o.report.Results), len(o.report.Claims))
		}
	case <-time.After(10 * time.Second):
		t.Fatal("CheckResponse did not finish with claims far exceeding worker capacity")
	}
}

func TestCacheKey_StableAndContextSensitive(t *testing.T) {
	checker := testChecker(nil, nil)

	a := checker.cacheKey("The  Eiffel Tower is in Paris.", CheckOptions{Domain: "travel"})
	b := checker.cacheKey("the eiffel tower is in paris.", CheckOptions{Domain: "travel"})
	if a != b {
		t.Error("whitespace and case must not change the cache key")
	}

	c := checker.cacheKey("The Eiffel Tower is in Paris.", CheckOptions{Domain: "history"})
	if a == c {
		t.Error("domain must change the cache key")
	}
}
