package factcheck

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/arbelos/keel/internal/bus"
	"github.com/arbelos/keel/internal/cache"
	"github.com/arbelos/keel/internal/model"
	"github.com/arbelos/keel/internal/worker"
)

// Status score table used for the aggregate report score
var statusScores = map[model.VerificationStatus]int{
	model.StatusVerified:      100,
	model.StatusLikelyTrue:    80,
	model.StatusPartiallyTrue: 60,
	model.StatusUnverified:    50,
	model.StatusOutdated:      40,
	model.StatusDisputed:      30,
	model.StatusFalse:         0,
}

const lowReliabilityFloor = 50

// CheckOptions carries the verification context for one response
type CheckOptions struct {
	Domain     string
	KnownFacts []string
	Sources    []model.Source
}

// Checker extracts claims from a response, verifies each, and produces an
// aggregate report. Reports are cached by normalized text key; identical
// in-flight checks share one computation.
type Checker struct {
	cfg       model.FactCheckConfig
	extractor *Extractor
	verifier  *Verifier
	cache     cache.Cache
	group     singleflight.Group
	bus       *bus.Bus
	logger    *zap.Logger

	reports int64
	failed  int64 // Reports whose overall status came out false
}

// NewChecker creates a fact checker. A nil cache disables report caching.
func NewChecker(cfg model.FactCheckConfig, kb *KnowledgeBase, c cache.Cache, b *bus.Bus, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Checker{
		cfg:       cfg,
		extractor: NewExtractor(),
		verifier:  NewVerifier(cfg, kb),
		cache:     c,
		bus:       b,
		logger:    logger,
	}
}

// verifyJob verifies one claim on the worker pool
type verifyJob struct {
	checker    *Checker
	claim      model.Claim
	sources    []model.Source
	knownFacts []string
}

type verifyResult struct {
	result model.VerificationResult
	err    error
}

func (r *verifyResult) GetError() error { return r.err }

func (j *verifyJob) Execute(ctx context.Context) worker.Result {
	// Identical claims in flight share one verification
	key := "claim:" + normalize(j.claim.Text)
	v, err, _ := j.checker.group.Do(key, func() (interface{}, error) {
		return j.checker.verifier.Verify(j.claim, j.sources, j.knownFacts), nil
	})
	if err != nil {
		return &verifyResult{err: err}
	}
	res := v.(model.VerificationResult)
	res.ClaimID = j.claim.ID // singleflight may return another claim's result
	return &verifyResult{result: res}
}

// CheckResponse runs the full extract-verify-aggregate pipeline
func (c *Checker) CheckResponse(ctx context.Context, text string, opts CheckOptions) (*model.FactCheckReport, error) {
	key := c.cacheKey(text, opts)
	if c.cache != nil {
		if data, found := c.cache.Get(key); found {
			var report model.FactCheckReport
			if err := json.Unmarshal(data, &report); err == nil {
				c.logger.Debug("fact check served from cache")
				return &report, nil
			}
		}
	}

	claims := c.extractor.Extract(text)
	report := &model.FactCheckReport{
		Claims:  claims,
		Results: make([]model.VerificationResult, 0, len(claims)),
	}

	if len(claims) == 0 {
		report.OverallScore = 100
		report.OverallStatus = model.StatusVerified
		report.Summary = "no factual claims found"
		c.finish(key, report)
		return report, nil
	}

	pool := worker.NewPool(c.cfg.Workers)
	pool.Start()
	for _, claim := range claims {
		pool.Submit(&verifyJob{
			checker:    c,
			claim:      claim,
			sources:    opts.Sources,
			knownFacts: opts.KnownFacts,
		})
	}

	byClaim := make(map[string]model.VerificationResult, len(claims))
	for _, res := range pool.Wait() {
		vr := res.(*verifyResult)
		if vr.err != nil {
			return nil, fmt.Errorf("verify claim: %w", vr.err)
		}
		byClaim[vr.result.ClaimID] = vr.result
	}
	// Results in claim order regardless of completion order
	for _, claim := range claims {
		report.Results = append(report.Results, byClaim[claim.ID])
	}

	c.aggregate(report)
	c.finish(key, report)
	return report, nil
}

// aggregate computes the overall score and status from per-claim results
func (c *Checker) aggregate(report *model.FactCheckReport) {
	weightedSum := 0.0
	weightTotal := 0.0
	falseCount, disputedCount, verifiedCount, positiveCount, factualCount := 0, 0, 0, 0, 0

	for _, r := range report.Results {
		if r.Status == model.StatusOpinion {
			continue
		}
		factualCount++
		weight := float64(r.Confidence)
		if weight <= 0 {
			weight = 1
		}
		weightedSum += float64(statusScores[r.Status]) * weight
		weightTotal += weight

		switch r.Status {
		case model.StatusFalse:
			falseCount++
		case model.StatusDisputed:
			disputedCount++
		case model.StatusVerified:
			verifiedCount++
			positiveCount++
		case model.StatusLikelyTrue:
			positiveCount++
		}
	}

	if factualCount == 0 {
		report.OverallScore = 100
		report.OverallStatus = model.StatusVerified
		report.Summary = "only subjective claims found"
		return
	}

	report.OverallScore = model.Clamp(int(weightedSum/weightTotal + 0.5))

	switch {
	case falseCount > 0:
		report.OverallStatus = model.StatusFalse
	case disputedCount >= 2:
		report.OverallStatus = model.StatusDisputed
	case verifiedCount == factualCount:
		report.OverallStatus = model.StatusVerified
	case positiveCount*2 > factualCount:
		report.OverallStatus = model.StatusLikelyTrue
	default:
		report.OverallStatus = model.StatusPartiallyTrue
	}

	report.Summary = fmt.Sprintf("%d claim(s): %d verified, %d disputed, %d false, score %d/100",
		factualCount, verifiedCount, disputedCount, falseCount, report.OverallScore)
	if falseCount > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d claim(s) contradicted by high-quality sources", falseCount))
	}
}

// finish caches the report and publishes notifications
func (c *Checker) finish(key string, report *model.FactCheckReport) {
	atomic.AddInt64(&c.reports, 1)
	if report.OverallStatus == model.StatusFalse {
		atomic.AddInt64(&c.failed, 1)
	}

	if c.cache != nil {
		if data, err := json.Marshal(report); err == nil {
			if err := c.cache.Set(key, data, c.cfg.CacheTTL); err != nil {
				c.logger.Debug("fact check cache write failed", zap.Error(err))
			}
		}
	}

	if c.bus != nil {
		c.bus.Publish(bus.TopicReportGenerated, "", report)
		if report.OverallScore < lowReliabilityFloor || report.OverallStatus == model.StatusFalse {
			c.bus.Publish(bus.TopicLowReliability, "", report)
		}
	}

	c.logger.Debug("fact check completed",
		zap.Int("claims", len(report.Claims)),
		zap.Int("score", report.OverallScore),
		zap.String("status", string(report.OverallStatus)))
}

// cacheKey hashes the normalized text plus the verification context
func (c *Checker) cacheKey(text string, opts CheckOptions) string {
	h := sha256.New()
	h.Write([]byte(normalize(text)))
	h.Write([]byte(opts.Domain))
	for _, f := range opts.KnownFacts {
		h.Write([]byte(normalize(f)))
	}
	for _, s := range opts.Sources {
		fmt.Fprintf(h, "%s|%d", sourceName(s), s.Quality)
	}
	return "factcheck:v1:" + hex.EncodeToString(h.Sum(nil))
}

// Stats reports aggregate counters for health checks
func (c *Checker) Stats() (reports, failed int64) {
	return atomic.LoadInt64(&c.reports), atomic.LoadInt64(&c.failed)
}

// normalize collapses whitespace and case for stable cache keys
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
