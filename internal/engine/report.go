package engine

import (
	"fmt"
	"time"

	"github.com/arbelos/keel/internal/model"
)

// GenerateReport aggregates a session's stored responses. A session with no
// history yields an empty report with a warning, not an error.
func (e *Engine) GenerateReport(sessionID string) *model.ReliabilityReport {
	report := &model.ReliabilityReport{
		SessionID:   sessionID,
		GeneratedAt: time.Now().UTC(),
	}

	responses := e.history.List(sessionID)
	report.TotalRequests = len(responses)
	if len(responses) == 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("no recorded requests for session %s", sessionID))
		return report
	}

	var (
		successes, timeouts, fallbacks int
		confidenceSum, latencySum      float64
		consistencyChecked, consistent int
		factChecked, factPassed        int
	)
	for _, resp := range responses {
		if resp.Success {
			successes++
		}
		if resp.Execution.TimedOut {
			timeouts++
		}
		if resp.Execution.FallbackUsed {
			fallbacks++
		}
		if resp.Confidence != nil {
			confidenceSum += float64(resp.Confidence.Overall)
		}
		latencySum += float64(resp.Execution.Elapsed)
		if resp.Consistency != nil {
			consistencyChecked++
			if resp.Consistency.IsConsistent {
				consistent++
			}
		}
		if resp.FactCheck != nil {
			factChecked++
			if resp.FactCheck.OverallStatus != model.StatusFalse {
				factPassed++
			}
		}
		if resp.Checkpoint != nil {
			report.CheckpointsCreated++
		}
	}

	n := float64(len(responses))
	report.SuccessRate = float64(successes) / n
	report.AverageConfidence = confidenceSum / n
	report.AverageLatency = time.Duration(latencySum / n)
	report.TimeoutRate = float64(timeouts) / n
	report.FallbacksUsed = fallbacks

	report.ConsistencyRate = 1.0
	if consistencyChecked > 0 {
		report.ConsistencyRate = float64(consistent) / float64(consistencyChecked)
	}
	report.FactCheckPassRate = 1.0
	if factChecked > 0 {
		report.FactCheckPassRate = float64(factPassed) / float64(factChecked)
	}

	if report.AverageConfidence < float64(e.cfg.MinConfidenceThreshold) {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("average confidence %.0f is below the %d threshold", report.AverageConfidence, e.cfg.MinConfidenceThreshold))
	}
	return report
}

// ComponentHealth is one component's health verdict
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Health is the engine-wide health report; Overall is the AND of every
// component verdict
type Health struct {
	Timeout     ComponentHealth `json:"timeout"`
	Confidence  ComponentHealth `json:"confidence"`
	FactCheck   ComponentHealth `json:"fact_check"`
	Consistency ComponentHealth `json:"consistency"`
	Checkpoint  ComponentHealth `json:"checkpoint"`
	Overall     bool            `json:"overall"`
}

// HealthCheck inspects each component's aggregate stats
func (e *Engine) HealthCheck() Health {
	h := Health{}

	open := e.comps.Protector.OpenBreakers()
	h.Timeout = ComponentHealth{
		Healthy: open == 0,
		Detail:  fmt.Sprintf("%d open circuit breaker(s)", open),
	}

	avg, scored := e.averageConfidence()
	h.Confidence = ComponentHealth{Healthy: true, Detail: "no scored responses"}
	if scored > 0 {
		h.Confidence = ComponentHealth{
			Healthy: avg >= float64(e.cfg.MinConfidenceThreshold),
			Detail:  fmt.Sprintf("average confidence %.0f over %d response(s)", avg, scored),
		}
	}

	reports, failed := e.comps.FactCheck.Stats()
	h.FactCheck = ComponentHealth{Healthy: true, Detail: "no reports"}
	if reports > 0 {
		h.FactCheck = ComponentHealth{
			Healthy: float64(failed)/float64(reports) < 0.5,
			Detail:  fmt.Sprintf("%d of %d report(s) found false claims", failed, reports),
		}
	}

	stats := e.comps.Consistency.GetStats()
	h.Consistency = ComponentHealth{
		Healthy: stats.SuccessRate >= 0.5,
		Detail:  fmt.Sprintf("success rate %.2f over %d check(s)", stats.SuccessRate, stats.ChecksRun),
	}

	h.Checkpoint = ComponentHealth{
		Healthy: true,
		Detail:  fmt.Sprintf("%d checkpoint(s) created", e.comps.Checkpoints.Created()),
	}

	h.Overall = h.Timeout.Healthy && h.Confidence.Healthy && h.FactCheck.Healthy &&
		h.Consistency.Healthy && h.Checkpoint.Healthy
	return h
}

// averageConfidence averages stored confidence across every session
func (e *Engine) averageConfidence() (float64, int) {
	sum, count := 0.0, 0
	for _, session := range e.history.Sessions() {
		for _, resp := range e.history.List(session) {
			if resp.Confidence != nil {
				sum += float64(resp.Confidence.Overall)
				count++
			}
		}
	}
	if count == 0 {
		return 0, 0
	}
	return sum / float64(count), count
}
