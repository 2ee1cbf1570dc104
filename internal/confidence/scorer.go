package confidence

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arbelos/keel/internal/bus"
	"github.com/arbelos/keel/internal/model"
)

// Factor weights. They sum to 1.0 so the overall score stays in [0,100].
const (
	weightSourceQuality   = 0.18
	weightConsistency     = 0.12
	weightSpecificity     = 0.12
	weightRecency         = 0.08
	weightVerifiability   = 0.12
	weightHedging         = 0.10
	weightCitationDensity = 0.08
	weightDomainMatch     = 0.06
	weightCrossReference  = 0.06
	weightModelConfidence = 0.08
)

var (
	hedgingWords = []string{
		"might", "may", "could", "possibly", "perhaps", "probably",
		"i think", "i believe", "it seems", "appears to", "likely",
		"unclear", "uncertain", "arguably", "in my opinion",
	}
	contrastMarkers = []string{
		"however", "on the other hand", "conversely", "but actually",
		"contradicts", "in contrast", "although",
	}
	yearPattern     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	numberPattern   = regexp.MustCompile(`\d`)
	citationPattern = regexp.MustCompile(`https?://\S+|\[\d+\]|\([A-Z][a-z]+,? \d{4}\)`)
	properPattern   = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
)

// ScoreOptions carries the scoring context for one response
type ScoreOptions struct {
	Query   string
	Sources []model.Source
	Domain  string
	Facts   []string
}

// Scorer computes a 0-100 trust score from ten weighted factors
type Scorer struct {
	cfg    model.ConfidenceConfig
	bus    *bus.Bus
	logger *zap.Logger

	scored int64 // Total scoring calls, for health reporting
}

// NewScorer creates a confidence scorer
func NewScorer(cfg model.ConfidenceConfig, b *bus.Bus, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LowConfidenceFloor <= 0 {
		cfg.LowConfidenceFloor = 40
	}
	return &Scorer{cfg: cfg, bus: b, logger: logger}
}

// ScoreResponse scores a completed text response. Factors are computed
// independently, each 0-100, then combined by the fixed weighting.
func (s *Scorer) ScoreResponse(text string, opts ScoreOptions) *model.ConfidenceScore {
	factors := model.ConfidenceFactors{
		SourceQuality:   s.scoreSourceQuality(opts.Sources),
		Consistency:     s.scoreConsistency(text),
		Specificity:     s.scoreSpecificity(text),
		Recency:         s.scoreRecency(text, opts.Sources),
		Verifiability:   s.scoreVerifiability(opts.Sources, opts.Facts),
		Hedging:         s.scoreHedging(text),
		CitationDensity: s.scoreCitationDensity(text),
		DomainMatch:     s.scoreDomainMatch(text, opts.Domain),
		CrossReference:  s.scoreCrossReference(opts.Sources),
		ModelConfidence: s.scoreModelConfidence(text),
	}

	weighted := float64(factors.SourceQuality)*weightSourceQuality +
		float64(factors.Consistency)*weightConsistency +
		float64(factors.Specificity)*weightSpecificity +
		float64(factors.Recency)*weightRecency +
		float64(factors.Verifiability)*weightVerifiability +
		float64(factors.Hedging)*weightHedging +
		float64(factors.CitationDensity)*weightCitationDensity +
		float64(factors.DomainMatch)*weightDomainMatch +
		float64(factors.CrossReference)*weightCrossReference +
		float64(factors.ModelConfidence)*weightModelConfidence

	overall := model.Clamp(int(weighted + 0.5))

	score := &model.ConfidenceScore{
		Overall:     overall,
		Grade:       model.GradeFor(overall),
		Factors:     factors,
		Explanation: s.explain(overall, factors, opts),
		Sources:     opts.Sources,
	}
	s.annotate(score)

	atomic.AddInt64(&s.scored, 1)
	s.logger.Debug("confidence scored",
		zap.Int("overall", overall),
		zap.String("grade", string(score.Grade)))

	if s.bus != nil {
		s.bus.Publish(bus.TopicScoreCalculated, "", score)
		if overall < s.cfg.LowConfidenceFloor {
			s.bus.Publish(bus.TopicLowConfidence, "", score)
		}
	}

	return score
}

// scoreSourceQuality averages supplied source qualities, classifying any
// source that arrived without a ranking
func (s *Scorer) scoreSourceQuality(sources []model.Source) int {
	if len(sources) == 0 {
		return 50 // Neutral: nothing to judge either way
	}
	total := 0
	for _, src := range sources {
		q := src.Quality
		if q == 0 {
			if src.URL != "" {
				q = ClassifySource(src.URL)
			} else if src.Domain != "" {
				q = ClassifySource(src.Domain)
			} else {
				q = QualityUnknown
			}
		}
		total += model.Clamp(q)
	}
	return total / len(sources)
}

// scoreConsistency penalizes self-contradicting language
func (s *Scorer) scoreConsistency(text string) int {
	lower := strings.ToLower(text)
	score := 85
	for _, marker := range contrastMarkers {
		score -= 10 * strings.Count(lower, marker)
	}
	return model.Clamp(score)
}

// scoreSpecificity rewards concrete numbers, names, and dates
func (s *Scorer) scoreSpecificity(text string) int {
	score := 40
	if numberPattern.MatchString(text) {
		score += 20
	}
	if properPattern.MatchString(text) {
		score += 20
	}
	if yearPattern.MatchString(text) {
		score += 10
	}
	words := len(strings.Fields(text))
	if words >= 30 {
		score += 10
	}
	return model.Clamp(score)
}

// scoreRecency checks for recent years in the text and fresh sources
func (s *Scorer) scoreRecency(text string, sources []model.Source) int {
	score := 60
	currentYear := time.Now().Year()

	years := yearPattern.FindAllString(text, -1)
	newest := 0
	for _, y := range years {
		var n int
		fmt.Sscanf(y, "%d", &n)
		if n > newest {
			newest = n
		}
	}
	switch {
	case newest == 0:
		// No temporal anchor either way
	case newest >= currentYear-1:
		score += 25
	case newest >= currentYear-5:
		score += 10
	default:
		score -= 20
	}

	verified := 0
	for _, src := range sources {
		if src.Verified {
			verified++
		}
	}
	if len(sources) > 0 && verified == len(sources) {
		score += 10
	}
	return model.Clamp(score)
}

// scoreVerifiability rewards checkable material: sources and known facts
func (s *Scorer) scoreVerifiability(sources []model.Source, facts []string) int {
	score := 30
	score += min(len(sources)*15, 45)
	if len(facts) > 0 {
		score += 20
	}
	return model.Clamp(score)
}

// scoreHedging starts high and drops per hedging phrase; high = confident
func (s *Scorer) scoreHedging(text string) int {
	lower := strings.ToLower(text)
	score := 100
	for _, word := range hedgingWords {
		score -= 15 * strings.Count(lower, word)
	}
	return model.Clamp(score)
}

// scoreCitationDensity measures inline citations per 100 words
func (s *Scorer) scoreCitationDensity(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	citations := len(citationPattern.FindAllString(text, -1))
	if citations == 0 {
		return 20
	}
	density := float64(citations) / float64(words) * 100
	return model.Clamp(20 + int(density*30))
}

// scoreDomainMatch measures overlap between the stated domain and the text
func (s *Scorer) scoreDomainMatch(text, domain string) int {
	if domain == "" {
		return 70 // No domain to match against
	}
	lower := strings.ToLower(text)
	matched := 0
	terms := strings.Fields(strings.ToLower(domain))
	for _, term := range terms {
		if strings.Contains(lower, term) {
			matched++
		}
	}
	if len(terms) == 0 {
		return 70
	}
	return model.Clamp(30 + matched*70/len(terms))
}

// scoreCrossReference rewards agreement across distinct source hosts
func (s *Scorer) scoreCrossReference(sources []model.Source) int {
	hosts := make(map[string]bool)
	for _, src := range sources {
		h := src.Domain
		if h == "" {
			h = hostOf(src.URL)
		}
		if h != "" {
			hosts[h] = true
		}
	}
	switch len(hosts) {
	case 0:
		return 30
	case 1:
		return 50
	case 2:
		return 70
	default:
		return 90
	}
}

// scoreModelConfidence proxies the model's own certainty from its language
func (s *Scorer) scoreModelConfidence(text string) int {
	lower := strings.ToLower(text)
	score := 75
	for _, phrase := range []string{"i don't know", "i cannot", "i'm not sure", "as an ai"} {
		if strings.Contains(lower, phrase) {
			score -= 25
		}
	}
	if strings.Contains(lower, "definitely") || strings.Contains(lower, "certainly") {
		score += 10
	}
	return model.Clamp(score)
}

// explain builds the human-readable scoring summary
func (s *Scorer) explain(overall int, f model.ConfidenceFactors, opts ScoreOptions) string {
	return fmt.Sprintf(
		"Overall %d/100 (grade %s): source quality %d across %d sources, specificity %d, hedging %d, verifiability %d.",
		overall, model.GradeFor(overall), f.SourceQuality, len(opts.Sources), f.Specificity, f.Hedging, f.Verifiability)
}

// annotate attaches warnings and suggestions for weak factors
func (s *Scorer) annotate(score *model.ConfidenceScore) {
	f := score.Factors
	if score.Overall < s.cfg.LowConfidenceFloor {
		score.Warnings = append(score.Warnings, fmt.Sprintf("confidence %d below floor %d", score.Overall, s.cfg.LowConfidenceFloor))
	}
	if f.SourceQuality < 40 && len(score.Sources) > 0 {
		score.Warnings = append(score.Warnings, "supplied sources are low quality")
		score.Suggestions = append(score.Suggestions, "prefer academic, government, or primary news sources")
	}
	if len(score.Sources) == 0 {
		score.Suggestions = append(score.Suggestions, "supply sources to enable verification")
	}
	if f.Hedging < 50 {
		score.Warnings = append(score.Warnings, "response contains heavy hedging language")
	}
	if f.CitationDensity < 30 {
		score.Suggestions = append(score.Suggestions, "request inline citations for factual statements")
	}
}

// Scored returns the number of scoring calls served
func (s *Scorer) Scored() int64 {
	return atomic.LoadInt64(&s.scored)
}
