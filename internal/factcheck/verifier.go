package factcheck

import (
	"fmt"
	"strings"

	"github.com/arbelos/keel/internal/model"
)

const (
	kbSimilarityThreshold = 0.7
	kbSourceQuality       = 90
	knownFactQuality      = 75 // Caller-supplied facts count as major, not critical
	supportQualityFloor   = 60
	verifiedQualityFloor  = 70
	negationSharedWords   = 3
)

// negationPairs drive the contradiction heuristic: a claim using the left
// form contradicts a fact using the right form over the same words.
var negationPairs = [][2]string{
	{"is", "is not"},
	{"is", "isn't"},
	{"are", "are not"},
	{"was", "was not"},
	{"were", "were not"},
	{"can", "cannot"},
	{"does", "does not"},
	{"has", "has no"},
	{"will", "will not"},
}

// Verifier checks individual claims against the knowledge base, supplied
// sources, and known facts
type Verifier struct {
	cfg model.FactCheckConfig
	kb  *KnowledgeBase
}

// NewVerifier creates a claim verifier
func NewVerifier(cfg model.FactCheckConfig, kb *KnowledgeBase) *Verifier {
	if kb == nil {
		kb = NewKnowledgeBase()
	}
	if cfg.MinSupportingSources <= 0 {
		cfg.MinSupportingSources = 2
	}
	return &Verifier{cfg: cfg, kb: kb}
}

// Verify checks one claim. Subjective claims short-circuit to opinion status
// with their extraction confidence untouched.
func (v *Verifier) Verify(claim model.Claim, sources []model.Source, knownFacts []string) model.VerificationResult {
	if claim.Type.IsSubjective() {
		return model.VerificationResult{
			ClaimID:     claim.ID,
			Status:      model.StatusOpinion,
			Confidence:  claim.Confidence,
			Explanation: "subjective claim, excluded from factual verification",
		}
	}

	result := model.VerificationResult{
		ClaimID: claim.ID,
		Status:  model.StatusPending,
	}

	// Internal knowledge base by word-set similarity
	if fact, sim, found := v.kb.Match(claim.Text, kbSimilarityThreshold); found {
		if contradicts(claim.Text, fact) {
			result.Contradictions = append(result.Contradictions, model.Contradiction{
				Source:   "knowledge-base",
				Severity: severityFor(kbSourceQuality),
				Detail:   fact,
			})
		} else {
			result.Supporting = append(result.Supporting, model.SupportingSource{
				Source:  "knowledge-base",
				Quality: kbSourceQuality,
			})
		}
		result.Explanation = fmt.Sprintf("knowledge base match (similarity %.2f)", sim)
	}

	// Supplied sources, skipping the low-quality floor and the blocklist
	for _, src := range sources {
		if src.Quality < v.cfg.MinSourceQuality || v.isBlocked(src) {
			continue
		}
		if src.Quality >= supportQualityFloor {
			result.Supporting = append(result.Supporting, model.SupportingSource{
				Source:  sourceName(src),
				Quality: src.Quality,
			})
		}
	}

	// Known facts: negation-pair contradiction gated by shared words
	for _, fact := range knownFacts {
		if sharedWords(claim.Text, fact) < negationSharedWords {
			continue
		}
		if contradicts(claim.Text, fact) {
			result.Contradictions = append(result.Contradictions, model.Contradiction{
				Source:   "known-fact",
				Severity: severityFor(knownFactQuality),
				Detail:   fact,
			})
		} else if jaccard(claim.Text, fact) >= 0.5 {
			result.Supporting = append(result.Supporting, model.SupportingSource{
				Source:  "known-fact",
				Quality: knownFactQuality,
			})
		}
	}

	result.Status = v.decideStatus(result)
	result.Confidence = claimConfidence(result)
	if result.Explanation == "" {
		result.Explanation = explainStatus(result)
	}
	return result
}

// decideStatus applies the precedence ladder over contradictions and support
func (v *Verifier) decideStatus(r model.VerificationResult) model.VerificationStatus {
	critical, major := 0, 0
	for _, c := range r.Contradictions {
		switch c.Severity {
		case model.SeverityCritical:
			critical++
		case model.SeverityMajor:
			major++
		}
	}

	switch {
	case critical > 0:
		return model.StatusFalse
	case major >= 2:
		return model.StatusDisputed
	case len(r.Contradictions) > 0 && len(r.Supporting) > 0:
		return model.StatusPartiallyTrue
	case len(r.Contradictions) == 1:
		return model.StatusDisputed
	}

	qualitySupport := 0
	for _, s := range r.Supporting {
		if s.Quality >= verifiedQualityFloor {
			qualitySupport++
		}
	}
	switch {
	case qualitySupport >= v.cfg.MinSupportingSources:
		return model.StatusVerified
	case len(r.Supporting) > 0:
		return model.StatusLikelyTrue
	default:
		return model.StatusUnverified
	}
}

// claimConfidence: base 50, up to +10 per supporting source scaled by
// quality, minus 40/20/10 per critical/major/minor contradiction
func claimConfidence(r model.VerificationResult) int {
	confidence := 50.0
	for _, s := range r.Supporting {
		confidence += float64(s.Quality) / 100 * 10
	}
	for _, c := range r.Contradictions {
		switch c.Severity {
		case model.SeverityCritical:
			confidence -= 40
		case model.SeverityMajor:
			confidence -= 20
		default:
			confidence -= 10
		}
	}
	return model.Clamp(int(confidence))
}

// severityFor grades a contradiction by the contradicting source's quality
func severityFor(quality int) model.ContradictionSeverity {
	switch {
	case quality >= 80:
		return model.SeverityCritical
	case quality >= 60:
		return model.SeverityMajor
	default:
		return model.SeverityMinor
	}
}

// contradicts applies the negation-pair heuristic in both directions
func contradicts(claim, fact string) bool {
	claimLower := " " + strings.ToLower(claim) + " "
	factLower := " " + strings.ToLower(fact) + " "

	for _, pair := range negationPairs {
		pos := " " + pair[0] + " "
		neg := " " + pair[1] + " "
		claimPos := strings.Contains(claimLower, pos) && !strings.Contains(claimLower, neg)
		claimNeg := strings.Contains(claimLower, neg)
		factPos := strings.Contains(factLower, pos) && !strings.Contains(factLower, neg)
		factNeg := strings.Contains(factLower, neg)
		if (claimPos && factNeg) || (claimNeg && factPos) {
			return true
		}
	}
	return false
}

func (v *Verifier) isBlocked(src model.Source) bool {
	name := strings.ToLower(sourceName(src))
	for _, blocked := range v.cfg.BlockedSources {
		if blocked != "" && strings.Contains(name, strings.ToLower(blocked)) {
			return true
		}
	}
	return false
}

func sourceName(src model.Source) string {
	if src.Domain != "" {
		return src.Domain
	}
	if src.URL != "" {
		return src.URL
	}
	return src.Type
}

func explainStatus(r model.VerificationResult) string {
	return fmt.Sprintf("%d supporting source(s), %d contradiction(s)",
		len(r.Supporting), len(r.Contradictions))
}
