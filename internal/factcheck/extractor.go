package factcheck

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/arbelos/keel/internal/model"
)

const minClaimLength = 20

// Ordered classification patterns. The first match wins, so more specific
// categories are checked before generic ones.
var (
	statisticalPattern = regexp.MustCompile(`(?i)\d+(\.\d+)?\s*(%|percent|million|billion|thousand|kg|km|meters?|miles?|degrees?|tons?)`)
	historicalPattern  = regexp.MustCompile(`(?i)\b(in\s+)?(1[0-9]{3}|20[0-2][0-9])\b|\bcentury\b|\bfounded\b|\bestablished\b|\bhistoric`)
	scientificPattern  = regexp.MustCompile(`(?i)\b(research|study|studies|experiment|evidence|scientists?|data shows?)\b`)
	definitionPattern  = regexp.MustCompile(`(?i)\b(is defined as|refers to|is a type of|means|is known as)\b`)
	causalPattern      = regexp.MustCompile(`(?i)\b(because|leads? to|causes?|results? in|due to|therefore)\b`)
	comparativePattern = regexp.MustCompile(`(?i)\b(more than|less than|greater than|fewer than|versus|compared to|bigger|larger|smaller|taller|faster|slower)\b`)
	predictionPattern  = regexp.MustCompile(`(?i)\bwill\b|\bby (20[2-9][0-9]|2100)\b|\bis expected to\b|\bforecast`)
	opinionPattern     = regexp.MustCompile(`(?i)\b(should|ought to|might|i think|i believe|in my opinion|beautiful|terrible|best|worst|amazing)\b`)

	digitPattern     = regexp.MustCompile(`\d`)
	properPhrase     = regexp.MustCompile(`\b[A-Z][a-z]+(\s+[A-Z][a-z]+)+\b`)
	svoPattern       = regexp.MustCompile(`^(.{2,60}?)\s+(is|are|was|were|has|have|had|became|remains?)\s+(.+)$`)
	questionOrGreet  = regexp.MustCompile(`(?i)^(hi|hello|hey|greetings|thanks|thank you|welcome|good (morning|afternoon|evening))\b`)
	dismissedOpeners = []string{"well,", "um,", "hmm", "sure,", "of course,", "anyway,"}

	hedgingTerms     = []string{"might", "may", "could", "possibly", "perhaps", "probably", "i think", "i believe", "it seems", "likely"}
	vagueQuantifiers = []string{"some", "many", "several", "a few", "various", "numerous"}
)

// Extractor pulls discrete claims out of response text
type Extractor struct{}

// NewExtractor creates a claim extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract splits text into sentences, discards non-factual ones, and
// classifies the remainder
func (e *Extractor) Extract(text string) []model.Claim {
	sentences := splitSentences(text)

	var claims []model.Claim
	for i, sentence := range sentences {
		if !isClaimCandidate(sentence) {
			continue
		}
		claimType := classify(sentence)
		claims = append(claims, model.Claim{
			ID:         uuid.NewString(),
			Text:       sentence,
			Type:       claimType,
			Confidence: extractionConfidence(sentence),
			Source:     sentence,
			Sentence:   i,
		})
		if subj, pred, obj, ok := parseSVO(sentence); ok {
			claims[len(claims)-1].Subject = subj
			claims[len(claims)-1].Predicate = pred
			claims[len(claims)-1].Object = obj
		}
	}
	return dedupeClaims(claims)
}

// splitSentences splits text on terminators, skipping fragments
func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\t' {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// isClaimCandidate filters out short, interrogative, and chatty sentences
func isClaimCandidate(sentence string) bool {
	if len(sentence) < minClaimLength {
		return false
	}
	if strings.HasSuffix(sentence, "?") {
		return false
	}
	if questionOrGreet.MatchString(sentence) {
		return false
	}
	lower := strings.ToLower(sentence)
	for _, opener := range dismissedOpeners {
		if strings.HasPrefix(lower, opener) {
			return false
		}
	}
	return true
}

// classify assigns a claim type by ordered pattern precedence
func classify(sentence string) model.ClaimType {
	switch {
	case statisticalPattern.MatchString(sentence):
		return model.ClaimTypeStatistical
	case historicalPattern.MatchString(sentence):
		return model.ClaimTypeHistorical
	case scientificPattern.MatchString(sentence):
		return model.ClaimTypeScientific
	case definitionPattern.MatchString(sentence):
		return model.ClaimTypeDefinitional
	case causalPattern.MatchString(sentence):
		return model.ClaimTypeCausal
	case comparativePattern.MatchString(sentence):
		return model.ClaimTypeComparative
	case predictionPattern.MatchString(sentence):
		return model.ClaimTypePrediction
	case opinionPattern.MatchString(sentence):
		return model.ClaimTypeOpinion
	default:
		return model.ClaimTypeFactual
	}
}

// extractionConfidence starts at 70 and adjusts for concreteness and hedging
func extractionConfidence(sentence string) int {
	confidence := 70
	if digitPattern.MatchString(sentence) {
		confidence += 10
	}
	if properPhrase.MatchString(sentence) {
		confidence += 5
	}
	lower := strings.ToLower(sentence)
	for _, term := range hedgingTerms {
		if strings.Contains(lower, term) {
			confidence -= 20
			break
		}
	}
	for _, q := range vagueQuantifiers {
		if containsWord(lower, q) {
			confidence -= 10
			break
		}
	}
	return model.Clamp(confidence)
}

// parseSVO attempts a naive subject-predicate-object split on copular verbs
func parseSVO(sentence string) (subject, predicate, object string, ok bool) {
	m := svoPattern.FindStringSubmatch(strings.TrimSuffix(sentence, "."))
	if m == nil {
		return "", "", "", false
	}
	return strings.TrimSpace(m[1]), m[2], strings.TrimSpace(m[3]), true
}

// containsWord matches q as a whole word inside lower-cased text
func containsWord(lower, q string) bool {
	for _, w := range strings.Fields(lower) {
		if strings.Trim(w, ".,;:!?") == q {
			return true
		}
	}
	return false
}

// dedupeClaims removes duplicate claims by normalized text
func dedupeClaims(claims []model.Claim) []model.Claim {
	seen := make(map[string]bool)
	var unique []model.Claim
	for _, claim := range claims {
		key := strings.ToLower(strings.TrimSpace(claim.Text))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, claim)
		}
	}
	return unique
}
