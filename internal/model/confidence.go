package model

// ConfidenceScore is the trust assessment of a completed response
type ConfidenceScore struct {
	Overall     int               `json:"overall"` // 0-100
	Grade       Grade             `json:"grade"`
	Factors     ConfidenceFactors `json:"factors"`
	Explanation string            `json:"explanation,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Sources     []Source          `json:"sources,omitempty"`
}

// ConfidenceFactors holds the ten independent factors, each 0-100
type ConfidenceFactors struct {
	SourceQuality   int `json:"source_quality"`
	Consistency     int `json:"consistency"`
	Specificity     int `json:"specificity"`
	Recency         int `json:"recency"`
	Verifiability   int `json:"verifiability"`
	Hedging         int `json:"hedging"` // High = little hedging language
	CitationDensity int `json:"citation_density"`
	DomainMatch     int `json:"domain_match"`
	CrossReference  int `json:"cross_reference"`
	ModelConfidence int `json:"model_confidence"`
}

// Grade is the letter grade derived from the overall score
type Grade string

const (
	GradeA Grade = "A" // >= 90
	GradeB Grade = "B" // >= 75
	GradeC Grade = "C" // >= 60
	GradeD Grade = "D" // >= 40
	GradeF Grade = "F"
)

// GradeFor maps an overall score to its letter grade band
func GradeFor(overall int) Grade {
	switch {
	case overall >= 90:
		return GradeA
	case overall >= 75:
		return GradeB
	case overall >= 60:
		return GradeC
	case overall >= 40:
		return GradeD
	default:
		return GradeF
	}
}

// Clamp bounds a score to [0,100]
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
