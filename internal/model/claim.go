package model

// Claim represents a factual assertion extracted from a response
type Claim struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Type       ClaimType `json:"type"`
	Subject    string    `json:"subject,omitempty"`
	Predicate  string    `json:"predicate,omitempty"`
	Object     string    `json:"object,omitempty"`
	Confidence int       `json:"confidence"`         // Extraction confidence, 0-100
	Source     string    `json:"source,omitempty"`   // Originating sentence
	Sentence   int       `json:"sentence,omitempty"` // Sentence index in source (0-based)
}

// ClaimType categorizes the nature of the claim
type ClaimType string

const (
	ClaimTypeFactual      ClaimType = "factual"
	ClaimTypeStatistical  ClaimType = "statistical"
	ClaimTypeScientific   ClaimType = "scientific"
	ClaimTypeHistorical   ClaimType = "historical"
	ClaimTypeDefinitional ClaimType = "definitional"
	ClaimTypeCausal       ClaimType = "causal"
	ClaimTypeComparative  ClaimType = "comparative"
	ClaimTypeOpinion      ClaimType = "opinion"
	ClaimTypePrediction   ClaimType = "prediction"
	ClaimTypeUnknown      ClaimType = "unknown"
)

// IsSubjective reports whether the claim type is excluded from factual scoring
func (t ClaimType) IsSubjective() bool {
	return t == ClaimTypeOpinion || t == ClaimTypePrediction
}

// VerificationStatus is the outcome of checking a single claim
type VerificationStatus string

const (
	StatusVerified      VerificationStatus = "verified"
	StatusLikelyTrue    VerificationStatus = "likely_true"
	StatusUnverified    VerificationStatus = "unverified"
	StatusDisputed      VerificationStatus = "disputed"
	StatusFalse         VerificationStatus = "false"
	StatusOutdated      VerificationStatus = "outdated"
	StatusPartiallyTrue VerificationStatus = "partially_true"
	StatusOpinion       VerificationStatus = "opinion"
	StatusPending       VerificationStatus = "pending"
)

// ContradictionSeverity grades how damaging a contradiction is
type ContradictionSeverity string

const (
	SeverityCritical ContradictionSeverity = "critical" // Source quality >= 80
	SeverityMajor    ContradictionSeverity = "major"    // Source quality >= 60
	SeverityMinor    ContradictionSeverity = "minor"
)

// Contradiction records one source or fact disagreeing with a claim
type Contradiction struct {
	Source   string                `json:"source"`
	Severity ContradictionSeverity `json:"severity"`
	Detail   string                `json:"detail,omitempty"`
}

// SupportingSource records one source agreeing with a claim
type SupportingSource struct {
	Source  string `json:"source"`
	Quality int    `json:"quality"`
}

// VerificationResult is the outcome of checking one claim
type VerificationResult struct {
	ClaimID        string             `json:"claim_id"`
	Status         VerificationStatus `json:"status"`
	Confidence     int                `json:"confidence"` // 0-100
	Supporting     []SupportingSource `json:"supporting,omitempty"`
	Contradictions []Contradiction    `json:"contradictions,omitempty"`
	Explanation    string             `json:"explanation,omitempty"`
}

// FactCheckReport aggregates the verification of a response's claims
type FactCheckReport struct {
	Claims        []Claim              `json:"claims"`
	Results       []VerificationResult `json:"results"`
	OverallScore  int                  `json:"overall_score"` // 0-100
	OverallStatus VerificationStatus   `json:"overall_status"`
	Summary       string               `json:"summary,omitempty"`
	Warnings      []string             `json:"warnings,omitempty"`
}
