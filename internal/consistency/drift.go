package consistency

import (
	"fmt"
	"strings"

	"github.com/arbelos/keel/internal/model"
)

// Drift blends output divergence with length divergence. Output similarity
// dominates; length keeps near-identical word sets with very different
// verbosity from passing unnoticed.
const (
	similarityWeight = 0.8
	lengthWeight     = 0.2
)

// analyzeDrift compares a new output against baseline outputs whose inputs
// resembled the new input. baseline must be non-empty.
func analyzeDrift(output string, baseline []model.ExecutionRecord, threshold float64) *model.DriftAnalysis {
	bestSim := 0.0
	bestLenRatio := 1.0
	for _, rec := range baseline {
		sim := tokenSimilarity(output, rec.Output)
		if sim >= bestSim {
			bestSim = sim
			bestLenRatio = lengthRatio(output, rec.Output)
		}
	}

	score := similarityWeight*(1-bestSim) + lengthWeight*(1-bestLenRatio)
	analysis := &model.DriftAnalysis{
		Score:            score,
		OutputSimilarity: bestSim,
		LengthRatio:      bestLenRatio,
		Threshold:        threshold,
	}
	if score > threshold {
		analysis.Recommendation = recommend(analysis)
	}
	return analysis
}

func recommend(a *model.DriftAnalysis) string {
	if a.LengthRatio < 0.5 {
		return fmt.Sprintf("response length diverged sharply from the baseline (ratio %.2f); check for truncation or prompt changes", a.LengthRatio)
	}
	return fmt.Sprintf("output similarity to baseline is %.2f, below expectations; review recent model or prompt changes for this profile", a.OutputSimilarity)
}

// tokenSimilarity is word-set Jaccard similarity, case-insensitive
func tokenSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w != "" {
			set[w] = true
		}
	}
	return set
}

// lengthRatio is shorter/longer in runes, 1.0 when equal
func lengthRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1.0
	}
	if la == 0 || lb == 0 {
		return 0.0
	}
	if la > lb {
		la, lb = lb, la
	}
	return float64(la) / float64(lb)
}
