package factcheck

import (
	"strings"
	"sync"
)

// KnowledgeBase holds trusted statements checked by word-set similarity.
// It is a deliberate placeholder for a real retrieval backend.
type KnowledgeBase struct {
	mu    sync.RWMutex
	facts []string
}

// NewKnowledgeBase creates a knowledge base seeded with the given facts
func NewKnowledgeBase(facts ...string) *KnowledgeBase {
	return &KnowledgeBase{facts: facts}
}

// Add appends facts to the knowledge base
func (kb *KnowledgeBase) Add(facts ...string) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.facts = append(kb.facts, facts...)
}

// Size returns the number of stored facts
func (kb *KnowledgeBase) Size() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.facts)
}

// Match returns the best-matching fact with Jaccard similarity >= threshold
func (kb *KnowledgeBase) Match(text string, threshold float64) (fact string, similarity float64, found bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	best := 0.0
	bestFact := ""
	for _, f := range kb.facts {
		sim := jaccard(text, f)
		if sim > best {
			best = sim
			bestFact = f
		}
	}
	if best >= threshold {
		return bestFact, best, true
	}
	return "", best, false
}

// jaccard computes word-set similarity between two texts
func jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
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

// wordSet lower-cases and strips punctuation into a unique word set
func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w != "" {
			set[w] = true
		}
	}
	return set
}

// sharedWords counts words common to both texts
func sharedWords(a, b string) int {
	setA := wordSet(a)
	setB := wordSet(b)
	count := 0
	for w := range setA {
		if setB[w] {
			count++
		}
	}
	return count
}
