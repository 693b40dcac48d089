package consensus

import (
	"sort"
	"strings"

	"github.com/grandrounds/grandrounds/internal/models"
)

// alwaysIncludeFloor is the minimum raw relevance score granted to
// specialists flagged always-include before normalization.
const alwaysIncludeFloor = 0.5

// substringDiscount scales the weight of a keyword that only matches a
// symptom as a substring rather than exactly.
const substringDiscount = 0.7

// AgentRelevanceWeights scores each specialist's relevance to the case's
// symptom list and normalizes the scores to sum to 1. An exact keyword
// match contributes its full weight; otherwise the first keyword that
// matches as a substring (in either direction) contributes a discounted
// weight. With no signal at all, weights fall back to uniform.
func AgentRelevanceWeights(symptoms []string, roster []models.SpecialistProfile) map[string]float64 {
	weights := make(map[string]float64, len(roster))
	if len(roster) == 0 {
		return weights
	}

	total := 0.0
	for _, profile := range roster {
		raw := rawRelevance(symptoms, profile)
		if profile.AlwaysInclude && raw < alwaysIncludeFloor {
			raw = alwaysIncludeFloor
		}
		weights[profile.ID] = raw
		total += raw
	}

	if total == 0 {
		uniform := 1.0 / float64(len(roster))
		for id := range weights {
			weights[id] = uniform
		}
		return weights
	}

	for id := range weights {
		weights[id] /= total
	}
	return weights
}

func rawRelevance(symptoms []string, profile models.SpecialistProfile) float64 {
	if len(profile.SymptomWeights) == 0 {
		return 0
	}

	// Case-insensitive keyword table with deterministic order for the
	// substring fallback.
	byKeyword := make(map[string]float64, len(profile.SymptomWeights))
	keywords := make([]string, 0, len(profile.SymptomWeights))
	for k, w := range profile.SymptomWeights {
		lk := strings.ToLower(k)
		byKeyword[lk] = w
		keywords = append(keywords, lk)
	}
	sort.Strings(keywords)

	score := 0.0
	for _, symptom := range symptoms {
		s := strings.ToLower(strings.TrimSpace(symptom))
		if s == "" {
			continue
		}
		if w, ok := byKeyword[s]; ok {
			score += w
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(s, kw) || strings.Contains(kw, s) {
				score += substringDiscount * byKeyword[kw]
				break
			}
		}
	}
	return score
}
