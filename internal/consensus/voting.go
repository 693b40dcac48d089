package consensus

import (
	"math"
	"sort"

	"github.com/grandrounds/grandrounds/internal/models"
)

// VoteWeight returns an agent's influence in the merged differential:
// its declared confidence discounted by how many concerns it raised.
// An agent with no concerns keeps its full confidence.
func VoteWeight(op models.AgentOpinion) float64 {
	penalty := 1.0 / (1.0 + math.Log(1.0+float64(len(op.Concerns))))
	return models.Clamp01(op.OverallConfidence) * penalty
}

// mergedCandidate accumulates one diagnosis across agents during voting.
type mergedCandidate struct {
	diagnosis   string
	code        *models.ICDCode
	totalScore  float64
	totalWeight float64
	reasoning   string
	reasonConf  float64
	supporting  []string
	refuting    []string
	mustNotMiss bool
	urgency     models.Urgency
}

// WeightedVote merges a round's opinions into a single ranked
// differential. Scores favor diagnoses ranked highly by confident agents;
// evidence lists are unioned, mustNotMiss is sticky, and urgency
// escalates to the most severe value any agent assigned.
func WeightedVote(opinions []models.AgentOpinion) []models.DifferentialEntry {
	candidates := make(map[string]*mergedCandidate)
	order := make([]string, 0)

	for _, op := range opinions {
		weight := VoteWeight(op)
		maxRank := 0
		for _, entry := range op.Differential {
			if entry.Rank > maxRank {
				maxRank = entry.Rank
			}
		}

		for _, entry := range op.Differential {
			key := entry.Key()
			cand, ok := candidates[key]
			if !ok {
				cand = &mergedCandidate{diagnosis: entry.Diagnosis}
				candidates[key] = cand
				order = append(order, key)
			}

			rankScore := float64(maxRank - entry.Rank + 1)
			cand.totalScore += rankScore * weight * models.Clamp01(entry.Confidence)
			cand.totalWeight += weight

			if cand.code == nil && entry.Code != nil {
				code := *entry.Code
				cand.code = &code
			}
			if entry.Reasoning != "" && entry.Confidence >= cand.reasonConf {
				cand.reasoning = entry.Reasoning
				cand.reasonConf = entry.Confidence
			}
			cand.supporting = unionStrings(cand.supporting, entry.SupportingEvidence)
			cand.refuting = unionStrings(cand.refuting, entry.RefutingEvidence)
			cand.mustNotMiss = cand.mustNotMiss || entry.MustNotMiss
			if entry.Urgency.MoreSevere(cand.urgency) {
				cand.urgency = entry.Urgency
			}
		}
	}

	merged := make([]models.DifferentialEntry, 0, len(order))
	for _, key := range order {
		cand := candidates[key]
		score := 0.0
		if cand.totalWeight > 0 {
			score = cand.totalScore / cand.totalWeight
		}
		merged = append(merged, models.DifferentialEntry{
			Diagnosis:          cand.diagnosis,
			Code:               cand.code,
			Confidence:         models.Clamp01(score),
			Reasoning:          cand.reasoning,
			SupportingEvidence: cand.supporting,
			RefutingEvidence:   cand.refuting,
			MustNotMiss:        cand.mustNotMiss,
			Urgency:            cand.urgency,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Confidence != merged[j].Confidence {
			return merged[i].Confidence > merged[j].Confidence
		}
		return merged[i].Diagnosis < merged[j].Diagnosis
	})
	for i := range merged {
		merged[i].Rank = i + 1
	}
	return merged
}

// unionStrings appends items from add that dst does not already contain,
// preserving first-seen order.
func unionStrings(dst, add []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range add {
		if s != "" && !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}
