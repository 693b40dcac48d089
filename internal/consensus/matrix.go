package consensus

import "github.com/grandrounds/grandrounds/internal/models"

// BuildMatrix assembles the per-round consensus matrix: raw and
// row-normalized agent confidence over the diagnosis union, per-agent
// weights summing to 1, and the weighted aggregate score per diagnosis.
// When the caller supplies no weights (nil or missing agents), weights
// are derived from each agent's vote weight instead.
func BuildMatrix(opinions []models.AgentOpinion, weights map[string]float64) models.ConsensusMatrix {
	keys := diagnosisKeys(opinions)
	index := make(map[string]int, len(keys))
	for i, k := range keys {
		index[k] = i
	}

	agentIDs := make([]string, len(opinions))
	raw := make([][]float64, len(opinions))
	normalized := make([][]float64, len(opinions))
	agentConfidence := make(map[string]float64, len(opinions))

	for i, op := range opinions {
		agentIDs[i] = op.AgentID
		agentConfidence[op.AgentID] = models.Clamp01(op.OverallConfidence)

		row := make([]float64, len(keys))
		for _, entry := range op.Differential {
			row[index[entry.Key()]] += models.Clamp01(entry.Confidence)
		}
		raw[i] = row

		norm := make([]float64, len(keys))
		total := 0.0
		for _, v := range row {
			total += v
		}
		if total > 0 {
			for j, v := range row {
				norm[j] = v / total
			}
		}
		normalized[i] = norm
	}

	resolved := resolveWeights(opinions, weights)

	aggregate := make(map[string]float64, len(keys))
	for j, key := range keys {
		score := 0.0
		for i, op := range opinions {
			score += resolved[op.AgentID] * normalized[i][j]
		}
		aggregate[key] = score
	}

	return models.ConsensusMatrix{
		AgentIDs:        agentIDs,
		Diagnoses:       keys,
		Raw:             raw,
		Normalized:      normalized,
		Weights:         resolved,
		AgentConfidence: agentConfidence,
		AggregateScores: aggregate,
	}
}

// resolveWeights normalizes caller-supplied weights over the present
// agents, falling back to vote-weight-derived values when the caller
// supplied none.
func resolveWeights(opinions []models.AgentOpinion, weights map[string]float64) map[string]float64 {
	resolved := make(map[string]float64, len(opinions))
	total := 0.0

	for _, op := range opinions {
		w := 0.0
		if weights != nil {
			w = weights[op.AgentID]
		}
		if weights == nil || w <= 0 {
			w = VoteWeight(op)
		}
		resolved[op.AgentID] = w
		total += w
	}

	if total == 0 {
		if len(resolved) == 0 {
			return resolved
		}
		uniform := 1.0 / float64(len(resolved))
		for id := range resolved {
			resolved[id] = uniform
		}
		return resolved
	}

	for id := range resolved {
		resolved[id] /= total
	}
	return resolved
}
