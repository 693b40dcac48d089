package consensus

import (
	"sort"

	"github.com/grandrounds/grandrounds/internal/models"
)

// diagnosisKeys returns the union of diagnosis keys cited across all
// opinions, sorted for deterministic column order.
func diagnosisKeys(opinions []models.AgentOpinion) []string {
	seen := make(map[string]bool)
	keys := make([]string, 0)
	for _, op := range opinions {
		for _, entry := range op.Differential {
			k := entry.Key()
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// RankMatrix builds the N x K rank matrix over the union of diagnosis
// keys. An agent that did not cite a diagnosis is assigned the sentinel
// worst rank K+1 for that column.
func RankMatrix(opinions []models.AgentOpinion) ([]string, [][]float64) {
	keys := diagnosisKeys(opinions)
	worst := float64(len(keys) + 1)

	matrix := make([][]float64, len(opinions))
	for i, op := range opinions {
		row := make([]float64, len(keys))
		ranks := make(map[string]float64, len(op.Differential))
		for _, entry := range op.Differential {
			ranks[entry.Key()] = float64(entry.Rank)
		}
		for j, key := range keys {
			if r, ok := ranks[key]; ok {
				row[j] = r
			} else {
				row[j] = worst
			}
		}
		matrix[i] = row
	}
	return keys, matrix
}

// KendallW computes Kendall's coefficient of concordance for the round.
// 1 means perfect agreement on ordering, 0 means none. Degenerate inputs
// (fewer than two agents or two diagnoses) are trivially in agreement.
func KendallW(opinions []models.AgentOpinion) float64 {
	keys, matrix := RankMatrix(opinions)
	return kendallWFromMatrix(matrix, len(keys))
}

func kendallWFromMatrix(matrix [][]float64, k int) float64 {
	n := len(matrix)
	if n < 2 || k < 2 {
		return 1
	}

	colSums := make([]float64, k)
	for _, row := range matrix {
		for j := 0; j < k; j++ {
			colSums[j] += row[j]
		}
	}

	mean := 0.0
	for _, s := range colSums {
		mean += s
	}
	mean /= float64(k)

	s := 0.0
	for _, sum := range colSums {
		d := sum - mean
		s += d * d
	}

	nf, kf := float64(n), float64(k)
	w := 12 * s / (nf * nf * (kf*kf*kf - kf))
	return models.Clamp01(w)
}
