package consensus

import (
	"math"
	"sort"

	"github.com/grandrounds/grandrounds/internal/models"
)

// Disagreement blend weights over the three signals.
const (
	kendallSignalWeight    = 0.5
	distanceSignalWeight   = 0.35
	confidenceSignalWeight = 0.15
)

// maxPreferenceDistance is the largest possible Euclidean distance
// between two normalized preference vectors.
var maxPreferenceDistance = math.Sqrt2

// preferenceVectors builds each agent's normalized confidence vector over
// the union of diagnosis keys. Agents that cited nothing get zero vectors.
func preferenceVectors(opinions []models.AgentOpinion) ([]string, [][]float64) {
	keys := diagnosisKeys(opinions)
	index := make(map[string]int, len(keys))
	for i, k := range keys {
		index[k] = i
	}

	vectors := make([][]float64, len(opinions))
	for i, op := range opinions {
		vec := make([]float64, len(keys))
		total := 0.0
		for _, entry := range op.Differential {
			c := models.Clamp01(entry.Confidence)
			vec[index[entry.Key()]] += c
			total += c
		}
		if total > 0 {
			for j := range vec {
				vec[j] /= total
			}
		}
		vectors[i] = vec
	}
	return keys, vectors
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// DiscordantAgents finds agents whose preference vector sits further from
// the group mean than the configured number of standard deviations. With
// fewer than three agents the statistic is meaningless and the result is
// empty.
func (e *Engine) DiscordantAgents(opinions []models.AgentOpinion) []string {
	if len(opinions) < 3 {
		return nil
	}

	_, vectors := preferenceVectors(opinions)
	dims := len(vectors[0])
	mean := make([]float64, dims)
	for _, vec := range vectors {
		for j, v := range vec {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(vectors))
	}

	distances := make([]float64, len(vectors))
	meanDist := 0.0
	for i, vec := range vectors {
		distances[i] = euclidean(vec, mean)
		meanDist += distances[i]
	}
	meanDist /= float64(len(distances))

	variance := 0.0
	for _, d := range distances {
		dev := d - meanDist
		variance += dev * dev
	}
	variance /= float64(len(distances))
	stdDev := math.Sqrt(variance)

	cutoff := meanDist + e.config.DiscordanceThreshold*stdDev
	var discordant []string
	for i, d := range distances {
		if d > cutoff {
			discordant = append(discordant, opinions[i].AgentID)
		}
	}
	return discordant
}

// AnalyzeDisagreement blends Kendall's W, mean pairwise preference
// distance, and confidence variance into one disagreement score with a
// qualitative level and next-step recommendation.
func (e *Engine) AnalyzeDisagreement(opinions []models.AgentOpinion) models.DisagreementAnalysis {
	w := KendallW(opinions)
	_, vectors := preferenceVectors(opinions)

	pairDist := 0.0
	pairs := 0
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			pairDist += euclidean(vectors[i], vectors[j])
			pairs++
		}
	}
	distanceSignal := 0.0
	if pairs > 0 {
		distanceSignal = math.Min(1, (pairDist/float64(pairs))/maxPreferenceDistance)
	}

	confidenceSignal := math.Min(1, confidenceVariance(opinions)*e.config.ConfidenceVarianceScale)

	score := models.Clamp01(
		kendallSignalWeight*(1-w) +
			distanceSignalWeight*distanceSignal +
			confidenceSignalWeight*confidenceSignal)

	level := models.DisagreementMinor
	recommendation := models.RecommendProceed
	switch {
	case score < 0.3:
	case score < 0.6:
		level = models.DisagreementModerate
		recommendation = models.RecommendAdditionalRound
	default:
		level = models.DisagreementMajor
		recommendation = models.RecommendHumanReview
	}

	return models.DisagreementAnalysis{
		Score:            score,
		Level:            level,
		DiscordantAgents: e.DiscordantAgents(opinions),
		Recommendation:   recommendation,
		ContentionPoints: e.contentionPoints(opinions),
	}
}

func confidenceVariance(opinions []models.AgentOpinion) float64 {
	if len(opinions) == 0 {
		return 0
	}
	mean := 0.0
	for _, op := range opinions {
		mean += models.Clamp01(op.OverallConfidence)
	}
	mean /= float64(len(opinions))

	variance := 0.0
	for _, op := range opinions {
		d := models.Clamp01(op.OverallConfidence) - mean
		variance += d * d
	}
	return variance / float64(len(opinions))
}

// contentionPoints lists diagnoses whose assigned ranks vary widely among
// the agents that cited them. Requires at least two citers per diagnosis.
func (e *Engine) contentionPoints(opinions []models.AgentOpinion) []string {
	ranksByKey := make(map[string][]float64)
	for _, op := range opinions {
		for _, entry := range op.Differential {
			k := entry.Key()
			ranksByKey[k] = append(ranksByKey[k], float64(entry.Rank))
		}
	}

	keys := make([]string, 0, len(ranksByKey))
	for k := range ranksByKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var contended []string
	for _, k := range keys {
		ranks := ranksByKey[k]
		if len(ranks) < 2 {
			continue
		}
		mean := 0.0
		for _, r := range ranks {
			mean += r
		}
		mean /= float64(len(ranks))
		variance := 0.0
		for _, r := range ranks {
			d := r - mean
			variance += d * d
		}
		variance /= float64(len(ranks))
		if variance > e.config.ContentionVariance {
			contended = append(contended, k)
		}
	}
	return contended
}
