package consensus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grandrounds/grandrounds/internal/models"
)

// opinion builds a test opinion from ordered diagnosis names with the
// given per-entry confidences.
func opinion(agentID string, confidence float64, entries ...models.DifferentialEntry) models.AgentOpinion {
	for i := range entries {
		if entries[i].Rank == 0 {
			entries[i].Rank = i + 1
		}
	}
	return models.AgentOpinion{
		AgentID:           agentID,
		Role:              "Specialist",
		Round:             1,
		Differential:      entries,
		OverallConfidence: confidence,
	}
}

func entry(diagnosis string, confidence float64) models.DifferentialEntry {
	return models.DifferentialEntry{Diagnosis: diagnosis, Confidence: confidence}
}

func TestKendallW_IdenticalRankings(t *testing.T) {
	var opinions []models.AgentOpinion
	for i := 0; i < 5; i++ {
		opinions = append(opinions, opinion(fmt.Sprintf("agent-%d", i), 0.8,
			entry("Acute appendicitis", 0.8),
			entry("Gastroenteritis", 0.5),
		))
	}

	assert.InDelta(t, 1.0, KendallW(opinions), 1e-9)
}

func TestKendallW_SingleAgent(t *testing.T) {
	opinions := []models.AgentOpinion{
		opinion("solo", 0.9, entry("Migraine", 0.7), entry("Tension headache", 0.4)),
	}
	assert.Equal(t, 1.0, KendallW(opinions))
}

func TestKendallW_SingleDiagnosis(t *testing.T) {
	opinions := []models.AgentOpinion{
		opinion("a", 0.9, entry("Migraine", 0.7)),
		opinion("b", 0.8, entry("Migraine", 0.6)),
	}
	assert.Equal(t, 1.0, KendallW(opinions))
}

func TestKendallW_NoOpinions(t *testing.T) {
	assert.Equal(t, 1.0, KendallW(nil))
}

func TestKendallW_DisjointRankings_Low(t *testing.T) {
	// 3 vs 2 split over completely disjoint differentials.
	var opinions []models.AgentOpinion
	for i := 0; i < 3; i++ {
		opinions = append(opinions, opinion(fmt.Sprintf("grp1-%d", i), 0.8,
			entry("Acute appendicitis", 0.8),
			entry("Gastroenteritis", 0.5),
		))
	}
	for i := 0; i < 2; i++ {
		opinions = append(opinions, opinion(fmt.Sprintf("grp2-%d", i), 0.8,
			entry("Ovarian torsion", 0.8),
			entry("Ectopic pregnancy", 0.5),
		))
	}

	w := KendallW(opinions)
	assert.Less(t, w, 0.7)
	assert.GreaterOrEqual(t, w, 0.0)
}

func TestKendallW_AlwaysInUnitInterval(t *testing.T) {
	diagnoses := []string{"A", "B", "C", "D", "E"}

	// Rotate each agent's ranking to sweep a range of agreement levels.
	for agents := 2; agents <= 6; agents++ {
		var opinions []models.AgentOpinion
		for i := 0; i < agents; i++ {
			var entries []models.DifferentialEntry
			for j := range diagnoses {
				entries = append(entries, entry(diagnoses[(i+j)%len(diagnoses)], 0.5))
			}
			opinions = append(opinions, opinion(fmt.Sprintf("agent-%d", i), 0.6, entries...))
		}

		w := KendallW(opinions)
		assert.GreaterOrEqual(t, w, 0.0, "agents=%d", agents)
		assert.LessOrEqual(t, w, 1.0, "agents=%d", agents)
	}
}

func TestRankMatrix_SentinelForMissingDiagnosis(t *testing.T) {
	opinions := []models.AgentOpinion{
		opinion("a", 0.9, entry("Migraine", 0.7), entry("Cluster headache", 0.3)),
		opinion("b", 0.8, entry("Tension headache", 0.6)),
	}

	keys, matrix := RankMatrix(opinions)
	require.Len(t, keys, 3)
	require.Len(t, matrix, 2)

	worst := float64(len(keys) + 1)
	// Agent b never mentioned Migraine or Cluster headache.
	for j, key := range keys {
		switch key {
		case "Tension headache":
			assert.Equal(t, 1.0, matrix[1][j])
			assert.Equal(t, worst, matrix[0][j])
		default:
			assert.Equal(t, worst, matrix[1][j])
		}
	}
}

func TestRankMatrix_KeyPrefersCode(t *testing.T) {
	coded := entry("Acute appendicitis", 0.8)
	coded.Code = &models.ICDCode{Code: "K35.80", Name: "Unspecified acute appendicitis"}

	opinions := []models.AgentOpinion{opinion("a", 0.9, coded)}
	keys, _ := RankMatrix(opinions)
	require.Equal(t, []string{"K35.80"}, keys)
}
