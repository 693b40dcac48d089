package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grandrounds/grandrounds/internal/models"
)

func TestBuildCaseSummary_EmptySession(t *testing.T) {
	o := newTestOrchestrator(newScriptedProvider(), nil, Config{})

	_, err := o.BuildCaseSummary(models.PatientSession{SessionID: "s1"})
	require.ErrorIs(t, err, ErrEmptyCase)

	// Whitespace-only content is still empty.
	_, err = o.BuildCaseSummary(models.PatientSession{
		SessionID:      "s2",
		ChiefComplaint: "   ",
	})
	require.ErrorIs(t, err, ErrEmptyCase)
}

func TestBuildCaseSummary_HistoryOnlyIsUsable(t *testing.T) {
	o := newTestOrchestrator(newScriptedProvider(), nil, Config{})

	summary, err := o.BuildCaseSummary(models.PatientSession{
		SessionID:        "s3",
		HistoryOfIllness: "Three days of watery diarrhea after travel.",
	})
	require.NoError(t, err)
	assert.Empty(t, summary.ChiefComplaint)
	assert.NotEmpty(t, summary.HistoryNarrative)
}

func TestBuildCaseSummary_RedFlags(t *testing.T) {
	o := newTestOrchestrator(newScriptedProvider(), nil, Config{})

	summary, err := o.BuildCaseSummary(models.PatientSession{
		SessionID:          "s4",
		ChiefComplaint:     "chest pain",
		HistoryOfIllness:   "Sudden onset crushing chest pain radiating to the left arm.",
		Severity:           9,
		TriageLevel:        2,
		AssociatedSymptoms: []string{"shortness of breath", "diaphoresis"},
	})
	require.NoError(t, err)

	// Keyword flags for chest pain, sudden, and shortness of breath,
	// plus the severity and triage flags.
	assert.GreaterOrEqual(t, len(summary.RedFlags), 5)
	assert.Equal(t, models.ComplexityHigh, summary.Complexity)
}

func TestBuildCaseSummary_LowComplexity(t *testing.T) {
	o := newTestOrchestrator(newScriptedProvider(), nil, Config{})

	summary, err := o.BuildCaseSummary(models.PatientSession{
		SessionID:      "s5",
		ChiefComplaint: "runny nose",
		Severity:       2,
	})
	require.NoError(t, err)
	assert.Empty(t, summary.RedFlags)
	assert.Equal(t, models.ComplexityLow, summary.Complexity)
}

func TestBuildCaseSummary_Descriptor(t *testing.T) {
	o := newTestOrchestrator(newScriptedProvider(), nil, Config{})

	summary, err := o.BuildCaseSummary(models.PatientSession{
		SessionID:      "s6",
		PatientAge:     54,
		PatientSex:     "Female",
		ChiefComplaint: "cough",
	})
	require.NoError(t, err)
	assert.Equal(t, "54-year-old female", summary.PatientDescriptor)

	summary, err = o.BuildCaseSummary(models.PatientSession{
		SessionID:      "s7",
		ChiefComplaint: "cough",
	})
	require.NoError(t, err)
	assert.Equal(t, "patient, demographics not recorded", summary.PatientDescriptor)
}

func TestRecruitSpecialists_RelevanceFloor(t *testing.T) {
	o := newTestOrchestrator(newScriptedProvider(), nil, Config{MinRelevance: 0.6})

	summary, err := o.BuildCaseSummary(models.PatientSession{
		SessionID:      "s8",
		ChiefComplaint: "wheezing",
	})
	require.NoError(t, err)

	recruited, weights := o.RecruitSpecialists(summary)

	ids := make([]string, 0, len(recruited))
	for _, p := range recruited {
		ids = append(ids, p.ID)
	}

	// Pulmonology matches wheezing directly; internal medicine rides its
	// always-include flag; emergency has no overlap and a weight below
	// the floor.
	assert.Contains(t, ids, "pulmonology")
	assert.Contains(t, ids, "internal_medicine")
	assert.NotContains(t, ids, "emergency")
	assert.Greater(t, weights["pulmonology"], weights["emergency"])
}

func TestRecruitSpecialists_NeverEmpty(t *testing.T) {
	roster := []models.SpecialistProfile{
		{ID: "dermatology", Role: "Dermatologist", SymptomWeights: map[string]float64{"rash": 1.0}},
	}
	o := New(Config{MinRelevance: 0.99}, Heuristics{}, roster, newScriptedProvider(), nil, nil, nil, nil)

	summary := models.CaseSummary{SessionID: "s9", Symptoms: []string{"headache"}}
	recruited, _ := o.RecruitSpecialists(summary)

	// Nothing cleared the floor, so the whole roster participates.
	assert.Len(t, recruited, 1)
}
