package orchestrator

// End-to-end panel scenarios over a five-specialist roster.

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grandrounds/grandrounds/internal/consensus"
	"github.com/grandrounds/grandrounds/internal/models"
)

func abdominalRoster() []models.SpecialistProfile {
	ids := []string{"internal_medicine", "emergency", "gastroenterology", "surgery", "infectious_disease"}
	roster := make([]models.SpecialistProfile, 0, len(ids))
	for _, id := range ids {
		roster = append(roster, models.SpecialistProfile{
			ID:            id,
			Role:          id,
			AlwaysInclude: true,
		})
	}
	return roster
}

func abdominalSession() models.PatientSession {
	return models.PatientSession{
		SessionID:        "session-abd-1",
		ChiefComplaint:   "abdominal pain",
		HistoryOfIllness: "Right lower quadrant pain since yesterday, worse with movement.",
		Severity:         6,
	}
}

func newPanelOrchestrator(t *testing.T, provider *scriptedProvider) *Orchestrator {
	t.Helper()
	return New(Config{}, Heuristics{}, abdominalRoster(), provider,
		consensus.NewEngine(consensus.DefaultEngineConfig()),
		nil, nil, quietLogger())
}

func TestPanel_UnanimousFirstRound(t *testing.T) {
	provider := newScriptedProvider()
	response := structuredResponse(0.8, nil,
		[2]string{"Acute appendicitis", "RLQ pain with guarding"},
		[2]string{"Gastroenteritis", "Recent sick contact"},
	)
	for _, p := range abdominalRoster() {
		provider.respond(p.ID, response)
	}

	o := newPanelOrchestrator(t, provider)
	result := o.RunDebate(context.Background(), abdominalSession())

	assert.True(t, result.ConsensusReached)
	assert.Equal(t, 1, result.RoundsRequired)
	assert.InDelta(t, 1.0, result.KendallW, 1e-9)
	require.NotNil(t, result.PrimaryDiagnosis)
	assert.Equal(t, "Acute appendicitis", result.PrimaryDiagnosis.Diagnosis)
	assert.Len(t, result.ParticipatingAgents, 5)
	assert.Empty(t, result.DissentingOpinions)
}

func TestPanel_ThreeTwoSplitTriggersMoreRounds(t *testing.T) {
	provider := newScriptedProvider()
	appendicitis := structuredResponse(0.75, nil,
		[2]string{"Acute appendicitis", "Classic migration of pain"})
	diverticulitis := structuredResponse(0.75, nil,
		[2]string{"Acute diverticulitis", "Prior episodes, LLQ origin"})

	for _, id := range []string{"internal_medicine", "emergency", "gastroenterology"} {
		provider.respond(id, appendicitis)
	}
	for _, id := range []string{"surgery", "infectious_disease"} {
		provider.respond(id, diverticulitis)
	}

	o := newPanelOrchestrator(t, provider)
	result := o.RunDebate(context.Background(), abdominalSession())

	assert.Less(t, result.KendallW, 0.7)
	assert.False(t, result.ConsensusReached)
	assert.Greater(t, result.RoundsRequired, 1,
		"a split panel must get at least one extra round")

	// Both camps survive into the merged differential.
	assert.Len(t, result.Differential, 2)
	require.NotNil(t, result.PrimaryDiagnosis)
	assert.Equal(t, "Acute appendicitis", result.PrimaryDiagnosis.Diagnosis)
}

func TestPanel_OneFailureFourSurvive(t *testing.T) {
	provider := newScriptedProvider()
	response := structuredResponse(0.8, nil,
		[2]string{"Acute appendicitis", "RLQ pain with guarding"})
	for _, id := range []string{"internal_medicine", "emergency", "gastroenterology", "surgery"} {
		provider.respond(id, response)
	}
	provider.fail("infectious_disease", fmt.Errorf("connection reset"))

	o := newPanelOrchestrator(t, provider)
	result := o.RunDebate(context.Background(), abdominalSession())

	assert.True(t, result.ConsensusReached)
	assert.Len(t, result.ParticipatingAgents, 4)
	assert.NotContains(t, result.ParticipatingAgents, "infectious_disease")
}

func TestPanel_UngroundedDiagnosisKeptUnvalidated(t *testing.T) {
	provider := newScriptedProvider()
	response := structuredResponse(0.7, nil,
		[2]string{"totally fictitious disease xyz123", "No directory entry exists"})
	for _, p := range abdominalRoster() {
		provider.respond(p.ID, response)
	}

	o := New(Config{}, Heuristics{}, abdominalRoster(), provider,
		consensus.NewEngine(consensus.DefaultEngineConfig()),
		groundingFixture(t), nil, quietLogger())

	result := o.RunDebate(context.Background(), abdominalSession())

	// The entry survives grounding failure; it is just not validated.
	require.Len(t, result.Differential, 1)
	require.NotNil(t, result.Differential[0].Code)
	assert.False(t, result.Differential[0].Code.Validated)
	assert.Empty(t, result.Differential[0].Code.Code)
}
