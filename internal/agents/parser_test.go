package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grandrounds/grandrounds/internal/models"
)

func testProfile() models.SpecialistProfile {
	return models.SpecialistProfile{ID: "cardiology", Role: "Cardiologist"}
}

const structuredResponse = `Here is my assessment.

` + "```json" + `
{
  "differentialDiagnosis": [
    {
      "rank": 1,
      "diagnosis": "Acute coronary syndrome",
      "code": "I24.9",
      "confidence": 0.7,
      "reasoning": "Exertional chest pressure with risk factors",
      "supportingEvidence": ["crushing chest pain", "diaphoresis"],
      "mustNotMiss": true,
      "urgency": "emergent"
    },
    {
      "rank": 2,
      "diagnosis": "GERD",
      "confidence": 0.3,
      "urgency": "routine"
    }
  ],
  "overallConfidence": 0.75,
  "concerns": ["no ECG available"],
  "recommendedWorkup": ["ECG", "troponin"]
}
` + "```" + `

Let me know if you need more detail.`

func TestParseOpinion_Structured(t *testing.T) {
	op := ParseOpinion(structuredResponse, testProfile(), 1)

	assert.Equal(t, models.ParseStructured, op.ParseMethod)
	assert.Equal(t, "cardiology", op.AgentID)
	assert.Equal(t, 1, op.Round)
	assert.InDelta(t, 0.75, op.OverallConfidence, 1e-9)
	assert.Equal(t, []string{"no ECG available"}, op.Concerns)
	assert.Equal(t, []string{"ECG", "troponin"}, op.RecommendedWorkup)

	require.Len(t, op.Differential, 2)
	top := op.Differential[0]
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, "Acute coronary syndrome", top.Diagnosis)
	require.NotNil(t, top.Code)
	assert.Equal(t, "I24.9", top.Code.Code)
	assert.False(t, top.Code.Validated)
	assert.True(t, top.MustNotMiss)
	assert.Equal(t, models.UrgencyEmergent, top.Urgency)
}

func TestParseOpinion_InlineJSONWithoutFences(t *testing.T) {
	raw := `My answer: {"differentialDiagnosis":[{"rank":1,"diagnosis":"Migraine","confidence":0.6}],"overallConfidence":0.6} done`

	op := ParseOpinion(raw, testProfile(), 2)
	assert.Equal(t, models.ParseStructured, op.ParseMethod)
	require.Len(t, op.Differential, 1)
	assert.Equal(t, "Migraine", op.Differential[0].Diagnosis)
	assert.Equal(t, 2, op.Round)
}

func TestParseOpinion_RanksNormalizedContiguous(t *testing.T) {
	raw := `{"differentialDiagnosis":[
		{"rank":5,"diagnosis":"C","confidence":0.2},
		{"rank":1,"diagnosis":"A","confidence":0.8},
		{"rank":3,"diagnosis":"B","confidence":0.5}
	],"overallConfidence":0.7}`

	op := ParseOpinion(raw, testProfile(), 1)
	require.Len(t, op.Differential, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{
		op.Differential[0].Diagnosis,
		op.Differential[1].Diagnosis,
		op.Differential[2].Diagnosis,
	})
	for i, e := range op.Differential {
		assert.Equal(t, i+1, e.Rank)
	}
}

func TestParseOpinion_FallbackNumberedList(t *testing.T) {
	raw := `I could not produce JSON, but my thinking:

1. Acute appendicitis
2) Gastroenteritis
3. Mesenteric adenitis

Hope that helps.`

	op := ParseOpinion(raw, testProfile(), 1)
	assert.Equal(t, models.ParseFallback, op.ParseMethod)
	require.Len(t, op.Differential, 3)

	assert.Equal(t, "Acute appendicitis", op.Differential[0].Diagnosis)
	assert.InDelta(t, 0.45, op.Differential[0].Confidence, 1e-9)
	assert.InDelta(t, 0.40, op.Differential[1].Confidence, 1e-9)
	assert.InDelta(t, 0.35, op.Differential[2].Confidence, 1e-9)

	require.NotEmpty(t, op.Concerns)
	assert.Contains(t, op.Concerns[0], "could not be parsed")
}

func TestParseOpinion_FallbackWithNoNumberedLines(t *testing.T) {
	op := ParseOpinion("The patient should see a doctor.", testProfile(), 1)

	assert.Equal(t, models.ParseFallback, op.ParseMethod)
	assert.Empty(t, op.Differential)
	assert.Zero(t, op.OverallConfidence)
	assert.NotEmpty(t, op.Concerns)
}

func TestParseOpinion_ClampsConfidences(t *testing.T) {
	raw := `{"differentialDiagnosis":[{"rank":1,"diagnosis":"X","confidence":1.7}],"overallConfidence":-0.4}`

	op := ParseOpinion(raw, testProfile(), 1)
	require.Len(t, op.Differential, 1)
	assert.Equal(t, 1.0, op.Differential[0].Confidence)
	assert.Equal(t, 0.0, op.OverallConfidence)
}

func TestExtractJSON_BalancedBracesInsideStrings(t *testing.T) {
	raw := `{"a":"brace } inside","b":{"c":1}}`
	assert.Equal(t, raw, extractJSON("noise "+raw+" trailing"))
}

func TestExtractJSON_NoObject(t *testing.T) {
	assert.Empty(t, extractJSON("no json here"))
}

func TestBuildDebatePrompt_MentionsPriorPositions(t *testing.T) {
	summary := models.CaseSummary{
		PatientDescriptor: "42-year-old female",
		ChiefComplaint:    "abdominal pain",
		HistoryNarrative:  "two days of worsening right lower quadrant pain",
	}
	previous := []models.AgentOpinion{
		{
			AgentID: "surgery", Role: "General Surgeon", Round: 1,
			Differential: []models.DifferentialEntry{
				{Rank: 1, Diagnosis: "Acute appendicitis", Confidence: 0.8},
			},
			OverallConfidence: 0.8,
		},
	}

	prompt := BuildDebatePrompt(summary, previous, 2, BuildDiscordanceFeedback("Ovarian torsion", "Acute appendicitis"))
	assert.Contains(t, prompt, "DEBATE ROUND 2")
	assert.Contains(t, prompt, "Acute appendicitis")
	assert.Contains(t, prompt, "General Surgeon")
	assert.Contains(t, prompt, "FEEDBACK")
	assert.Contains(t, prompt, "Ovarian torsion")
}
