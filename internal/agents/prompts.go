package agents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grandrounds/grandrounds/internal/models"
)

// outputContract is appended to every consultation so specialists answer
// in the structured shape the parser expects.
const outputContract = `Respond with a single JSON object:
{
  "differentialDiagnosis": [
    {
      "rank": 1,
      "diagnosis": "...",
      "code": "optional ICD-10 code",
      "confidence": 0.0,
      "reasoning": "...",
      "supportingEvidence": ["..."],
      "mustNotMiss": false,
      "urgency": "emergent|urgent|routine"
    }
  ],
  "overallConfidence": 0.0,
  "concerns": ["..."],
  "recommendedWorkup": ["..."]
}
Rank from most to least likely. Confidence values are in [0,1].`

// BuildSystemPrompt sets the specialist persona for a consultation.
func BuildSystemPrompt(profile models.SpecialistProfile) string {
	return fmt.Sprintf(
		"You are a %s participating in a multi-specialty diagnostic case "+
			"conference. Assess the case strictly from your specialty's "+
			"perspective, state your differential diagnosis candidly, and "+
			"flag anything that must not be missed.", profile.Role)
}

// BuildCasePrompt renders the round-1 independent assessment prompt.
func BuildCasePrompt(summary models.CaseSummary) string {
	var b strings.Builder
	b.WriteString("PATIENT: ")
	b.WriteString(summary.PatientDescriptor)
	b.WriteString("\nCHIEF COMPLAINT: ")
	b.WriteString(summary.ChiefComplaint)
	b.WriteString("\n\nHISTORY:\n")
	b.WriteString(summary.HistoryNarrative)
	b.WriteString("\n\n")
	b.WriteString(summary.StructuredHistory)

	if len(summary.RedFlags) > 0 {
		b.WriteString("\nRED FLAGS:\n")
		for _, flag := range summary.RedFlags {
			b.WriteString("- ")
			b.WriteString(flag)
			b.WriteString("\n")
		}
	}
	if summary.RelevantHistory != "" {
		b.WriteString("\nRELEVANT HISTORY: ")
		b.WriteString(summary.RelevantHistory)
		b.WriteString("\n")
	}

	b.WriteString("\nProvide your independent differential diagnosis.\n\n")
	b.WriteString(outputContract)
	return b.String()
}

// BuildDebatePrompt renders a round-N prompt: the case, a condensed view
// of the previous round, and (for discordant agents) targeted feedback.
func BuildDebatePrompt(summary models.CaseSummary, previous []models.AgentOpinion, round int, feedback string) string {
	var b strings.Builder
	b.WriteString(BuildCasePrompt(summary))
	b.WriteString(fmt.Sprintf("\n\nDEBATE ROUND %d. The panel has not yet reached consensus.\n", round))
	b.WriteString("Previous round positions:\n")
	b.WriteString(condenseOpinions(previous))

	if feedback != "" {
		b.WriteString("\n")
		b.WriteString(feedback)
		b.WriteString("\n")
	}

	b.WriteString("\nReconsider your assessment in light of the panel's views. " +
		"You may revise your ranking or defend it with stronger reasoning.\n")
	return b.String()
}

// BuildDiscordanceFeedback is the templated "reconsider" message for an
// agent whose position deviates from the consensus view.
func BuildDiscordanceFeedback(agentTop, consensusTop string) string {
	return fmt.Sprintf(
		"FEEDBACK: Your leading diagnosis (%s) diverges from the panel's "+
			"current consensus (%s). Either provide the specific evidence "+
			"that justifies your position or adjust your ranking toward "+
			"the consensus view.", agentTop, consensusTop)
}

// condenseOpinions summarizes a round: the top aggregate diagnoses with
// mean confidence, then each agent's own leading pick.
func condenseOpinions(opinions []models.AgentOpinion) string {
	type tally struct {
		total float64
		count int
	}
	byDiagnosis := make(map[string]*tally)
	for _, op := range opinions {
		for _, entry := range op.Differential {
			t, ok := byDiagnosis[entry.Diagnosis]
			if !ok {
				t = &tally{}
				byDiagnosis[entry.Diagnosis] = t
			}
			t.total += entry.Confidence
			t.count++
		}
	}

	names := make([]string, 0, len(byDiagnosis))
	for name := range byDiagnosis {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ti, tj := byDiagnosis[names[i]], byDiagnosis[names[j]]
		mi, mj := ti.total/float64(ti.count), tj.total/float64(tj.count)
		if mi != mj {
			return mi > mj
		}
		return names[i] < names[j]
	})
	if len(names) > 3 {
		names = names[:3]
	}

	var b strings.Builder
	b.WriteString("Leading diagnoses across the panel:\n")
	for _, name := range names {
		t := byDiagnosis[name]
		b.WriteString(fmt.Sprintf("- %s (mean confidence %.2f, cited by %d)\n",
			name, t.total/float64(t.count), t.count))
	}

	b.WriteString("Per-specialist leading picks:\n")
	for _, op := range opinions {
		if top := op.TopDiagnosis(); top != nil {
			b.WriteString(fmt.Sprintf("- %s: %s (%.2f)\n", op.Role, top.Diagnosis, top.Confidence))
		}
	}
	return b.String()
}
