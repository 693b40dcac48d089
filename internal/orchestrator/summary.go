package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/grandrounds/grandrounds/internal/models"
)

// Complexity score thresholds: below lowCutoff is low, below
// moderateCutoff is moderate, anything else is high.
const (
	complexityLowCutoff      = 6.0
	complexityModerateCutoff = 12.0
)

// ErrEmptyCase means the session carries no usable clinical content.
var ErrEmptyCase = errors.New("session has neither chief complaint nor history")

// BuildCaseSummary deterministically transforms the raw session into the
// immutable case summary every prompt is built from.
func (o *Orchestrator) BuildCaseSummary(session models.PatientSession) (models.CaseSummary, error) {
	complaint := strings.TrimSpace(session.ChiefComplaint)
	history := strings.TrimSpace(session.HistoryOfIllness)
	if complaint == "" && history == "" {
		return models.CaseSummary{}, ErrEmptyCase
	}

	symptoms := make([]string, 0, len(session.AssociatedSymptoms)+1)
	if complaint != "" {
		symptoms = append(symptoms, complaint)
	}
	for _, s := range session.AssociatedSymptoms {
		if t := strings.TrimSpace(s); t != "" {
			symptoms = append(symptoms, t)
		}
	}

	redFlags := o.detectRedFlags(session, symptoms)

	summary := models.CaseSummary{
		SessionID:         session.SessionID,
		PatientDescriptor: patientDescriptor(session),
		ChiefComplaint:    complaint,
		HistoryNarrative:  history,
		StructuredHistory: structuredHistoryBlock(session),
		RedFlags:          redFlags,
		RelevantHistory:   strings.Join(session.MedicalHistory, "; "),
		Symptoms:          symptoms,
		Severity:          session.Severity,
		TriageLevel:       session.TriageLevel,
	}
	summary.Complexity = classifyComplexity(len(redFlags), len(symptoms), session.Severity, session.TriageLevel)
	return summary, nil
}

// detectRedFlags scans the session's narrative fields for the configured
// keywords and adds severity and triage based flags.
func (o *Orchestrator) detectRedFlags(session models.PatientSession, symptoms []string) []string {
	haystack := strings.ToLower(strings.Join(append([]string{
		session.ChiefComplaint, session.HistoryOfIllness,
	}, symptoms...), " \n "))

	var flags []string
	for _, keyword := range o.heuristics.RedFlagKeywords {
		if strings.Contains(haystack, strings.ToLower(keyword)) {
			flags = append(flags, fmt.Sprintf("Reported %q", keyword))
		}
	}
	if session.Severity >= o.heuristics.SeverityRedFlag {
		flags = append(flags, fmt.Sprintf("Severity %d/10", session.Severity))
	}
	if session.TriageLevel > 0 && session.TriageLevel <= o.heuristics.TriageRedFlag {
		flags = append(flags, fmt.Sprintf("Pre-assigned triage level %d", session.TriageLevel))
	}
	return flags
}

// classifyComplexity scores flag count, symptom count, severity, and the
// known triage level into low / moderate / high.
func classifyComplexity(flagCount, symptomCount, severity, triageLevel int) models.Complexity {
	score := float64(flagCount)*2 + float64(symptomCount) + float64(severity)/2
	if triageLevel > 0 {
		score += float64(6-triageLevel) * 2
	}

	switch {
	case score < complexityLowCutoff:
		return models.ComplexityLow
	case score < complexityModerateCutoff:
		return models.ComplexityModerate
	default:
		return models.ComplexityHigh
	}
}

func patientDescriptor(session models.PatientSession) string {
	var parts []string
	if session.PatientAge > 0 {
		parts = append(parts, fmt.Sprintf("%d-year-old", session.PatientAge))
	}
	if sex := strings.TrimSpace(session.PatientSex); sex != "" {
		parts = append(parts, strings.ToLower(sex))
	}
	if len(parts) == 0 {
		return "patient, demographics not recorded"
	}
	return strings.Join(parts, " ")
}

func structuredHistoryBlock(session models.PatientSession) string {
	var b strings.Builder
	b.WriteString("STRUCTURED HISTORY:\n")
	writeField := func(label, value string) {
		if value != "" {
			b.WriteString(fmt.Sprintf("  %s: %s\n", label, value))
		}
	}

	writeField("Onset", session.Onset)
	if session.Severity > 0 {
		writeField("Severity", fmt.Sprintf("%d/10", session.Severity))
	}
	writeField("Associated symptoms", strings.Join(session.AssociatedSymptoms, ", "))
	writeField("Past medical history", strings.Join(session.MedicalHistory, ", "))
	writeField("Medications", strings.Join(session.Medications, ", "))
	writeField("Allergies", strings.Join(session.Allergies, ", "))
	if session.TriageLevel > 0 {
		writeField("Prior triage level", fmt.Sprintf("ESI %d", session.TriageLevel))
	}
	return b.String()
}
