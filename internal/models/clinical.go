package models

import "strings"

// Complexity classifies how demanding a case is to work up.
type Complexity string

const (
	ComplexityLow      Complexity = "low"
	ComplexityModerate Complexity = "moderate"
	ComplexityHigh     Complexity = "high"
)

// Urgency tags how quickly a diagnosis needs to be acted on.
// An empty value means the specialist did not commit to one.
type Urgency string

const (
	UrgencyEmergent Urgency = "emergent"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyRoutine  Urgency = "routine"
)

// severityRank orders urgencies from least to most severe.
var severityRank = map[Urgency]int{
	"":              0,
	UrgencyRoutine:  1,
	UrgencyUrgent:   2,
	UrgencyEmergent: 3,
}

// MoreSevere reports whether u outranks other on the urgency scale.
func (u Urgency) MoreSevere(other Urgency) bool {
	return severityRank[u] > severityRank[other]
}

// ParseUrgency maps free text onto a known urgency, defaulting to empty.
func ParseUrgency(s string) Urgency {
	switch Urgency(strings.ToLower(strings.TrimSpace(s))) {
	case UrgencyEmergent:
		return UrgencyEmergent
	case UrgencyUrgent:
		return UrgencyUrgent
	case UrgencyRoutine:
		return UrgencyRoutine
	}
	return ""
}

// SpecialistProfile is the static configuration for one reasoning agent.
// Profiles are loaded once per process and never mutated.
type SpecialistProfile struct {
	ID             string             `json:"id" yaml:"id"`
	Role           string             `json:"role" yaml:"role"`
	SymptomWeights map[string]float64 `json:"symptom_weights" yaml:"symptom_weights"`
	AlwaysInclude  bool               `json:"always_include" yaml:"always_include"`
	ModelTier      string             `json:"model_tier" yaml:"model_tier"`
}

// PatientSession is the raw intake for one debate run.
type PatientSession struct {
	SessionID          string   `json:"session_id"`
	PatientAge         int      `json:"patient_age"`
	PatientSex         string   `json:"patient_sex"`
	ChiefComplaint     string   `json:"chief_complaint"`
	HistoryOfIllness   string   `json:"history_of_illness"`
	Onset              string   `json:"onset"`
	Severity           int      `json:"severity"` // 0-10 patient-reported
	AssociatedSymptoms []string `json:"associated_symptoms"`
	MedicalHistory     []string `json:"medical_history"`
	Medications        []string `json:"medications"`
	Allergies          []string `json:"allergies"`
	TriageLevel        int      `json:"triage_level"` // ESI 1-5, 0 when unknown
}

// CaseSummary is the immutable, formatted view of a session that every
// specialist prompt is built from. Built once per debate run.
type CaseSummary struct {
	SessionID         string     `json:"session_id"`
	PatientDescriptor string     `json:"patient_descriptor"`
	ChiefComplaint    string     `json:"chief_complaint"`
	HistoryNarrative  string     `json:"history_narrative"`
	StructuredHistory string     `json:"structured_history"`
	RedFlags          []string   `json:"red_flags"`
	RelevantHistory   string     `json:"relevant_history"`
	Symptoms          []string   `json:"symptoms"`
	Severity          int        `json:"severity"`
	TriageLevel       int        `json:"triage_level"`
	Complexity        Complexity `json:"complexity"`
}

// Clamp01 clamps v into [0,1], absorbing floating-point drift.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
