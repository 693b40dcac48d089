package models

import "time"

// DisagreementLevel qualifies how far apart a round's opinions are.
type DisagreementLevel string

const (
	DisagreementMinor    DisagreementLevel = "minor"
	DisagreementModerate DisagreementLevel = "moderate"
	DisagreementMajor    DisagreementLevel = "major"
)

// Recommendation is what the disagreement analysis suggests doing next.
type Recommendation string

const (
	RecommendProceed         Recommendation = "proceed"
	RecommendAdditionalRound Recommendation = "additional_round"
	RecommendHumanReview     Recommendation = "human_review"
)

// Disposition is the recommended care pathway for the final triage level.
type Disposition string

const (
	DispositionEmergency   Disposition = "emergency_department"
	DispositionUrgentCare  Disposition = "urgent_care"
	DispositionPrimaryCare Disposition = "primary_care"
	DispositionSelfCare    Disposition = "self_care"
)

// ConsensusMatrix is the per-round snapshot of who believes what.
// Rebuilt every round, never mutated in place.
type ConsensusMatrix struct {
	AgentIDs        []string           `json:"agent_ids"`
	Diagnoses       []string           `json:"diagnoses"`
	Raw             [][]float64        `json:"raw"`
	Normalized      [][]float64        `json:"normalized"`
	Weights         map[string]float64 `json:"weights"`
	AgentConfidence map[string]float64 `json:"agent_confidence"`
	AggregateScores map[string]float64 `json:"aggregate_scores"`
}

// DisagreementAnalysis summarizes a round's disagreement signals.
type DisagreementAnalysis struct {
	Score            float64           `json:"score"`
	Level            DisagreementLevel `json:"level"`
	DiscordantAgents []string          `json:"discordant_agents,omitempty"`
	Recommendation   Recommendation    `json:"recommendation"`
	ContentionPoints []string          `json:"contention_points,omitempty"`
}

// PlanOfAction is the aggregated care plan attached to a final decision.
type PlanOfAction struct {
	LabTests             []string `json:"lab_tests,omitempty"`
	Imaging              []string `json:"imaging,omitempty"`
	DiagnosticProcedures []string `json:"diagnostic_procedures,omitempty"`
	Management           []string `json:"management,omitempty"`
	PatientEducation     []string `json:"patient_education,omitempty"`
	FollowUp             []string `json:"follow_up,omitempty"`
	RedFlagWarnings      []string `json:"red_flag_warnings,omitempty"`
}

// DissentingOpinion records an outlier agent's competing top diagnosis.
type DissentingOpinion struct {
	AgentID    string  `json:"agent_id"`
	Role       string  `json:"role"`
	Diagnosis  string  `json:"diagnosis"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ConsensusResult is the terminal artifact of one debate run.
// Callers always receive one, even when the run fails catastrophically.
type ConsensusResult struct {
	SessionID           string              `json:"session_id"`
	KendallW            float64             `json:"kendall_w"`
	ConsensusReached    bool                `json:"consensus_reached"`
	RoundsRequired      int                 `json:"rounds_required"`
	ParticipatingAgents []string            `json:"participating_agents"`
	PrimaryDiagnosis    *DifferentialEntry  `json:"primary_diagnosis,omitempty"`
	Differential        []DifferentialEntry `json:"differential"`
	Plan                PlanOfAction        `json:"plan"`
	DissentingOpinions  []DissentingOpinion `json:"dissenting_opinions,omitempty"`
	TriageLevel         int                 `json:"triage_level"`
	HumanReviewRequired bool                `json:"human_review_required"`
	HumanReviewReason   string              `json:"human_review_reason,omitempty"`
	Disposition         Disposition         `json:"disposition"`
	CreatedAt           time.Time           `json:"created_at"`
}
