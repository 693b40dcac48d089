package models

import "time"

// ParseMethod records how an agent's raw output became an opinion.
type ParseMethod string

const (
	// ParseStructured means the agent returned valid structured JSON.
	ParseStructured ParseMethod = "structured"
	// ParseFallback means the opinion was recovered from numbered lines
	// after structured parsing failed. It is a degraded but usable state.
	ParseFallback ParseMethod = "fallback"
)

// ICDCode is a standardized diagnosis code attached to a differential entry.
type ICDCode struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Validated  bool    `json:"validated"`
}

// DifferentialEntry is one ranked diagnosis candidate.
// Ranks within a single opinion are unique and contiguous starting at 1.
type DifferentialEntry struct {
	Rank               int      `json:"rank"`
	Diagnosis          string   `json:"diagnosis"`
	Code               *ICDCode `json:"code,omitempty"`
	Confidence         float64  `json:"confidence"`
	Reasoning          string   `json:"reasoning,omitempty"`
	SupportingEvidence []string `json:"supporting_evidence,omitempty"`
	RefutingEvidence   []string `json:"refuting_evidence,omitempty"`
	MustNotMiss        bool     `json:"must_not_miss"`
	Urgency            Urgency  `json:"urgency,omitempty"`
}

// Key returns the identity used when comparing this entry across agents:
// the standardized code when one is attached, otherwise the raw text.
func (e DifferentialEntry) Key() string {
	if e.Code != nil && e.Code.Code != "" {
		return e.Code.Code
	}
	return e.Diagnosis
}

// AgentOpinion is one specialist's output for one debate round.
// Immutable once produced; opinions accumulate across rounds for audit.
type AgentOpinion struct {
	AgentID           string              `json:"agent_id"`
	Role              string              `json:"role"`
	Round             int                 `json:"round"`
	Differential      []DifferentialEntry `json:"differential"`
	OverallConfidence float64             `json:"overall_confidence"`
	Concerns          []string            `json:"concerns,omitempty"`
	Evidence          []string            `json:"evidence,omitempty"`
	RecommendedWorkup []string            `json:"recommended_workup,omitempty"`
	ParseMethod       ParseMethod         `json:"parse_method"`
	ProcessingTime    time.Duration       `json:"processing_time"`
	CreatedAt         time.Time           `json:"created_at"`
}

// TopDiagnosis returns the rank-1 entry, or nil for an empty differential.
func (o AgentOpinion) TopDiagnosis() *DifferentialEntry {
	for i := range o.Differential {
		if o.Differential[i].Rank == 1 {
			return &o.Differential[i]
		}
	}
	if len(o.Differential) > 0 {
		return &o.Differential[0]
	}
	return nil
}
