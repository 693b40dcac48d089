package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grandrounds/grandrounds/internal/consensus"
	"github.com/grandrounds/grandrounds/internal/models"
)

// mustNotMissReviewFloor is the merged confidence below which an
// unresolved must-not-miss diagnosis forces human review.
const mustNotMissReviewFloor = 0.5

// dispositionByTriage maps the final ESI-style triage level to a care
// pathway. Level 1 is the most urgent.
var dispositionByTriage = map[int]models.Disposition{
	1: models.DispositionEmergency,
	2: models.DispositionEmergency,
	3: models.DispositionUrgentCare,
	4: models.DispositionPrimaryCare,
	5: models.DispositionSelfCare,
}

// mergedTop returns the panel's current best diagnosis under the
// confidence-weighted vote, or nil when there is nothing to merge.
func (o *Orchestrator) mergedTop(opinions []models.AgentOpinion) *models.DifferentialEntry {
	merged := consensus.WeightedVote(opinions)
	if len(merged) == 0 {
		return nil
	}
	return &merged[0]
}

// finalDecision merges the last round's opinions into the terminal
// result: weighted differential, code grounding, aggregated plan,
// triage, disposition, and the review flags.
func (o *Orchestrator) finalDecision(
	ctx context.Context,
	summary models.CaseSummary,
	final roundState,
	weights map[string]float64,
	consensusReached bool,
) models.ConsensusResult {
	matrix := consensus.BuildMatrix(final.opinions, weights)
	merged := consensus.WeightedVote(final.opinions)
	merged = o.groundDifferential(ctx, merged)

	agents := make([]string, 0, len(final.opinions))
	for _, op := range final.opinions {
		agents = append(agents, op.AgentID)
	}

	triage := o.triageLevel(summary, merged)

	result := models.ConsensusResult{
		SessionID:           summary.SessionID,
		KendallW:            final.kendallW,
		ConsensusReached:    consensusReached,
		ParticipatingAgents: agents,
		Differential:        merged,
		Plan:                o.buildPlan(summary, final.opinions, merged, triage),
		DissentingOpinions:  o.dissentingOpinions(final, merged),
		TriageLevel:         triage,
		Disposition:         dispositionByTriage[triage],
		CreatedAt:           time.Now(),
	}
	if len(merged) > 0 {
		result.PrimaryDiagnosis = &merged[0]
	}

	if reason := o.reviewReason(consensusReached, final.analysis, merged); reason != "" {
		result.HumanReviewRequired = true
		result.HumanReviewReason = reason
	}

	o.log.WithFields(logrus.Fields{
		"session":      summary.SessionID,
		"kendall_w":    final.kendallW,
		"consensus":    consensusReached,
		"diagnoses":    len(matrix.Diagnoses),
		"triage":       triage,
		"disposition":  result.Disposition,
		"human_review": result.HumanReviewRequired,
	}).Info("final decision assembled")
	return result
}

// groundDifferential attaches validated codes to the merged entries.
// Grounding is advisory: a directory outage or an unmatched diagnosis
// downgrades the entry to unvalidated instead of failing the decision.
func (o *Orchestrator) groundDifferential(ctx context.Context, merged []models.DifferentialEntry) []models.DifferentialEntry {
	if o.grounding == nil || len(merged) == 0 {
		return merged
	}

	queries := make([]string, 0, len(merged))
	for _, entry := range merged {
		queries = append(queries, entry.Diagnosis)
	}

	grounded, err := o.grounding.GroundDifferential(ctx, queries)
	if err != nil {
		o.log.WithError(err).Warn("code grounding unavailable, differential left unvalidated")
	}

	codeByQuery := make(map[string]models.ICDCode, len(grounded))
	for _, g := range grounded {
		codeByQuery[strings.ToLower(g.Query)] = g.Code
	}

	for i := range merged {
		if code, ok := codeByQuery[strings.ToLower(merged[i].Diagnosis)]; ok {
			c := code
			merged[i].Code = &c
			continue
		}
		if merged[i].Code != nil {
			merged[i].Code.Validated = false
			continue
		}
		merged[i].Code = &models.ICDCode{Name: merged[i].Diagnosis, Validated: false}
	}
	return merged
}

// buildPlan aggregates every agent's recommended workup into classified
// buckets, applies the standard additions for the top diagnosis, and
// carries the case's red flags forward as explicit warnings.
func (o *Orchestrator) buildPlan(
	summary models.CaseSummary,
	opinions []models.AgentOpinion,
	merged []models.DifferentialEntry,
	triage int,
) models.PlanOfAction {
	var plan models.PlanOfAction
	seen := make(map[string]bool)

	add := func(bucket *[]string, item string) {
		item = strings.TrimSpace(item)
		if item == "" {
			return
		}
		key := strings.ToLower(item)
		if seen[key] {
			return
		}
		seen[key] = true
		*bucket = append(*bucket, item)
	}

	for _, op := range opinions {
		for _, item := range op.RecommendedWorkup {
			add(o.workupBucket(&plan, item), item)
		}
	}

	if len(merged) > 0 {
		top := strings.ToLower(merged[0].Diagnosis)
		for _, addition := range o.heuristics.StandardAdditions {
			if !matchesAnyKeyword(top, addition.Keywords) {
				continue
			}
			for _, item := range addition.LabTests {
				add(&plan.LabTests, item)
			}
			for _, item := range addition.Imaging {
				add(&plan.Imaging, item)
			}
			for _, item := range addition.DiagnosticProcedures {
				add(&plan.DiagnosticProcedures, item)
			}
			for _, item := range addition.Management {
				add(&plan.Management, item)
			}
		}
	}

	for _, flag := range summary.RedFlags {
		add(&plan.RedFlagWarnings, flag)
	}
	if len(summary.RedFlags) > 0 {
		add(&plan.PatientEducation, "Seek immediate care if symptoms worsen or new red-flag symptoms appear")
	}

	switch dispositionByTriage[triage] {
	case models.DispositionEmergency:
		add(&plan.FollowUp, "Immediate emergency department evaluation")
	case models.DispositionUrgentCare:
		add(&plan.FollowUp, "Urgent care evaluation within 24 hours")
	case models.DispositionPrimaryCare:
		add(&plan.FollowUp, "Primary care follow-up within one week")
	case models.DispositionSelfCare:
		add(&plan.FollowUp, "Self-care with primary care follow-up if symptoms persist")
	}
	return plan
}

// workupBucket classifies one recommended workup item into the plan
// bucket its keywords indicate, defaulting to management.
func (o *Orchestrator) workupBucket(plan *models.PlanOfAction, item string) *[]string {
	lowered := strings.ToLower(item)
	switch {
	case matchesAnyKeyword(lowered, o.heuristics.ProcedureKeywords):
		return &plan.DiagnosticProcedures
	case matchesAnyKeyword(lowered, o.heuristics.ImagingKeywords):
		return &plan.Imaging
	case matchesAnyKeyword(lowered, o.heuristics.LabKeywords):
		return &plan.LabTests
	default:
		return &plan.Management
	}
}

func matchesAnyKeyword(lowered string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// triageLevel derives the final level from case complexity, then
// escalates for heavy red-flag burden or urgent merged diagnoses. Lower
// numbers are more urgent; the floor is level 1.
func (o *Orchestrator) triageLevel(summary models.CaseSummary, merged []models.DifferentialEntry) int {
	var level int
	switch summary.Complexity {
	case models.ComplexityLow:
		level = 4
	case models.ComplexityModerate:
		level = 3
	default:
		level = 2
	}

	if len(summary.RedFlags) >= 3 {
		level--
	}
	for _, entry := range merged {
		if entry.Code == nil || !entry.Code.Validated {
			continue
		}
		switch entry.Urgency {
		case models.UrgencyEmergent:
			level = minLevel(level, 1)
		case models.UrgencyUrgent:
			level = minLevel(level, 2)
		}
	}

	if level < 1 {
		level = 1
	}
	if level > 5 {
		level = 5
	}
	return level
}

func minLevel(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// reviewReason decides whether a clinician must look at this result
// before anything downstream acts on it.
func (o *Orchestrator) reviewReason(
	consensusReached bool,
	analysis models.DisagreementAnalysis,
	merged []models.DifferentialEntry,
) string {
	if !consensusReached {
		return "panel did not reach consensus within the round budget"
	}
	if analysis.Level == models.DisagreementMajor {
		return "major disagreement persisted in the final round"
	}
	for _, entry := range merged {
		if entry.MustNotMiss && entry.Confidence < mustNotMissReviewFloor {
			return fmt.Sprintf("must-not-miss diagnosis %q unresolved at confidence %.2f", entry.Diagnosis, entry.Confidence)
		}
	}
	return ""
}

// dissentingOpinions records each discordant agent whose top pick
// differs from the merged primary diagnosis.
func (o *Orchestrator) dissentingOpinions(final roundState, merged []models.DifferentialEntry) []models.DissentingOpinion {
	if len(final.analysis.DiscordantAgents) == 0 || len(merged) == 0 {
		return nil
	}
	primary := merged[0].Key()

	discordant := make(map[string]bool, len(final.analysis.DiscordantAgents))
	for _, id := range final.analysis.DiscordantAgents {
		discordant[id] = true
	}

	var dissents []models.DissentingOpinion
	for _, op := range final.opinions {
		if !discordant[op.AgentID] {
			continue
		}
		top := op.TopDiagnosis()
		if top == nil || top.Key() == primary {
			continue
		}
		dissents = append(dissents, models.DissentingOpinion{
			AgentID:    op.AgentID,
			Role:       op.Role,
			Diagnosis:  top.Diagnosis,
			Reasoning:  top.Reasoning,
			Confidence: top.Confidence,
		})
	}
	return dissents
}
