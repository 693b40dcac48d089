package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grandrounds/grandrounds/internal/consensus"
	"github.com/grandrounds/grandrounds/internal/models"
)

// RunDebate executes one full debate run for the session. It never
// returns an error to the caller: a run that cannot proceed yields a
// well-formed fallback result flagged for human review.
func (o *Orchestrator) RunDebate(ctx context.Context, session models.PatientSession) models.ConsensusResult {
	summary, err := o.BuildCaseSummary(session)
	if err != nil {
		o.log.WithError(err).WithField("session", session.SessionID).
			Error("case summary could not be built")
		return o.fallbackResult(session.SessionID, "assessment could not be completed: "+err.Error())
	}

	specialists, weights := o.RecruitSpecialists(summary)
	if len(specialists) == 0 {
		return o.fallbackResult(session.SessionID, "no specialists available for this case")
	}

	states := o.debateLoop(ctx, summary, specialists)
	if len(states) == 0 {
		return o.fallbackResult(session.SessionID, "no specialist opinions could be collected")
	}

	final := states[len(states)-1]
	consensusReached := final.kendallW >= o.config.ConsensusThreshold

	result := o.finalDecision(ctx, summary, final, weights, consensusReached)
	result.RoundsRequired = final.round

	o.persistResult(ctx, result)
	return result
}

// debateLoop folds over round snapshots: each round produces an
// immutable state the next round reads; no state is mutated across
// iterations. A round with zero surviving opinions is retried once
// before the loop gives up on what it has.
func (o *Orchestrator) debateLoop(
	ctx context.Context,
	summary models.CaseSummary,
	specialists []models.SpecialistProfile,
) []roundState {
	var states []roundState
	var previous *roundState
	retried := false

	for round := 1; round <= o.config.MaxRounds; round++ {
		opinions, err := o.runRound(ctx, summary, specialists, round, previous)
		if err != nil {
			if errors.Is(err, ErrRoundFailed) && !retried {
				retried = true
				o.log.WithField("round", round).Warn("round failed, retrying once")
				round--
				continue
			}
			o.log.WithError(err).WithField("round", round).
				Error("debate round unrecoverable")
			break
		}

		o.persistOpinions(ctx, summary.SessionID, opinions)

		state := roundState{
			round:    round,
			opinions: opinions,
			kendallW: consensus.KendallW(opinions),
			analysis: o.engine.AnalyzeDisagreement(opinions),
		}
		states = append(states, state)
		previous = &states[len(states)-1]

		o.log.WithFields(logrus.Fields{
			"session":      summary.SessionID,
			"round":        round,
			"opinions":     len(opinions),
			"kendall_w":    state.kendallW,
			"disagreement": state.analysis.Level,
		}).Info("debate round complete")

		if !consensus.ShouldContinueDebate(state.kendallW, round, o.config.MaxRounds, o.config.ConsensusThreshold) {
			break
		}
	}
	return states
}

// persistOpinions writes the round's opinions as best-effort telemetry.
func (o *Orchestrator) persistOpinions(ctx context.Context, sessionID string, opinions []models.AgentOpinion) {
	if o.store == nil {
		return
	}
	for _, op := range opinions {
		if err := o.store.SaveOpinion(ctx, sessionID, op); err != nil {
			o.log.WithError(err).WithFields(logrus.Fields{
				"session": sessionID,
				"agent":   op.AgentID,
				"round":   op.Round,
			}).Warn("failed to persist opinion")
		}
	}
}

func (o *Orchestrator) persistResult(ctx context.Context, result models.ConsensusResult) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveConsensus(ctx, result); err != nil {
		o.log.WithError(err).WithField("session", result.SessionID).
			Warn("failed to persist consensus result")
	}
}

// fallbackResult is the terminal shape returned when the run itself
// fails: reviewable, zero agreement, and a single placeholder entry
// steering the patient to in-person evaluation.
func (o *Orchestrator) fallbackResult(sessionID, reason string) models.ConsensusResult {
	return models.ConsensusResult{
		SessionID:        sessionID,
		KendallW:         0,
		ConsensusReached: false,
		RoundsRequired:   0,
		Differential: []models.DifferentialEntry{
			{
				Rank:       1,
				Diagnosis:  "Assessment incomplete",
				Confidence: 0,
				Reasoning:  reason,
				Code:       &models.ICDCode{Name: "Assessment incomplete", Validated: false},
			},
		},
		Plan: models.PlanOfAction{
			Management: []string{"Recommend in-person clinical evaluation"},
		},
		TriageLevel:         3,
		HumanReviewRequired: true,
		HumanReviewReason:   reason,
		Disposition:         models.DispositionUrgentCare,
		CreatedAt:           time.Now(),
	}
}
