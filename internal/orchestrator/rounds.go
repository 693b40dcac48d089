package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grandrounds/grandrounds/internal/agents"
	"github.com/grandrounds/grandrounds/internal/models"
)

// ErrRoundFailed means no specialist produced a usable opinion this round.
var ErrRoundFailed = errors.New("all specialist calls failed this round")

// roundState is the immutable snapshot one debate round produces. The
// debate loop is a fold over these; round N+1 only reads round N's state.
type roundState struct {
	round    int
	opinions []models.AgentOpinion
	kendallW float64
	analysis models.DisagreementAnalysis
}

// runRound fans one consultation out per specialist, waits for all of
// them, and keeps whatever survives. A specialist that errors, times
// out, or returns an empty differential is dropped from the round with a
// warning; a single slow agent cannot block or fail the others beyond
// the per-call timeout.
func (o *Orchestrator) runRound(
	ctx context.Context,
	summary models.CaseSummary,
	specialists []models.SpecialistProfile,
	round int,
	previous *roundState,
) ([]models.AgentOpinion, error) {
	type outcome struct {
		opinion models.AgentOpinion
		err     error
		agentID string
	}

	results := make(chan outcome, len(specialists))
	var wg sync.WaitGroup

	feedbackFor := o.feedbackByAgent(previous)

	for _, specialist := range specialists {
		wg.Add(1)
		go func(profile models.SpecialistProfile) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, o.config.SpecialistTimeout)
			defer cancel()

			prompt := agents.BuildCasePrompt(summary)
			if previous != nil {
				prompt = agents.BuildDebatePrompt(summary, previous.opinions, round, feedbackFor[profile.ID])
			}

			start := time.Now()
			raw, err := o.provider.Consult(callCtx, agents.Request{
				SpecialistID: profile.ID,
				Role:         profile.Role,
				ModelTier:    profile.ModelTier,
				SystemPrompt: agents.BuildSystemPrompt(profile),
				Prompt:       prompt,
			})
			if err != nil {
				results <- outcome{err: err, agentID: profile.ID}
				return
			}

			opinion := agents.ParseOpinion(raw, profile, round)
			opinion.ProcessingTime = time.Since(start)
			results <- outcome{opinion: opinion, agentID: profile.ID}
		}(specialist)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	opinions := make([]models.AgentOpinion, 0, len(specialists))
	for res := range results {
		if res.err != nil {
			o.log.WithError(res.err).WithFields(logrus.Fields{
				"session": summary.SessionID,
				"agent":   res.agentID,
				"round":   round,
			}).Warn("specialist dropped from round")
			continue
		}
		if len(res.opinion.Differential) == 0 {
			o.log.WithFields(logrus.Fields{
				"session": summary.SessionID,
				"agent":   res.agentID,
				"round":   round,
			}).Warn("specialist returned no diagnoses, dropped from round")
			continue
		}
		opinions = append(opinions, res.opinion)
	}

	if len(opinions) == 0 {
		return nil, ErrRoundFailed
	}

	// Stable order regardless of goroutine completion order.
	sortOpinionsByAgent(opinions)
	return opinions, nil
}

// feedbackByAgent generates the targeted reconsider message for each
// agent the previous round found discordant.
func (o *Orchestrator) feedbackByAgent(previous *roundState) map[string]string {
	if previous == nil || len(previous.analysis.DiscordantAgents) == 0 {
		return nil
	}

	consensusTop := ""
	if merged := o.mergedTop(previous.opinions); merged != nil {
		consensusTop = merged.Diagnosis
	}

	feedback := make(map[string]string, len(previous.analysis.DiscordantAgents))
	for _, agentID := range previous.analysis.DiscordantAgents {
		for _, op := range previous.opinions {
			if op.AgentID != agentID {
				continue
			}
			if top := op.TopDiagnosis(); top != nil && consensusTop != "" {
				feedback[agentID] = agents.BuildDiscordanceFeedback(top.Diagnosis, consensusTop)
			}
		}
	}
	return feedback
}

func sortOpinionsByAgent(opinions []models.AgentOpinion) {
	sort.Slice(opinions, func(i, j int) bool {
		return opinions[i].AgentID < opinions[j].AgentID
	})
}
