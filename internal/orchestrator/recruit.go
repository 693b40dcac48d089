package orchestrator

import (
	"github.com/sirupsen/logrus"

	"github.com/grandrounds/grandrounds/internal/consensus"
	"github.com/grandrounds/grandrounds/internal/models"
)

// RecruitSpecialists selects the roster subset relevant to the case and
// returns it with the symptom-relevance weight per specialist. Selection
// keeps every always-include profile plus any profile whose normalized
// relevance clears the configured floor; if nothing qualifies the whole
// roster participates rather than running an empty panel.
func (o *Orchestrator) RecruitSpecialists(summary models.CaseSummary) ([]models.SpecialistProfile, map[string]float64) {
	weights := consensus.AgentRelevanceWeights(summary.Symptoms, o.roster)

	recruited := make([]models.SpecialistProfile, 0, len(o.roster))
	for _, profile := range o.roster {
		if profile.AlwaysInclude || weights[profile.ID] >= o.config.MinRelevance {
			recruited = append(recruited, profile)
		}
	}
	if len(recruited) == 0 {
		recruited = append(recruited, o.roster...)
	}

	o.log.WithFields(logrus.Fields{
		"session":   summary.SessionID,
		"roster":    len(o.roster),
		"recruited": len(recruited),
	}).Info("specialists recruited")
	return recruited, weights
}
