// Package orchestrator drives the end-to-end diagnostic debate: it
// formats the case, recruits relevant specialists, collects their
// independent opinions concurrently, iterates debate rounds until the
// panel agrees or the round budget runs out, and assembles the final
// code-validated decision with a care plan and triage outcome. It is the
// only component in the engine with side effects.
package orchestrator

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grandrounds/grandrounds/internal/agents"
	"github.com/grandrounds/grandrounds/internal/consensus"
	"github.com/grandrounds/grandrounds/internal/database"
	"github.com/grandrounds/grandrounds/internal/grounding"
	"github.com/grandrounds/grandrounds/internal/models"
)

// Config tunes the debate loop.
type Config struct {
	// ConsensusThreshold is the Kendall's W at or above which the panel
	// counts as agreed.
	ConsensusThreshold float64 `json:"consensus_threshold" yaml:"consensus_threshold"`
	// MaxRounds bounds the number of debate rounds per run.
	MaxRounds int `json:"max_rounds" yaml:"max_rounds"`
	// SpecialistTimeout bounds a single reasoning-agent call.
	SpecialistTimeout time.Duration `json:"specialist_timeout" yaml:"specialist_timeout"`
	// MinRelevance is the relevance weight below which a specialist is
	// not recruited unless flagged always-include.
	MinRelevance float64 `json:"min_relevance" yaml:"min_relevance"`
}

// DefaultConfig returns the production debate settings.
func DefaultConfig() Config {
	return Config{
		ConsensusThreshold: 0.7,
		MaxRounds:          3,
		SpecialistTimeout:  90 * time.Second,
		MinRelevance:       0.05,
	}
}

// Orchestrator runs diagnostic debates over a fixed specialist roster.
type Orchestrator struct {
	config     Config
	heuristics Heuristics
	roster     []models.SpecialistProfile
	provider   agents.Provider
	engine     *consensus.Engine
	grounding  *grounding.Service
	store      database.Store
	log        *logrus.Logger
}

// New wires the orchestrator. The store may be nil (persistence is
// best-effort telemetry); provider, engine, and grounding are required.
func New(
	config Config,
	heuristics Heuristics,
	roster []models.SpecialistProfile,
	provider agents.Provider,
	engine *consensus.Engine,
	groundingSvc *grounding.Service,
	store database.Store,
	log *logrus.Logger,
) *Orchestrator {
	def := DefaultConfig()
	if config.ConsensusThreshold <= 0 {
		config.ConsensusThreshold = def.ConsensusThreshold
	}
	if config.MaxRounds <= 0 {
		config.MaxRounds = def.MaxRounds
	}
	if config.SpecialistTimeout <= 0 {
		config.SpecialistTimeout = def.SpecialistTimeout
	}
	if config.MinRelevance <= 0 {
		config.MinRelevance = def.MinRelevance
	}
	if log == nil {
		log = logrus.New()
	}

	return &Orchestrator{
		config:     config,
		heuristics: heuristics.withDefaults(),
		roster:     roster,
		provider:   provider,
		engine:     engine,
		grounding:  groundingSvc,
		store:      store,
		log:        log,
	}
}
