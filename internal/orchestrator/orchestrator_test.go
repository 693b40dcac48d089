package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grandrounds/grandrounds/internal/agents"
	"github.com/grandrounds/grandrounds/internal/consensus"
	"github.com/grandrounds/grandrounds/internal/database"
	"github.com/grandrounds/grandrounds/internal/models"
)

// scriptedProvider replays canned responses per specialist. Each call
// consumes the next step for that specialist; the last step repeats once
// the script runs out. A step with a non-nil err simulates a failed
// model call.
type scriptedProvider struct {
	mu     sync.Mutex
	script map[string][]scriptStep
	calls  map[string]int
}

type scriptStep struct {
	response string
	err      error
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		script: make(map[string][]scriptStep),
		calls:  make(map[string]int),
	}
}

func (p *scriptedProvider) respond(agentID string, responses ...string) {
	for _, r := range responses {
		p.script[agentID] = append(p.script[agentID], scriptStep{response: r})
	}
}

func (p *scriptedProvider) fail(agentID string, err error) {
	p.script[agentID] = append(p.script[agentID], scriptStep{err: err})
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Consult(_ context.Context, req agents.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	steps := p.script[req.SpecialistID]
	if len(steps) == 0 {
		return "", fmt.Errorf("no script for specialist %s", req.SpecialistID)
	}

	idx := p.calls[req.SpecialistID]
	p.calls[req.SpecialistID]++
	if idx >= len(steps) {
		idx = len(steps) - 1
	}

	step := steps[idx]
	return step.response, step.err
}

func (p *scriptedProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

// memoryStore records persisted artifacts for assertions.
type memoryStore struct {
	mu       sync.Mutex
	opinions []models.AgentOpinion
	results  []models.ConsensusResult
}

func (s *memoryStore) SaveOpinion(_ context.Context, _ string, opinion models.AgentOpinion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opinions = append(s.opinions, opinion)
	return nil
}

func (s *memoryStore) SaveConsensus(_ context.Context, result models.ConsensusResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

// structuredResponse renders the JSON a well-behaved specialist returns.
func structuredResponse(overall float64, workup []string, diagnoses ...[2]string) string {
	var entries []string
	for i, d := range diagnoses {
		confidence := overall - float64(i)*0.2
		if confidence < 0.1 {
			confidence = 0.1
		}
		entries = append(entries, fmt.Sprintf(
			`{"rank": %d, "diagnosis": %q, "confidence": %.2f, "reasoning": %q}`,
			i+1, d[0], confidence, d[1]))
	}

	var quoted []string
	for _, w := range workup {
		quoted = append(quoted, fmt.Sprintf("%q", w))
	}

	return fmt.Sprintf(`{
		"differentialDiagnosis": [%s],
		"overallConfidence": %.2f,
		"recommendedWorkup": [%s]
	}`, strings.Join(entries, ","), overall, strings.Join(quoted, ","))
}

func testRoster() []models.SpecialistProfile {
	return []models.SpecialistProfile{
		{
			ID:   "internal_medicine",
			Role: "Internist",
			SymptomWeights: map[string]float64{
				"cough": 0.8, "fever": 0.8, "fatigue": 0.7,
			},
			AlwaysInclude: true,
		},
		{
			ID:   "pulmonology",
			Role: "Pulmonologist",
			SymptomWeights: map[string]float64{
				"cough": 1.0, "shortness of breath": 1.0, "wheezing": 0.9,
			},
		},
		{
			ID:   "emergency",
			Role: "Emergency Physician",
			SymptomWeights: map[string]float64{
				"chest pain": 1.0, "cough": 0.4, "fever": 0.5,
			},
		},
	}
}

func respiratorySession() models.PatientSession {
	return models.PatientSession{
		SessionID:          "session-resp-1",
		PatientAge:         54,
		PatientSex:         "female",
		ChiefComplaint:     "cough",
		HistoryOfIllness:   "Productive cough for five days with fevers at home.",
		Onset:              "5 days ago",
		Severity:           3,
		AssociatedSymptoms: []string{"fever"},
	}
}

func newTestOrchestrator(provider agents.Provider, store *memoryStore, config Config) *Orchestrator {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	engine := consensus.NewEngine(consensus.DefaultEngineConfig())

	// Keep a nil *memoryStore a nil interface, not a typed nil.
	var s database.Store
	if store != nil {
		s = store
	}
	return New(config, Heuristics{}, testRoster(), provider, engine, nil, s, log)
}
