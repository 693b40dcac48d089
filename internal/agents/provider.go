// Package agents defines the reasoning-agent collaborator boundary: the
// provider interface the orchestrator drives, the OpenAI-backed default
// implementation, the defensive parser that turns raw model output into
// structured opinions, and the prompt builders for case presentation,
// debate rounds, and discordance feedback.
package agents

import "context"

// Request is one consultation sent to a reasoning agent.
type Request struct {
	// SpecialistID identifies which specialist this call is on behalf of.
	SpecialistID string
	// Role is the specialist's human-readable role label.
	Role string
	// ModelTier is the specialist's configured model-tier hint.
	ModelTier string
	// SystemPrompt sets the specialist persona.
	SystemPrompt string
	// Prompt is the case or debate prompt.
	Prompt string
}

// Provider is the reasoning-agent collaborator. Implementations are
// black boxes: they take a prompt pair and return raw text expected (but
// not guaranteed) to contain a structured opinion.
type Provider interface {
	Name() string
	Consult(ctx context.Context, req Request) (string, error)
}
