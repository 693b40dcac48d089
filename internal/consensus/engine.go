// Package consensus implements the pure agreement mathematics for the
// diagnostic debate: Kendall's W over rank matrices, confidence-weighted
// vote merging, symptom-relevance weighting, and discordance detection.
// Everything here is deterministic, synchronous, and free of I/O so it
// can be tested in isolation from the orchestrator.
package consensus

// EngineConfig tunes the statistical thresholds of the engine.
type EngineConfig struct {
	// DiscordanceThreshold is the number of standard deviations from the
	// mean preference distance past which an agent counts as discordant.
	DiscordanceThreshold float64 `json:"discordance_threshold" yaml:"discordance_threshold"`
	// ConfidenceVarianceScale maps the variance of declared confidences
	// onto [0,1] for the disagreement blend.
	ConfidenceVarianceScale float64 `json:"confidence_variance_scale" yaml:"confidence_variance_scale"`
	// ContentionVariance is the rank variance above which a diagnosis
	// counts as a contention point.
	ContentionVariance float64 `json:"contention_variance" yaml:"contention_variance"`
}

// DefaultEngineConfig returns the standard thresholds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DiscordanceThreshold:    1.5,
		ConfidenceVarianceScale: 4.0,
		ContentionVariance:      2.0,
	}
}

// Engine evaluates agreement across specialist opinions.
type Engine struct {
	config EngineConfig
}

// NewEngine creates an engine with the given thresholds. Zero-valued
// thresholds fall back to the defaults.
func NewEngine(config EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if config.DiscordanceThreshold <= 0 {
		config.DiscordanceThreshold = def.DiscordanceThreshold
	}
	if config.ConfidenceVarianceScale <= 0 {
		config.ConfidenceVarianceScale = def.ConfidenceVarianceScale
	}
	if config.ContentionVariance <= 0 {
		config.ContentionVariance = def.ContentionVariance
	}
	return &Engine{config: config}
}

// ShouldContinueDebate is the single termination predicate for the debate
// loop: another round runs only while consensus has not been reached and
// the round budget is not exhausted.
func ShouldContinueDebate(kendallW float64, round, maxRounds int, threshold float64) bool {
	return kendallW < threshold && round < maxRounds
}
