package agents

import (
	"context"
	"errors"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig maps model tiers onto concrete model names.
type OpenAIConfig struct {
	APIKey       string            `json:"-" yaml:"-"`
	DefaultModel string            `json:"default_model" yaml:"default_model"`
	ModelByTier  map[string]string `json:"model_by_tier" yaml:"model_by_tier"`
	Temperature  float32           `json:"temperature" yaml:"temperature"`
}

// DefaultOpenAIConfig reads the API key from the environment and uses a
// small model for the standard tier.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		APIKey:       os.Getenv("OPENAI_API_KEY"),
		DefaultModel: "gpt-4o-mini",
		ModelByTier: map[string]string{
			"standard": "gpt-4o-mini",
			"advanced": "gpt-4o",
		},
		Temperature: 0.3,
	}
}

// OpenAIProvider implements Provider over the OpenAI chat completion API.
type OpenAIProvider struct {
	client *openai.Client
	config OpenAIConfig
}

// NewOpenAIProvider constructs the default reasoning-agent backend.
func NewOpenAIProvider(config OpenAIConfig) *OpenAIProvider {
	def := DefaultOpenAIConfig()
	if config.DefaultModel == "" {
		config.DefaultModel = def.DefaultModel
	}
	if config.ModelByTier == nil {
		config.ModelByTier = def.ModelByTier
	}
	if config.Temperature <= 0 {
		config.Temperature = def.Temperature
	}
	return &OpenAIProvider{
		client: openai.NewClient(config.APIKey),
		config: config,
	}
}

// Name identifies the backend in logs.
func (p *OpenAIProvider) Name() string { return "openai" }

// Consult sends the prompt pair and returns the raw completion text.
func (p *OpenAIProvider) Consult(ctx context.Context, req Request) (string, error) {
	if p.client == nil {
		return "", errors.New("openai client not initialized")
	}

	model := p.config.ModelByTier[req.ModelTier]
	if model == "" {
		model = p.config.DefaultModel
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: p.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
