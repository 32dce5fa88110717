package services

import (
	"budgetpulse/internal/config"
)

// Provider names reported by /api-status
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderStatus tells whether a model provider is configured
type ProviderStatus struct {
	Available bool    `json:"available"`
	Model     *string `json:"model"`
}

// APIStatus is the /api-status response
type APIStatus struct {
	OpenAI    ProviderStatus `json:"openai"`
	Anthropic ProviderStatus `json:"anthropic"`
	Preferred *string        `json:"preferred"`
}

// ProviderService reports which model providers have credentials
type ProviderService struct {
	cfg config.ProvidersConfig
}

// NewProviderService creates the service
func NewProviderService(cfg config.ProvidersConfig) *ProviderService {
	return &ProviderService{cfg: cfg}
}

// Status reports provider availability. Anthropic is preferred when both
// keys are present.
func (s *ProviderService) Status() APIStatus {
	status := APIStatus{
		OpenAI:    providerStatus(s.cfg.OpenAIAPIKey, s.cfg.OpenAIModel),
		Anthropic: providerStatus(s.cfg.AnthropicAPIKey, s.cfg.AnthropicModel),
	}

	switch {
	case status.Anthropic.Available:
		status.Preferred = strPtr(ProviderAnthropic)
	case status.OpenAI.Available:
		status.Preferred = strPtr(ProviderOpenAI)
	}
	return status
}

func providerStatus(key, model string) ProviderStatus {
	if key == "" {
		return ProviderStatus{}
	}
	return ProviderStatus{Available: true, Model: strPtr(model)}
}

func strPtr(s string) *string {
	return &s
}
