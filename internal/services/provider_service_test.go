package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpulse/internal/config"
)

func TestProviderStatus(t *testing.T) {
	defaults := config.Default().Providers

	tests := []struct {
		name string
		cfg  func(c *config.ProvidersConfig)
		want string
	}{
		{
			name: "no keys",
			cfg:  func(*config.ProvidersConfig) {},
			want: `{
				"openai": {"available": false, "model": null},
				"anthropic": {"available": false, "model": null},
				"preferred": null
			}`,
		},
		{
			name: "openai only",
			cfg:  func(c *config.ProvidersConfig) { c.OpenAIAPIKey = "sk-test" },
			want: `{
				"openai": {"available": true, "model": "gpt-4o-2024-08-06"},
				"anthropic": {"available": false, "model": null},
				"preferred": "openai"
			}`,
		},
		{
			name: "both keys prefer anthropic",
			cfg: func(c *config.ProvidersConfig) {
				c.OpenAIAPIKey = "sk-test"
				c.AnthropicAPIKey = "ak-test"
				c.AnthropicModel = "claude-custom"
			},
			want: `{
				"openai": {"available": true, "model": "gpt-4o-2024-08-06"},
				"anthropic": {"available": true, "model": "claude-custom"},
				"preferred": "anthropic"
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults
			tt.cfg(&cfg)

			got, err := json.Marshal(NewProviderService(cfg).Status())
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
