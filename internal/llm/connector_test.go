package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultModel(t *testing.T) {
	tests := []struct {
		provider Provider
		model    string
	}{
		{ProviderAnthropic, "claude-3-5-sonnet-latest"},
		{ProviderOpenAI, "gpt-4o-mini"},
		{ProviderGoogleAI, "gemini-2.5-flash"},
		{ProviderCohere, "command-r"},
		{ProviderOllama, "llama3"},
		{Provider("unknown"), "claude-3-5-sonnet-latest"},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			assert.Equal(t, tt.model, DefaultModel(tt.provider))
		})
	}
}

func TestNewConnectorUnsupportedProvider(t *testing.T) {
	_, err := NewConnector(context.Background(), ConnectorOptions{Provider: "watson"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}

func TestNewConnectorFillsDefaultModel(t *testing.T) {
	connector, err := NewConnector(context.Background(), ConnectorOptions{
		Provider: ProviderOllama,
	})

	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, connector.GetProvider())
	assert.Equal(t, "llama3", connector.GetModel())
}

func TestNewConnectorKeepsConfiguredModel(t *testing.T) {
	connector, err := NewConnector(context.Background(), ConnectorOptions{
		Provider: ProviderAnthropic,
		APIKey:   "test-key",
		ModelConfig: ModelConfig{
			Model: "claude-3-opus-latest",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "claude-3-opus-latest", connector.GetModel())
}

func TestNewConnectorOpenAI(t *testing.T) {
	connector, err := NewConnector(context.Background(), ConnectorOptions{
		Provider: ProviderOpenAI,
		APIKey:   "test-key",
	})

	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, connector.GetProvider())
	assert.Equal(t, "gpt-4o-mini", connector.GetModel())
}
