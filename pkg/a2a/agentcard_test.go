package a2a

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAgentCard(t *testing.T) {
	card := BuildAgentCard(CardConfig{BaseURL: "https://bridge.example.com", Version: "1.0.0"})

	assert.Equal(t, "AI Foundry Search Agent", card.Name)
	assert.Equal(t, "https://bridge.example.com", card.URL)
	assert.Equal(t, "1.0.0", card.Version)
	assert.False(t, card.Capabilities.Streaming)
	assert.Equal(t, []string{"text"}, card.DefaultInputModes)
	assert.Equal(t, []string{"text"}, card.DefaultOutputModes)

	require.Len(t, card.Skills, 1)
	skill := card.Skills[0]
	assert.Equal(t, "document-search", skill.ID)
	assert.Equal(t, "Document Search & QA", skill.Name)
	assert.ElementsMatch(t, []string{"document-search", "question-answering", "azure-ai-foundry"}, skill.Tags)
}

func TestBuildAgentCard_Streaming(t *testing.T) {
	card := BuildAgentCard(CardConfig{BaseURL: "http://localhost:8080", Version: "1.0.0", Streaming: true})
	assert.True(t, card.Capabilities.Streaming)
}
