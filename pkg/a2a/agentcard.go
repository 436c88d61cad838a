package a2a

import (
	a2atype "github.com/a2aproject/a2a-go/a2a"
)

// CardConfig holds the deployment-specific parts of the agent card.
type CardConfig struct {
	BaseURL   string
	Version   string
	Streaming bool
}

// BuildAgentCard describes the bridged agent. The card is static for the
// lifetime of the process.
func BuildAgentCard(cfg CardConfig) a2atype.AgentCard {
	textModes := []string{"text"}
	return a2atype.AgentCard{
		Name:        "AI Foundry Search Agent",
		Description: "Answers questions using AI-powered document search over Azure AI Foundry",
		URL:         cfg.BaseURL,
		Version:     cfg.Version,
		Capabilities: a2atype.AgentCapabilities{
			Streaming: cfg.Streaming,
		},
		DefaultInputModes:  textModes,
		DefaultOutputModes: textModes,
		Skills: []a2atype.AgentSkill{
			{
				ID:          "document-search",
				Name:        "Document Search & QA",
				Description: "Search documents and answer questions using Azure AI Foundry agent with file search capabilities",
				Tags:        []string{"document-search", "question-answering", "azure-ai-foundry"},
				InputModes:  textModes,
				OutputModes: textModes,
			},
		},
	}
}
