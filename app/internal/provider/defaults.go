package provider

import (
	"strings"

	"github.com/marketconnect/llm-council/app/domain/entities"
)

const huggingFaceInferenceURL = "https://api-inference.huggingface.co/models/"

var knownProviders = map[string]entities.Provider{
	"openai": {
		Kind:    entities.KindOpenAI,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4-turbo",
	},
	"anthropic": {
		Kind:    entities.KindOpenAI,
		BaseURL: "https://api.anthropic.com/v1/",
		Model:   "claude-3-opus-20240229",
	},
	"gemini": {
		Kind:    entities.KindOpenAI,
		BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/",
		Model:   "gemini-1.5-pro",
	},
	"perplexity": {
		Kind:    entities.KindOpenAI,
		BaseURL: "https://api.perplexity.ai",
		Model:   "llama-3.1-sonar-large-128k-online",
	},
	"huggingface": {
		Kind:    entities.KindHuggingFace,
		BaseURL: huggingFaceInferenceURL + "mistralai/Mistral-7B-Instruct-v0.2",
		Model:   "mistralai/Mistral-7B-Instruct-v0.2",
	},
}

// NewDefaultProvider returns an enabled provider with stock settings for
// name. Unknown names are treated as OpenAI-compatible.
func NewDefaultProvider(name string) entities.Provider {
	p, ok := knownProviders[strings.ToLower(name)]
	if !ok {
		p = entities.Provider{Kind: entities.KindOpenAI, Model: name}
	}
	p.Name = name
	p.MaxTokens = 1000
	p.Temperature = 0.7
	p.Weight = 1.0
	p.Enabled = true
	return p
}

// DefaultProviders lists every known provider. None is callable until it
// receives an API key.
func DefaultProviders() []entities.Provider {
	names := []string{"openai", "anthropic", "gemini", "perplexity", "huggingface"}
	out := make([]entities.Provider, 0, len(names))
	for i, name := range names {
		p := NewDefaultProvider(name)
		p.Priority = i
		out = append(out, p)
	}
	return out
}
