package llm

import "github.com/sashabaranov/go-openai"

// NewClient builds an OpenAI-compatible client for the configured
// endpoint. Works against any server speaking the OpenAI API.
func NewClient(apiKey, baseURL string) *openai.Client {
	if apiKey == "" {
		apiKey = "sk-xxx"
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}
