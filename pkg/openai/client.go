package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/korjavin/gamenight/pkg/logger"
	"github.com/sashabaranov/go-openai"
)

// Client represents an OpenAI API client
type Client struct {
	client *openai.Client
	model  string
	logger *logger.Logger
}

// New creates a new OpenAI client
func New(apiKey, apiBase, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	if apiBase != "" {
		config.BaseURL = apiBase
	}

	client := openai.NewClientWithConfig(config)
	return &Client{
		client: client,
		model:  model,
		logger: logger.New("openai"),
	}
}

// GenerateChatMessage generates a chat message for a specific intent
func (c *Client) GenerateChatMessage(intent string, contextData map[string]interface{}) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Convert context to JSON string
	contextJSON, err := json.Marshal(contextData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal context: %w", err)
	}

	prompt := fmt.Sprintf(`
You are a friendly scheduling assistant bot for a Telegram group. Generate a short, engaging message for the following intent: "%s".
Use the context provided below to personalize the message. Keep it concise and mobile-friendly.
Add appropriate emojis for fun and readability.

Context:
%s

Return only the message text, no explanations or other text.
`, intent, string(contextJSON))

	c.logger.Debug("OpenAI prompt (first 100 chars): %s", truncateString(prompt, 100))
	c.logger.Info("Generating chat message for intent: %s", intent)

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.7,
		},
	)

	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI API")
	}

	return resp.Choices[0].Message.Content, nil
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
