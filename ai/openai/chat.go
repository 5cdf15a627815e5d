package openai

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
)

// ChatModel implements ai.ChatModel using OpenAI-compatible chat APIs.
type ChatModel struct {
	client      llms.Model
	temperature float64
	logger      *slog.Logger
}

func newChatModel(client llms.Model, temperature float64) *ChatModel {
	return &ChatModel{
		client:      client,
		temperature: temperature,
		logger:      slog.Default().With("component", "openai-chat"),
	}
}

// Generate sends prompt as a single human message.
func (c *ChatModel) Generate(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("generating answer", "prompt_length", len(prompt))

	answer, err := llms.GenerateFromSinglePrompt(ctx, c.client, prompt, llms.WithTemperature(c.temperature))
	if err != nil {
		c.logger.Debug("failed to generate answer", "err", err)
		return "", classify(err)
	}
	return answer, nil
}
