package googleai

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
)

// ChatModel implements ai.ChatModel using a Gemini generative model.
type ChatModel struct {
	model  llms.Model
	guard  *guard
	logger *slog.Logger
}

func newChatModel(model llms.Model, g *guard) *ChatModel {
	return &ChatModel{
		model:  model,
		guard:  g,
		logger: slog.Default().With("component", "googleai-chat"),
	}
}

// Generate sends prompt as a single human message.
func (c *ChatModel) Generate(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("generating answer", "prompt_length", len(prompt))

	var answer string
	err := c.guard.do(ctx, func() error {
		var err error
		answer, err = llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
		return err
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}
