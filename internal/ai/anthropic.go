package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicText is the alternate text provider. Search augmentation uses the
// server-side web search tool.
type AnthropicText struct {
	client     *anthropic.Client
	model      string
	classifier Classifier
	logger     *slog.Logger
}

// NewAnthropicText creates a text client for the given model.
func NewAnthropicText(apiKey, model string, logger *slog.Logger) *AnthropicText {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicText{
		client:     &client,
		model:      model,
		classifier: AnthropicClassifier{},
		logger:     logger,
	}
}

func (c *AnthropicText) Generate(ctx context.Context, input string, webSearch bool) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(input)),
		},
	}
	if webSearch {
		params.Tools = []anthropic.ToolUnionParam{
			{
				OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{
					MaxUses: anthropic.Int(5),
				},
			},
		}
	}

	var out string
	err := Do(ctx, c.logger, c.classifier, "anthropic.messages", func(ctx context.Context) error {
		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return fmt.Errorf("anthropic API error: %w", err)
		}
		if len(resp.Content) == 0 {
			return errors.New("no response from anthropic")
		}

		// Web search responses interleave tool blocks with text blocks;
		// concatenate the text.
		var sb strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		out = sb.String()
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
