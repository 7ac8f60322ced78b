package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIText generates text via OpenAI chat completions. Search augmentation
// is done by switching to the search-preview model variant, which performs
// web search server-side.
type OpenAIText struct {
	client      *openai.Client
	model       string
	searchModel string
	classifier  Classifier
	logger      *slog.Logger
}

// NewOpenAIText creates a text client for the given models.
func NewOpenAIText(apiKey, model, searchModel string, logger *slog.Logger) *OpenAIText {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIText{
		client:      &client,
		model:       model,
		searchModel: searchModel,
		classifier:  OpenAIClassifier{},
		logger:      logger,
	}
}

func (c *OpenAIText) Generate(ctx context.Context, input string, webSearch bool) (string, error) {
	model := c.model
	if webSearch {
		model = c.searchModel
	}

	var out string
	err := Do(ctx, c.logger, c.classifier, "openai.chat", func(ctx context.Context) error {
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(input),
			},
		})
		if err != nil {
			return fmt.Errorf("openai API error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("no response from openai")
		}
		out = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// OpenAIImage generates images via the OpenAI Images API.
type OpenAIImage struct {
	client     *openai.Client
	model      string
	classifier Classifier
	logger     *slog.Logger
}

// NewOpenAIImage creates an image client for the given model.
func NewOpenAIImage(apiKey, model string, logger *slog.Logger) *OpenAIImage {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIImage{
		client:     &client,
		model:      model,
		classifier: OpenAIClassifier{},
		logger:     logger,
	}
}

// Generate returns the first image in the response as decoded bytes.
// Additional images are ignored.
func (c *OpenAIImage) Generate(ctx context.Context, prompt string) ([]byte, string, error) {
	var data []byte
	err := Do(ctx, c.logger, c.classifier, "openai.image", func(ctx context.Context) error {
		resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
			Model:  openai.ImageModel(c.model),
			Prompt: prompt,
		})
		if err != nil {
			return fmt.Errorf("openai image API error: %w", err)
		}
		for _, img := range resp.Data {
			if img.B64JSON == "" {
				continue
			}
			decoded, err := base64.StdEncoding.DecodeString(img.B64JSON)
			if err != nil {
				return fmt.Errorf("failed to decode image data: %w", err)
			}
			data = decoded
			return nil
		}
		return errors.New("no image data in response")
	})
	if err != nil {
		return nil, "", err
	}
	return data, "image/png", nil
}
