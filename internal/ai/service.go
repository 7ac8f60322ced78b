package ai

import "context"

// TextService generates text from a prompt. webSearch selects the
// search-augmented variant used by discovery and research.
type TextService interface {
	Generate(ctx context.Context, input string, webSearch bool) (string, error)
}

// ImageService generates a single image for a prompt. The returned content
// type matches the encoded bytes.
type ImageService interface {
	Generate(ctx context.Context, prompt string) (data []byte, contentType string, err error)
}
