package gemini

import (
	"context"
	"log/slog"

	"google.golang.org/genai"

	"github.com/amigolabs/amigo/pkg/core"
)

const (
	modelChatFast     = "gemini-flash-lite-latest"
	modelChatBalanced = "gemini-2.5-flash"
	modelChatDeep     = "gemini-2.5-pro"
	modelImageEdit    = "gemini-2.5-flash-image"
	modelSpeech       = "gemini-2.5-flash-preview-tts"
)

// Client wraps the Gemini API client shared by the chat, image-edit and
// speech collaborators.
type Client struct {
	genai  *genai.Client
	logger *slog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client authenticated against the Gemini API.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, core.NewInvalidRequestError("api key must not be empty")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewNetworkError("failed to create gemini client", err)
	}
	c := &Client{genai: gc, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Attachment is an inline binary payload (image in, image or audio out).
type Attachment struct {
	MIMEType string
	Data     []byte
}

// firstInlineData returns the first non-empty inline payload in the
// response, or nil when the service produced none (filtered or text-only).
func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return p.InlineData
			}
		}
	}
	return nil
}
