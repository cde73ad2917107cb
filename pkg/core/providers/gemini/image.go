package gemini

import (
	"context"

	"google.golang.org/genai"

	"github.com/amigolabs/amigo/pkg/core"
)

// EditImage applies a natural-language edit to an image and returns the
// edited image. A nil result with a nil error means the service filtered the
// request; callers distinguish that from a transport failure.
func (c *Client) EditImage(ctx context.Context, image Attachment, instruction string) (*Attachment, error) {
	if len(image.Data) == 0 {
		return nil, core.NewInvalidRequestError("image data must not be empty")
	}
	if instruction == "" {
		return nil, core.NewInvalidRequestError("edit instruction must not be empty")
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: image.MIMEType, Data: image.Data}},
			{Text: instruction},
		},
	}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	resp, err := c.genai.Models.GenerateContent(ctx, modelImageEdit, contents, config)
	if err != nil {
		return nil, core.NewNetworkError("image edit request failed", err)
	}

	if blob := firstInlineData(resp); blob != nil {
		return &Attachment{MIMEType: blob.MIMEType, Data: blob.Data}, nil
	}

	c.logger.Debug("image edit returned no image", "instruction_len", len(instruction))
	return nil, nil
}
