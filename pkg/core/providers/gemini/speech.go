package gemini

import (
	"context"

	"google.golang.org/genai"

	"github.com/amigolabs/amigo/pkg/core"
)

// SynthesizeSpeech renders text as 24 kHz s16le PCM using a prebuilt voice.
// A nil result with a nil error means the service filtered the request.
func (c *Client) SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error) {
	if text == "" {
		return nil, core.NewInvalidRequestError("text must not be empty")
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	resp, err := c.genai.Models.GenerateContent(ctx, modelSpeech, genai.Text(text), config)
	if err != nil {
		return nil, core.NewNetworkError("speech synthesis request failed", err)
	}

	if blob := firstInlineData(resp); blob != nil {
		return blob.Data, nil
	}
	return nil, nil
}
