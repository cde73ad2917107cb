package gemini

import (
	"context"

	"google.golang.org/genai"

	"github.com/amigolabs/amigo/pkg/core"
)

// Tier selects the chat model and its tool surface.
type Tier string

const (
	// TierFast is the low-latency model with no tools.
	TierFast Tier = "fast"
	// TierBalanced grounds answers with Google Search and Google Maps.
	TierBalanced Tier = "balanced"
	// TierDeep is the extended-reasoning model.
	TierDeep Tier = "deep"
)

// Model returns the Gemini model backing the tier.
func (t Tier) Model() string {
	switch t {
	case TierBalanced:
		return modelChatBalanced
	case TierDeep:
		return modelChatDeep
	default:
		return modelChatFast
	}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFast, TierBalanced, TierDeep:
		return true
	}
	return false
}

// Location is an optional user position used to localize grounded answers.
type Location struct {
	Latitude  float64
	Longitude float64
}

// ChatConfig configures a chat session.
type ChatConfig struct {
	Tier              Tier
	SystemInstruction string
	Location          *Location
}

// Source is a grounding citation attached to a reply.
type Source struct {
	Title string
	URI   string
}

// Reply is one assistant turn.
type Reply struct {
	Text    string
	Sources []Source
}

// Chat is a stateful multi-turn conversation. History lives server-side in
// the underlying session; switching tiers discards it.
type Chat struct {
	cfg     ChatConfig
	session *genai.Chat
	open    func(ctx context.Context, model string, gc *genai.GenerateContentConfig) (*genai.Chat, error)
}

// NewChat opens a chat session on the configured tier.
func (c *Client) NewChat(ctx context.Context, cfg ChatConfig) (*Chat, error) {
	if cfg.Tier == "" {
		cfg.Tier = TierFast
	}
	if !cfg.Tier.Valid() {
		return nil, core.NewInvalidRequestError("unknown chat tier: " + string(cfg.Tier))
	}
	ch := &Chat{cfg: cfg}
	ch.open = func(ctx context.Context, model string, gc *genai.GenerateContentConfig) (*genai.Chat, error) {
		return c.genai.Chats.Create(ctx, model, gc, nil)
	}
	if err := ch.reopen(ctx); err != nil {
		return nil, err
	}
	return ch, nil
}

// Tier returns the session's current tier.
func (ch *Chat) Tier() Tier { return ch.cfg.Tier }

// SetTier moves the session to another tier. The conversation history does
// not carry over: each tier starts fresh.
func (ch *Chat) SetTier(ctx context.Context, tier Tier) error {
	if !tier.Valid() {
		return core.NewInvalidRequestError("unknown chat tier: " + string(tier))
	}
	if tier == ch.cfg.Tier {
		return nil
	}
	prev := ch.cfg.Tier
	ch.cfg.Tier = tier
	if err := ch.reopen(ctx); err != nil {
		ch.cfg.Tier = prev
		return err
	}
	return nil
}

// Send submits one user turn, optionally with inline attachments, and
// returns the assistant's reply with any grounding sources. On failure no
// partial turn is committed to the session history.
func (ch *Chat) Send(ctx context.Context, text string, attachments ...Attachment) (*Reply, error) {
	parts := make([]genai.Part, 0, len(attachments)+1)
	for _, a := range attachments {
		parts = append(parts, genai.Part{
			InlineData: &genai.Blob{MIMEType: a.MIMEType, Data: a.Data},
		})
	}
	parts = append(parts, genai.Part{Text: text})

	resp, err := ch.session.SendMessage(ctx, parts...)
	if err != nil {
		return nil, core.NewNetworkError("chat request failed", err)
	}
	return &Reply{Text: resp.Text(), Sources: extractSources(resp)}, nil
}

func (ch *Chat) reopen(ctx context.Context) error {
	session, err := ch.open(ctx, ch.cfg.Tier.Model(), ch.generateConfig())
	if err != nil {
		return core.NewNetworkError("failed to open chat session", err)
	}
	ch.session = session
	return nil
}

func (ch *Chat) generateConfig() *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{}
	if ch.cfg.SystemInstruction != "" {
		gc.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: ch.cfg.SystemInstruction}},
		}
	}
	switch ch.cfg.Tier {
	case TierBalanced:
		gc.Tools = []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
			{GoogleMaps: &genai.GoogleMaps{}},
		}
		if loc := ch.cfg.Location; loc != nil {
			gc.ToolConfig = &genai.ToolConfig{
				RetrievalConfig: &genai.RetrievalConfig{
					LatLng: &genai.LatLng{Latitude: genai.Ptr(loc.Latitude), Longitude: genai.Ptr(loc.Longitude)},
				},
			}
		}
	case TierDeep:
		gc.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr[int32](32768),
		}
	}
	return gc
}

// extractSources collects web and maps grounding citations, deduplicated by
// URI in first-seen order.
func extractSources(resp *genai.GenerateContentResponse) []Source {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var sources []Source
	seen := make(map[string]struct{})
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		var title, uri string
		switch {
		case chunk.Web != nil:
			title, uri = chunk.Web.Title, chunk.Web.URI
		case chunk.Maps != nil:
			title, uri = chunk.Maps.Title, chunk.Maps.URI
		default:
			continue
		}
		if uri == "" {
			continue
		}
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		sources = append(sources, Source{Title: title, URI: uri})
	}
	return sources
}
