// Package gemini implements the Gemini collaborators: the Live
// bidirectional websocket transport plus the chat, image-edit and speech
// synthesis clients.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amigolabs/amigo/pkg/core"
	"github.com/amigolabs/amigo/pkg/core/audio"
	"github.com/amigolabs/amigo/pkg/core/live"
)

const (
	defaultLiveEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	liveConnectTimeout = 15 * time.Second

	captureMIMEType = "audio/pcm;rate=16000"
)

// LiveTransport dials the Gemini Live BidiGenerateContent websocket API.
type LiveTransport struct {
	apiKey   string
	endpoint string
	dialer   *websocket.Dialer
	logger   *slog.Logger
}

// LiveOption customizes a LiveTransport.
type LiveOption func(*LiveTransport)

// WithLiveEndpoint overrides the websocket endpoint.
func WithLiveEndpoint(endpoint string) LiveOption {
	return func(t *LiveTransport) { t.endpoint = endpoint }
}

// WithLiveLogger sets the transport logger.
func WithLiveLogger(logger *slog.Logger) LiveOption {
	return func(t *LiveTransport) { t.logger = logger }
}

// NewLiveTransport creates a transport authenticated with the given API key.
func NewLiveTransport(apiKey string, opts ...LiveOption) *LiveTransport {
	t := &LiveTransport{
		apiKey:   apiKey,
		endpoint: defaultLiveEndpoint,
		dialer:   websocket.DefaultDialer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect dials the live endpoint, sends the session setup and waits for the
// server's setupComplete ack before returning a usable connection.
func (t *LiveTransport) Connect(ctx context.Context, hs live.Handshake) (live.Conn, error) {
	if hs.Model == "" {
		return nil, core.NewInvalidRequestError("live model must not be empty")
	}

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, liveConnectTimeout)
		defer cancel()
	}

	ws, resp, err := t.dialer.DialContext(dialCtx, t.endpoint+"?key="+t.apiKey, nil)
	if err != nil {
		if resp != nil {
			return nil, core.NewTransportError(fmt.Sprintf("websocket dial failed (status %d)", resp.StatusCode), err)
		}
		return nil, core.NewTransportError("websocket dial failed", err)
	}

	setup := bidiSetupMessage{
		Setup: bidiSetup{
			Model: "models/" + hs.Model,
			GenerationConfig: bidiGenerationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &bidiSpeechConfig{
					VoiceConfig: bidiVoiceConfig{
						PrebuiltVoiceConfig: bidiPrebuiltVoiceConfig{VoiceName: hs.Voice},
					},
				},
			},
			InputAudioTranscription: &struct{}{},
		},
	}
	if hs.SystemInstruction != "" {
		setup.Setup.SystemInstruction = &bidiContent{
			Parts: []bidiPart{{Text: hs.SystemInstruction}},
		}
	}
	if err := ws.WriteJSON(setup); err != nil {
		ws.Close()
		return nil, core.NewTransportError("send live setup", err)
	}

	ws.SetReadDeadline(time.Now().Add(liveConnectTimeout))
	_, payload, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return nil, core.NewTransportError("read setup ack", err)
	}
	ws.SetReadDeadline(time.Time{})

	var ack bidiServerFrame
	if err := json.Unmarshal(payload, &ack); err != nil {
		ws.Close()
		return nil, core.NewTransportError("decode setup ack", err)
	}
	if ack.SetupComplete == nil {
		ws.Close()
		return nil, core.NewTransportError("server did not acknowledge setup", nil)
	}

	conn := &liveConn{
		ws:     ws,
		msgs:   make(chan live.ServerMessage, 256),
		done:   make(chan struct{}),
		logger: t.logger,
	}
	go conn.readLoop()
	return conn, nil
}

// liveConn is one open bidirectional session.
type liveConn struct {
	ws     *websocket.Conn
	msgs   chan live.ServerMessage
	done   chan struct{}
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// SendAudio transmits one frame of 16 kHz s16le capture audio.
func (c *liveConn) SendAudio(pcm []byte) error {
	if c.closed.Load() {
		return core.NewTransportError("live connection is closed", nil)
	}
	msg := bidiRealtimeInputMessage{
		RealtimeInput: bidiRealtimeInput{
			MediaChunks: []bidiBlob{{
				MIMEType: captureMIMEType,
				Data:     audio.EncodeTransport(pcm),
			}},
		},
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		return core.NewTransportError("send audio frame", err)
	}
	return nil
}

// Messages yields decoded server messages. The channel closes when the
// connection ends for any reason; Err reports why.
func (c *liveConn) Messages() <-chan live.ServerMessage { return c.msgs }

func (c *liveConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *liveConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		c.ws.Close()
		close(c.done)
	})
	return nil
}

func (c *liveConn) setErr(err error) {
	if err == nil {
		return
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *liveConn) readLoop() {
	defer close(c.msgs)

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			c.setErr(core.NewTransportError("live connection lost", err))
			return
		}

		var frame bidiServerFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.logger.Warn("dropping undecodable live frame", "error", err)
			continue
		}
		if frame.ServerContent == nil {
			continue
		}

		msg, ok := c.decodeContent(frame.ServerContent)
		if !ok {
			continue
		}
		select {
		case c.msgs <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *liveConn) decodeContent(sc *bidiServerContent) (live.ServerMessage, bool) {
	var msg live.ServerMessage
	populated := false

	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		msg.Transcript = sc.InputTranscription.Text
		msg.HasTranscript = true
		populated = true
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil {
				continue
			}
			pcm, err := audio.DecodeTransport(p.InlineData.Data)
			if err != nil {
				c.logger.Warn("dropping malformed audio chunk", "error", err)
				continue
			}
			msg.Audio = append(msg.Audio, pcm...)
			populated = true
		}
	}
	if sc.TurnComplete {
		msg.TurnComplete = true
		populated = true
	}
	return msg, populated
}

// Wire types for the BidiGenerateContent protocol.

type bidiSetupMessage struct {
	Setup bidiSetup `json:"setup"`
}

type bidiSetup struct {
	Model                   string               `json:"model"`
	GenerationConfig        bidiGenerationConfig `json:"generationConfig"`
	SystemInstruction       *bidiContent         `json:"systemInstruction,omitempty"`
	InputAudioTranscription *struct{}            `json:"inputAudioTranscription,omitempty"`
}

type bidiGenerationConfig struct {
	ResponseModalities []string          `json:"responseModalities"`
	SpeechConfig       *bidiSpeechConfig `json:"speechConfig,omitempty"`
}

type bidiSpeechConfig struct {
	VoiceConfig bidiVoiceConfig `json:"voiceConfig"`
}

type bidiVoiceConfig struct {
	PrebuiltVoiceConfig bidiPrebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type bidiPrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type bidiContent struct {
	Parts []bidiPart `json:"parts"`
}

type bidiPart struct {
	Text       string    `json:"text,omitempty"`
	InlineData *bidiBlob `json:"inlineData,omitempty"`
}

type bidiBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type bidiRealtimeInputMessage struct {
	RealtimeInput bidiRealtimeInput `json:"realtimeInput"`
}

type bidiRealtimeInput struct {
	MediaChunks []bidiBlob `json:"mediaChunks"`
}

type bidiServerFrame struct {
	SetupComplete *struct{}          `json:"setupComplete,omitempty"`
	ServerContent *bidiServerContent `json:"serverContent,omitempty"`
}

type bidiServerContent struct {
	InputTranscription *bidiTranscription `json:"inputTranscription,omitempty"`
	ModelTurn          *bidiContent       `json:"modelTurn,omitempty"`
	TurnComplete       bool               `json:"turnComplete,omitempty"`
}

type bidiTranscription struct {
	Text string `json:"text"`
}
