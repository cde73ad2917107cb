package gemini

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amigolabs/amigo/pkg/core"
	"github.com/amigolabs/amigo/pkg/core/live"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// liveTestServer fakes the BidiGenerateContent endpoint: it validates the
// setup frame, acks it, then hands the socket to the handler.
func liveTestServer(t *testing.T, handler func(*websocket.Conn, bidiSetupMessage)) *LiveTransport {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()

		var setup bidiSetupMessage
		if err := ws.ReadJSON(&setup); err != nil {
			t.Errorf("read setup: %v", err)
			return
		}
		if err := ws.WriteJSON(map[string]any{"setupComplete": map[string]any{}}); err != nil {
			t.Errorf("write setup ack: %v", err)
			return
		}
		if handler != nil {
			handler(ws, setup)
		}
	}))
	t.Cleanup(srv.Close)
	return NewLiveTransport("test-key", WithLiveEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
}

func testHandshake() live.Handshake {
	return live.Handshake{
		Model:             "gemini-2.5-flash-native-audio-preview-09-2025",
		Voice:             "Kore",
		SystemInstruction: "Eres Laura.",
	}
}

func TestLiveConnectSendsSetup(t *testing.T) {
	setupCh := make(chan bidiSetupMessage, 1)
	transport := liveTestServer(t, func(ws *websocket.Conn, setup bidiSetupMessage) {
		setupCh <- setup
	})

	conn, err := transport.Connect(context.Background(), testHandshake())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	setup := <-setupCh
	if got := setup.Setup.Model; got != "models/gemini-2.5-flash-native-audio-preview-09-2025" {
		t.Errorf("model = %q", got)
	}
	if got := setup.Setup.GenerationConfig.ResponseModalities; len(got) != 1 || got[0] != "AUDIO" {
		t.Errorf("response modalities = %v", got)
	}
	if got := setup.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName; got != "Kore" {
		t.Errorf("voice = %q", got)
	}
	if setup.Setup.InputAudioTranscription == nil {
		t.Error("input transcription not requested")
	}
	if setup.Setup.SystemInstruction == nil || setup.Setup.SystemInstruction.Parts[0].Text != "Eres Laura." {
		t.Error("system instruction missing")
	}
}

func TestLiveConnectRejectedWithoutAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		var setup bidiSetupMessage
		ws.ReadJSON(&setup)
		ws.WriteJSON(map[string]any{"error": map[string]any{"message": "bad model"}})
	}))
	defer srv.Close()

	transport := NewLiveTransport("test-key", WithLiveEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
	_, err := transport.Connect(context.Background(), testHandshake())
	if !core.IsType(err, core.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestLiveSendAudioFramesRealtimeInput(t *testing.T) {
	frameCh := make(chan bidiRealtimeInputMessage, 1)
	transport := liveTestServer(t, func(ws *websocket.Conn, _ bidiSetupMessage) {
		var msg bidiRealtimeInputMessage
		if err := ws.ReadJSON(&msg); err != nil {
			t.Errorf("read realtime input: %v", err)
			return
		}
		frameCh <- msg
	})

	conn, err := transport.Connect(context.Background(), testHandshake())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	if err := conn.SendAudio(pcm); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	select {
	case msg := <-frameCh:
		chunks := msg.RealtimeInput.MediaChunks
		if len(chunks) != 1 {
			t.Fatalf("got %d media chunks, want 1", len(chunks))
		}
		if chunks[0].MIMEType != "audio/pcm;rate=16000" {
			t.Errorf("mime type = %q", chunks[0].MIMEType)
		}
		decoded, err := base64.StdEncoding.DecodeString(chunks[0].Data)
		if err != nil {
			t.Fatalf("decode chunk: %v", err)
		}
		if string(decoded) != string(pcm) {
			t.Errorf("chunk data = %v, want %v", decoded, pcm)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the audio frame")
	}
}

func TestLiveServerContentDecoded(t *testing.T) {
	audioPCM := []byte{0x10, 0x20, 0x30, 0x40}
	transport := liveTestServer(t, func(ws *websocket.Conn, _ bidiSetupMessage) {
		ws.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"inputTranscription": map[string]any{"text": "hola laura"},
			},
		})
		ws.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"modelTurn": map[string]any{
					"parts": []map[string]any{{
						"inlineData": map[string]any{
							"mimeType": "audio/pcm;rate=24000",
							"data":     base64.StdEncoding.EncodeToString(audioPCM),
						},
					}},
				},
				"turnComplete": true,
			},
		})
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	})

	conn, err := transport.Connect(context.Background(), testHandshake())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	msg, ok := <-conn.Messages()
	if !ok {
		t.Fatal("messages closed early")
	}
	if !msg.HasTranscript || msg.Transcript != "hola laura" {
		t.Errorf("transcript message = %+v", msg)
	}

	msg, ok = <-conn.Messages()
	if !ok {
		t.Fatal("messages closed early")
	}
	if string(msg.Audio) != string(audioPCM) {
		t.Errorf("audio = %v, want %v", msg.Audio, audioPCM)
	}
	if !msg.TurnComplete {
		t.Error("turn complete not set")
	}

	if _, ok := <-conn.Messages(); ok {
		t.Error("expected messages to close after server close")
	}
	if err := conn.Err(); err != nil {
		t.Errorf("clean close reported error: %v", err)
	}
}

func TestLiveAbruptCloseReportsError(t *testing.T) {
	transport := liveTestServer(t, func(ws *websocket.Conn, _ bidiSetupMessage) {
		// Drop the TCP connection without a close frame.
		ws.UnderlyingConn().Close()
	})

	conn, err := transport.Connect(context.Background(), testHandshake())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	for range conn.Messages() {
	}
	if err := conn.Err(); !core.IsType(err, core.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestLiveSendAfterCloseFails(t *testing.T) {
	transport := liveTestServer(t, nil)
	conn, err := transport.Connect(context.Background(), testHandshake())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := conn.SendAudio([]byte{0x01, 0x02}); !core.IsType(err, core.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
