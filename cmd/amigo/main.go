package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/amigolabs/amigo/pkg/core/audio"
	"github.com/amigolabs/amigo/pkg/core/live"
	"github.com/amigolabs/amigo/pkg/core/providers/gemini"
)

const chatFallbackMessage = "Lo siento, ha habido un problema de conexión. Inténtalo de nuevo."

type appConfig struct {
	Mode    string
	APIKey  string
	Verbose bool

	// voice
	Persona string

	// chat
	Tier     string
	Lat, Lng float64
	HasLoc   bool

	// edit / speak
	ImagePath   string
	Instruction string
	Text        string
	Voice       string
	OutPath     string
}

func parseConfig(args []string, getenv func(string) string) (appConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := appConfig{}
	fs := flag.NewFlagSet("amigo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Mode, "mode", "voice", "mode: voice, chat, edit or speak")
	fs.StringVar(&cfg.Persona, "persona", "laura", "starting voice persona: laura or nicole")
	fs.StringVar(&cfg.Tier, "tier", string(gemini.TierFast), "chat tier: fast, balanced or deep")
	fs.StringVar(&cfg.ImagePath, "image", "", "image file for edit mode")
	fs.StringVar(&cfg.Instruction, "prompt", "", "edit instruction for edit mode")
	fs.StringVar(&cfg.Text, "text", "", "text to speak in speak mode")
	fs.StringVar(&cfg.Voice, "voice", "Kore", "prebuilt voice for speak mode")
	fs.StringVar(&cfg.OutPath, "out", "", "output file for edit mode")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "enable debug logging")

	lat := fs.String("lat", strings.TrimSpace(getenv("AMIGO_LAT")), "latitude for grounded answers (or AMIGO_LAT)")
	lng := fs.String("lng", strings.TrimSpace(getenv("AMIGO_LNG")), "longitude for grounded answers (or AMIGO_LNG)")

	if err := fs.Parse(args); err != nil {
		return appConfig{}, err
	}

	cfg.APIKey = strings.TrimSpace(getenv("GEMINI_API_KEY"))
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(getenv("GOOGLE_API_KEY"))
	}

	if *lat != "" || *lng != "" {
		latV, errLat := strconv.ParseFloat(strings.TrimSpace(*lat), 64)
		lngV, errLng := strconv.ParseFloat(strings.TrimSpace(*lng), 64)
		if errLat != nil || errLng != nil {
			return appConfig{}, errors.New("lat and lng must both be valid decimal coordinates")
		}
		cfg.Lat, cfg.Lng, cfg.HasLoc = latV, lngV, true
	}

	if err := validateConfig(cfg); err != nil {
		return appConfig{}, err
	}
	return cfg, nil
}

func validateConfig(cfg appConfig) error {
	if cfg.APIKey == "" {
		return errors.New("missing api key (set GEMINI_API_KEY or GOOGLE_API_KEY)")
	}
	switch cfg.Mode {
	case "voice":
		if _, err := personaByName(cfg.Persona); err != nil {
			return err
		}
	case "chat":
		if !gemini.Tier(cfg.Tier).Valid() {
			return fmt.Errorf("unknown tier %q (use fast, balanced or deep)", cfg.Tier)
		}
	case "edit":
		if cfg.ImagePath == "" {
			return errors.New("edit mode requires -image")
		}
		if strings.TrimSpace(cfg.Instruction) == "" {
			return errors.New("edit mode requires -prompt")
		}
		if cfg.OutPath == "" {
			return errors.New("edit mode requires -out")
		}
	case "speak":
		if strings.TrimSpace(cfg.Text) == "" {
			return errors.New("speak mode requires -text")
		}
	default:
		return fmt.Errorf("unknown mode %q (use voice, chat, edit or speak)", cfg.Mode)
	}
	return nil
}

func personaByName(name string) (live.Persona, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "laura":
		return live.PersonaLaura, nil
	case "nicole":
		return live.PersonaNicole, nil
	default:
		return live.Persona{}, fmt.Errorf("unknown persona %q (use laura or nicole)", name)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runVoice(ctx context.Context, cfg appConfig, logger *slog.Logger, in io.Reader, out io.Writer) error {
	persona, err := personaByName(cfg.Persona)
	if err != nil {
		return err
	}

	liveCfg := live.DefaultConfig()
	transport := gemini.NewLiveTransport(cfg.APIKey, gemini.WithLiveLogger(logger))
	manager := live.NewManager(liveCfg, transport, live.HardwareDevices(liveCfg), logger)

	go func() {
		for ev := range manager.Events() {
			switch e := ev.(type) {
			case *live.TranscriptEvent:
				fmt.Fprintf(out, "you: %s\n", e.Text)
			case *live.PersonaSwitchEvent:
				fmt.Fprintf(out, "[%s is taking over]\n", e.To)
			case *live.StateChangedEvent:
				logger.Debug("session state", "from", e.From, "to", e.To, "persona", e.Persona)
			case *live.ErrorEvent:
				fmt.Fprintf(out, "[error] %s\n", e.Message)
			case *live.ClosedEvent:
				logger.Debug("session closed", "reason", e.Reason)
			}
		}
	}()

	if err := manager.Start(ctx, persona); err != nil {
		return err
	}
	defer manager.Stop()

	fmt.Fprintf(out, "Talking to %s. Say \"quiero hablar con nicole\" to switch.\n", persona.Name)
	fmt.Fprintln(out, "Type /switch:laura, /switch:nicole or /exit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch {
			case line == "/exit" || line == "/quit":
				return nil
			case strings.HasPrefix(line, "/switch:"):
				target, err := personaByName(strings.TrimPrefix(line, "/switch:"))
				if err != nil {
					fmt.Fprintf(out, "[error] %v\n", err)
					continue
				}
				if err := manager.SwitchTo(ctx, target); err != nil {
					fmt.Fprintf(out, "[error] switch failed: %v\n", err)
				}
			}
		}
	}
}

type chatState struct {
	chat    *gemini.Chat
	pending []gemini.Attachment
}

func handleChatCommand(ctx context.Context, line string, state *chatState, out io.Writer) (handled bool) {
	switch {
	case line == "/tier":
		fmt.Fprintf(out, "current tier: %s (%s)\n", state.chat.Tier(), state.chat.Tier().Model())
		return true
	case strings.HasPrefix(line, "/tier:"):
		target := gemini.Tier(strings.TrimSpace(strings.TrimPrefix(line, "/tier:")))
		prev := state.chat.Tier()
		if err := state.chat.SetTier(ctx, target); err != nil {
			fmt.Fprintf(out, "[error] %v\n", err)
			return true
		}
		if prev != target {
			fmt.Fprintf(out, "tier switched: %s -> %s (history reset)\n", prev, target)
		}
		return true
	case strings.HasPrefix(line, "/attach:"):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/attach:"))
		att, err := loadAttachment(path)
		if err != nil {
			fmt.Fprintf(out, "[error] %v\n", err)
			return true
		}
		state.pending = append(state.pending, att)
		fmt.Fprintf(out, "attached %s (%s)\n", path, att.MIMEType)
		return true
	default:
		return false
	}
}

func loadAttachment(path string) (gemini.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gemini.Attachment{}, fmt.Errorf("read %s: %w", path, err)
	}
	return gemini.Attachment{MIMEType: http.DetectContentType(data), Data: data}, nil
}

func runChat(ctx context.Context, cfg appConfig, logger *slog.Logger, in io.Reader, out io.Writer) error {
	client, err := gemini.NewClient(ctx, cfg.APIKey, gemini.WithLogger(logger))
	if err != nil {
		return err
	}

	chatCfg := gemini.ChatConfig{
		Tier:              gemini.Tier(cfg.Tier),
		SystemInstruction: live.NicoleSystemInstruction(),
	}
	if cfg.HasLoc {
		chatCfg.Location = &gemini.Location{Latitude: cfg.Lat, Longitude: cfg.Lng}
	}
	chat, err := client.NewChat(ctx, chatCfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Chatting with Nicole on tier %s.\n", chat.Tier())
	fmt.Fprintln(out, "Type /tier to inspect, /tier:{fast|balanced|deep} to switch, /attach:{path} to add an image, /exit to stop.")

	state := &chatState{chat: chat}
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(out)
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/exit" || line == "/quit" {
			fmt.Fprintln(out, "bye")
			return nil
		}
		if handleChatCommand(ctx, line, state, out) {
			continue
		}

		attachments := state.pending
		state.pending = nil
		reply, err := chat.Send(ctx, line, attachments...)
		if err != nil {
			logger.Debug("chat turn failed", "error", err)
			fmt.Fprintln(out, chatFallbackMessage)
			continue
		}
		fmt.Fprintln(out, reply.Text)
		for _, src := range reply.Sources {
			fmt.Fprintf(out, "  - %s (%s)\n", src.Title, src.URI)
		}
	}
}

func runEdit(ctx context.Context, cfg appConfig, logger *slog.Logger, out io.Writer) error {
	client, err := gemini.NewClient(ctx, cfg.APIKey, gemini.WithLogger(logger))
	if err != nil {
		return err
	}

	image, err := loadAttachment(cfg.ImagePath)
	if err != nil {
		return err
	}

	edited, err := client.EditImage(ctx, image, cfg.Instruction)
	if err != nil {
		return err
	}
	if edited == nil {
		fmt.Fprintln(out, "The edit was declined by the service; no image was produced.")
		return nil
	}
	if err := os.WriteFile(cfg.OutPath, edited.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", cfg.OutPath, err)
	}
	fmt.Fprintf(out, "wrote %s (%s, %d bytes)\n", cfg.OutPath, edited.MIMEType, len(edited.Data))
	return nil
}

func runSpeak(ctx context.Context, cfg appConfig, logger *slog.Logger, out io.Writer) error {
	client, err := gemini.NewClient(ctx, cfg.APIKey, gemini.WithLogger(logger))
	if err != nil {
		return err
	}

	pcm, err := client.SynthesizeSpeech(ctx, cfg.Text, cfg.Voice)
	if err != nil {
		return err
	}
	if pcm == nil {
		fmt.Fprintln(out, "The request was declined by the service; no speech was produced.")
		return nil
	}

	if cfg.OutPath != "" {
		if err := os.WriteFile(cfg.OutPath, pcm, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", cfg.OutPath, err)
		}
		fmt.Fprintf(out, "wrote %s (%d bytes of 24kHz s16le PCM)\n", cfg.OutPath, len(pcm))
		return nil
	}

	playCfg := audio.PlaybackConfig()
	clock, sink, err := live.HardwareDevices(live.DefaultConfig()).NewPlayback()
	if err != nil {
		return err
	}
	sched := live.NewScheduler(playCfg, clock, sink, logger)
	defer sched.Close()
	if err := sched.Schedule(pcm); err != nil {
		return err
	}
	select {
	case <-time.After(playCfg.Duration(len(pcm)) + 200*time.Millisecond):
	case <-ctx.Done():
	}
	return nil
}

func run(ctx context.Context, cfg appConfig) error {
	logger := newLogger(cfg.Verbose)
	slog.SetDefault(logger)

	switch cfg.Mode {
	case "voice":
		return runVoice(ctx, cfg, logger, os.Stdin, os.Stdout)
	case "chat":
		return runChat(ctx, cfg, logger, os.Stdin, os.Stdout)
	case "edit":
		return runEdit(ctx, cfg, logger, os.Stdout)
	case "speak":
		return runSpeak(ctx, cfg, logger, os.Stdout)
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "amigo: load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "amigo: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "amigo: %v\n", err)
		os.Exit(1)
	}
}
