package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thomasnguyen/corgi-quest/internal/config"
	"github.com/thomasnguyen/corgi-quest/internal/logger"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/prompts"
	"github.com/thomasnguyen/corgi-quest/internal/realtime"
)

// 100 ms of 24 kHz mono PCM16.
const defaultFrameBytes = 4800

func init() {
	var frameBytes int
	voiceCmd := &cobra.Command{
		Use:   "voice",
		Short: "Talk to the assistant: raw PCM16 24kHz mono on stdin, replies on stdout",
		Long: `Opens a realtime voice session. Microphone audio is read from stdin and the
assistant's speech is written to stdout, both as raw little-endian PCM16 at 24 kHz.
Example: sox -d -t raw -r 24000 -e signed -b 16 -c 1 - | questctl voice | play -t raw -r 24000 -e signed -b 16 -c 1 -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := householdPath(""); err != nil {
				return err
			}
			return runVoice(cmd.Context(), frameBytes)
		},
	}
	voiceCmd.Flags().IntVar(&frameBytes, "frame-bytes", defaultFrameBytes, "Bytes of PCM16 per microphone frame")
	rootCmd.AddCommand(voiceCmd)
}

func runVoice(parent context.Context, frameBytes int) error {
	if parent == nil {
		parent = context.Background()
	}
	log := logger.NewWithWriter(os.Stderr, "questctl", os.Getenv("CORGI_QUEST_LOG_LEVEL"))
	cfg, err := config.New()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client()
	fatal := make(chan error, 1)
	sess := realtime.NewSession(realtime.Config{
		URL:          cfg.RealtimeURL,
		Model:        cfg.RealtimeModel,
		Voice:        cfg.RealtimeVoice,
		Instructions: prompts.VoiceInstructions,
		MaxAttempts:  cfg.ReconnectMaxAttempts,
		BaseDelay:    time.Duration(cfg.ReconnectBaseDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.ReconnectMaxDelayMs) * time.Millisecond,
		OnFatal: func(err error) {
			select {
			case fatal <- err:
			default:
			}
		},
	}, realtime.Deps{
		Tokens:     tokenSource(api),
		Microphone: newPipeMic(os.Stdin, frameBytes),
		Speaker:    &pipeSpeaker{w: os.Stdout},
		Recorder:   &httpRecorder{api: api},
		Observer: realtime.ObserverFuncs{
			StateChange: func(s realtime.State) { fmt.Fprintf(os.Stderr, "[%s]\n", s) },
			Transcript:  func(role, text string) { fmt.Fprintf(os.Stderr, "%s: %s\n", role, text) },
			ActivityLogged: func(r *model.ActivityReport, msg string) {
				fmt.Fprintf(os.Stderr, "logged %q: %s\n", r.ActivityName, msg)
			},
			Error: func(err error) { fmt.Fprintf(os.Stderr, "error: %v\n", err) },
		},
	}, log)
	defer sess.Close()

	if err := sess.Connect(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return nil
	case err := <-fatal:
		return err
	}
}

// tokenSource mints an ephemeral realtime credential through the quest service.
func tokenSource(api *apiClient) realtime.TokenFunc {
	return func(ctx context.Context) (string, error) {
		path, err := householdPath("/voice/token")
		if err != nil {
			return "", err
		}
		data, err := api.postJSON(ctx, path, nil)
		if err != nil {
			return "", err
		}
		var sess struct {
			ClientSecret string `json:"clientSecret"`
		}
		if err := json.Unmarshal(data, &sess); err != nil {
			return "", fmt.Errorf("decode voice token: %w", err)
		}
		if sess.ClientSecret == "" {
			return "", fmt.Errorf("voice token response has no client secret")
		}
		return sess.ClientSecret, nil
	}
}

// httpRecorder logs tool-call activities through the REST API.
type httpRecorder struct {
	api *apiClient
}

func (h *httpRecorder) RecordActivity(ctx context.Context, report *model.ActivityReport) (string, error) {
	path, err := householdPath("/activities?source=" + string(model.SourceRealtime))
	if err != nil {
		return "", err
	}
	data, err := h.api.postJSON(ctx, path, report)
	if err != nil {
		return "", err
	}
	var res struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("decode activity result: %w", err)
	}
	return res.Message, nil
}

// pipeMic reads fixed-size PCM16 frames from r. A single pump goroutine owns
// the reader; Start and Stop only switch where frames are delivered, so a
// reconnect never has two readers racing on the pipe.
type pipeMic struct {
	r          io.Reader
	frameBytes int
	once       sync.Once
	mu         sync.Mutex
	onFrame    func([]float32)
}

func newPipeMic(r io.Reader, frameBytes int) *pipeMic {
	if frameBytes <= 0 || frameBytes%2 != 0 {
		frameBytes = defaultFrameBytes
	}
	return &pipeMic{r: r, frameBytes: frameBytes}
}

func (m *pipeMic) RequestPermission(context.Context) (bool, error) { return true, nil }

func (m *pipeMic) Start(onFrame func(samples []float32)) error {
	m.mu.Lock()
	m.onFrame = onFrame
	m.mu.Unlock()
	m.once.Do(func() { go m.pump() })
	return nil
}

func (m *pipeMic) Stop() {
	m.mu.Lock()
	m.onFrame = nil
	m.mu.Unlock()
}

func (m *pipeMic) pump() {
	buf := make([]byte, m.frameBytes)
	for {
		if _, err := io.ReadFull(m.r, buf); err != nil {
			return
		}
		m.mu.Lock()
		f := m.onFrame
		m.mu.Unlock()
		if f != nil {
			f(realtime.PCM16ToFloat(buf))
		}
	}
}

// pipeSpeaker writes PCM16 to w.
type pipeSpeaker struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *pipeSpeaker) Play(ctx context.Context, samples []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(realtime.FloatToPCM16(samples))
	return err
}
