package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/openai"
	"github.com/thomasnguyen/corgi-quest/internal/prompts"
	"github.com/thomasnguyen/corgi-quest/internal/wakeword"
)

// ChatCompleter runs a JSON-mode chat completion.
type ChatCompleter interface {
	ChatJSON(ctx context.Context, op, system, user string) (string, error)
}

// RealtimeMinter issues ephemeral realtime credentials.
type RealtimeMinter interface {
	CreateRealtimeSession(ctx context.Context, model, voice string) (*openai.RealtimeSession, error)
}

// VoiceService turns spoken or typed descriptions into logged activities.
type VoiceService struct {
	activities *ActivityService
	chat       ChatCompleter
	minter     RealtimeMinter
	model      string
	voice      string
	log        zerolog.Logger
}

// VoiceConfig names the realtime model and voice used for minted sessions.
type VoiceConfig struct {
	RealtimeModel string
	RealtimeVoice string
}

func NewVoiceService(activities *ActivityService, chat ChatCompleter, minter RealtimeMinter, cfg VoiceConfig, log zerolog.Logger) *VoiceService {
	return &VoiceService{
		activities: activities,
		chat:       chat,
		minter:     minter,
		model:      cfg.RealtimeModel,
		voice:      cfg.RealtimeVoice,
		log:        log,
	}
}

// ParsedActivity is the outcome of ParseActivity.
type ParsedActivity struct {
	WakeWord wakeword.Result       `json:"wakeWord"`
	Report   *model.ActivityReport `json:"report"`
	Result   *model.ActivityResult `json:"result"`
	Message  string                `json:"message"`
}

// ParseActivity runs the wake-word gate over text, asks the chat model for an
// activity report and logs it. Without a wake word the whole text is parsed.
func (s *VoiceService) ParseActivity(ctx context.Context, householdID string, userID *string, text string) (*ParsedActivity, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, model.NewValidationError("text", "is required")
	}
	gate := wakeword.Detect(text)
	input := text
	if gate.Detected {
		input = strings.TrimSpace(gate.Payload)
		if input == "" {
			return nil, model.NewValidationError("text", "nothing to log after "+gate.WakeWord)
		}
	}
	if s.chat == nil {
		return nil, openai.ErrNotConfigured
	}
	raw, err := s.chat.ChatJSON(ctx, "parse_activity", prompts.ParseActivitySystem, input)
	if err != nil {
		return nil, err
	}
	report, err := model.ParseActivityReport(raw)
	if err != nil {
		s.log.Warn().Err(err).Str("household_id", householdID).Msg("model returned an unusable activity")
		if !model.IsValidationError(err) {
			err = openai.BadResponse("parse_activity", err.Error())
		}
		return nil, err
	}
	res, err := s.activities.LogActivity(ctx, householdID, userID, report, model.SourceVoice)
	if err != nil {
		return nil, err
	}
	return &ParsedActivity{WakeWord: gate, Report: report, Result: res, Message: res.Summary()}, nil
}

// MintRealtimeToken returns an ephemeral credential for a realtime voice session.
func (s *VoiceService) MintRealtimeToken(ctx context.Context) (*openai.RealtimeSession, error) {
	if s.minter == nil {
		return nil, openai.ErrNotConfigured
	}
	return s.minter.CreateRealtimeSession(ctx, s.model, s.voice)
}
