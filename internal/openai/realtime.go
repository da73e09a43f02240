package openai

import (
	"context"
	"strings"
	"time"
)

// RealtimeSession is an ephemeral credential for a browser or CLI realtime connection.
type RealtimeSession struct {
	ClientSecret string    `json:"clientSecret"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Model        string    `json:"model"`
	Voice        string    `json:"voice"`
}

type realtimeSessionRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice,omitempty"`
}

type realtimeSessionResponse struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	ClientSecret *struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// CreateRealtimeSession mints an ephemeral client secret via POST /v1/realtime/sessions.
func (c *Client) CreateRealtimeSession(ctx context.Context, model, voice string) (*RealtimeSession, error) {
	const op = "realtime_session"
	var out realtimeSessionResponse
	if err := c.post(ctx, op, "/v1/realtime/sessions", realtimeSessionRequest{Model: model, Voice: voice}, &out); err != nil {
		return nil, err
	}
	if out.ClientSecret == nil || strings.TrimSpace(out.ClientSecret.Value) == "" {
		return nil, newError(ErrBadResponse, op, 200, "response has no client_secret.value")
	}
	s := &RealtimeSession{ClientSecret: out.ClientSecret.Value, Model: model, Voice: voice}
	if out.Model != "" {
		s.Model = out.Model
	}
	if out.ClientSecret.ExpiresAt > 0 {
		s.ExpiresAt = time.Unix(out.ClientSecret.ExpiresAt, 0).UTC()
	}
	return s, nil
}
