package openai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/thomasnguyen/corgi-quest/internal/model"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatJSON runs a chat completion in JSON mode and returns the raw JSON content.
func (c *Client) ChatJSON(ctx context.Context, op, system, user string) (string, error) {
	req := chatRequest{
		Model: c.cfg.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    0.4,
	}
	var out chatResponse
	if err := c.post(ctx, op, "/v1/chat/completions", req, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", newError(ErrBadResponse, op, 200, "no choices")
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", newError(ErrBadResponse, op, 200, "empty content")
	}
	return content, nil
}

// Recommendations asks for weekly training ideas and parses the result.
func (c *Client) Recommendations(ctx context.Context, system, user string) ([]model.Recommendation, error) {
	content, err := c.ChatJSON(ctx, "recommendations", system, user)
	if err != nil {
		return nil, err
	}
	return ParseRecommendations(content)
}

// ParseRecommendations accepts {"recommendations": [...]} or a bare array.
func ParseRecommendations(content string) ([]model.Recommendation, error) {
	const op = "recommendations"
	content = strings.TrimSpace(content)
	var recs []model.Recommendation
	if strings.HasPrefix(content, "[") {
		if err := json.Unmarshal([]byte(content), &recs); err != nil {
			return nil, newError(ErrBadResponse, op, 200, "malformed recommendations array: "+err.Error())
		}
	} else {
		var wrapped struct {
			Recommendations []model.Recommendation `json:"recommendations"`
		}
		if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
			return nil, newError(ErrBadResponse, op, 200, "malformed recommendations object: "+err.Error())
		}
		recs = wrapped.Recommendations
	}
	out := recs[:0]
	for _, r := range recs {
		r.Title = strings.TrimSpace(r.Title)
		if r.Title == "" {
			continue
		}
		if !r.Stat.Valid() {
			r.Stat = ""
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, newError(ErrBadResponse, op, 200, "no recommendations in response")
	}
	return out, nil
}
