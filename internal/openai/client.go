// Package openai is a small client for the OpenAI endpoints the quest service
// uses: realtime session minting, JSON chat completions and image generation.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/thomasnguyen/corgi-quest/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.openai.com"
	DefaultTimeout = 30 * time.Second

	imageSize    = "1024x1024"
	imageQuality = "standard"
)

// Config holds connection settings.
type Config struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	ImageModel string
	Timeout    time.Duration
}

// Client calls the gateway through resty.
type Client struct {
	rc  *resty.Client
	cfg Config
}

// New creates a client. A missing API key is reported per call as ErrNotConfigured.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "dall-e-3"
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	return &Client{rc: rc, cfg: cfg}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.cfg.APIKey != "" }

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// post sends body to path and decodes a 2xx response into out.
func (c *Client) post(ctx context.Context, op, path string, body, out interface{}) (err error) {
	started := time.Now()
	defer func() { metrics.ObserveAI(op, started, err) }()

	if !c.Configured() {
		return newError(ErrNotConfigured, op, 0, "")
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var apiErr apiErrorBody
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(c.cfg.APIKey).
		SetBody(body).
		SetResult(out).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		if isTimeout(err) {
			return newError(ErrTimeout, op, 0, err.Error())
		}
		if resp != nil && isDecodeError(err) {
			return newError(ErrBadResponse, op, resp.StatusCode(), "undecodable body: "+err.Error())
		}
		return newError(ErrRequest, op, 0, err.Error())
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return classify(op, resp.StatusCode(), apiErr)
	}
	return nil
}

func classify(op string, status int, body apiErrorBody) *Error {
	detail := body.Error.Message
	if detail == "" {
		detail = http.StatusText(status)
	}
	switch {
	case status == http.StatusTooManyRequests:
		return newError(ErrRateLimited, op, status, detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(ErrUnauthorized, op, status, detail)
	case status >= 500:
		return newError(ErrUnavailable, op, status, detail)
	case body.Error.Code == "content_policy_violation" || strings.Contains(body.Error.Type, "content_policy"):
		return newError(ErrContentPolicy, op, status, detail)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return newError(ErrTimeout, op, status, detail)
	default:
		return newError(ErrRequest, op, status, fmt.Sprintf("status %d: %s", status, detail))
	}
}

// isDecodeError reports a 2xx body that resty could not unmarshal into the result.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
