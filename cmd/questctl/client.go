package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const requestTimeout = 45 * time.Second

// apiClient is a thin resty wrapper that turns non-2xx responses into errors.
type apiClient struct {
	rc *resty.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(requestTimeout)
	if token != "" {
		rc.SetAuthToken(token)
	}
	return &apiClient{rc: rc}
}

func (c *apiClient) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	req := c.rc.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return resp.Body(), nil
}

func (c *apiClient) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, payload)
}

func (c *apiClient) putJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, payload)
}

func (c *apiClient) delete(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// client builds an apiClient from the global flags.
func client() *apiClient { return newAPIClient(apiFlag, tokenFlag) }

// householdPath prefixes suffix with the --household route.
func householdPath(suffix string) (string, error) {
	if householdFlag == "" {
		return "", fmt.Errorf("--household required (or CORGI_QUEST_HOUSEHOLD)")
	}
	return "/api/households/" + householdFlag + suffix, nil
}
