package openai

import (
	"context"
	"strings"
)

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateImage renders prompt via POST /v1/images/generations and returns the image URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	const op = "image"
	req := imageRequest{Model: c.cfg.ImageModel, Prompt: prompt, N: 1, Size: imageSize, Quality: imageQuality}
	var out imageResponse
	if err := c.post(ctx, op, "/v1/images/generations", req, &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 || strings.TrimSpace(out.Data[0].URL) == "" {
		return "", newError(ErrBadResponse, op, 200, "no image url")
	}
	return out.Data[0].URL, nil
}
