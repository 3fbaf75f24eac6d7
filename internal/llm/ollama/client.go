package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/llm"
)

// visionModels are accepted as "the local model is installed" by Available.
var visionModels = []string{"qwen3-vl", "qwen2-vl"}

func (c *Client) Name() string { return constants.ProviderOllama }

// Extract implements llm.Provider via /api/chat. Only the first MaxImages
// pages are sent.
func (c *Client) Extract(ctx context.Context, req llm.ExtractRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	images := req.Images
	if len(images) > c.cfg.MaxImages {
		images = images[:c.cfg.MaxImages]
	}
	c.logger.Info("llm.ollama.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"images", len(images),
		"pages_available", len(req.Images),
	)

	body := map[string]any{
		"model":  c.cfg.Model,
		"stream": false,
		"messages": []map[string]any{{
			"role":    "user",
			"content": llm.PromptFor(req),
			"images":  images,
		}},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/chat"
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, nil, c.logger)
	if err != nil {
		c.logger.Error("llm.ollama.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if status == http.StatusNotFound {
			return "", fmt.Errorf("ollama model %q not found, run: ollama pull %s: %w", c.cfg.Model, c.cfg.Model, err)
		}
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Error("llm.ollama.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama: %s", resp.Error)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", errors.New("ollama returned empty content")
	}

	c.logger.Info("llm.ollama.ok",
		"req_id", rid,
		"content_len", len(resp.Message.Content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return resp.Message.Content, nil
}

// Available reports whether a supported vision model is installed.
func (c *Client) Available(ctx context.Context) (bool, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/tags"
	raw, _, err := llm.GetJSON(ctx, c.http, endpoint, nil, c.logger)
	if err != nil {
		return false, err
	}
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(raw, &tags); err != nil {
		return false, fmt.Errorf("decode ollama tags: %w", err)
	}
	for _, m := range tags.Models {
		if strings.Contains(m.Name, c.cfg.Model) {
			return true, nil
		}
		for _, v := range visionModels {
			if strings.Contains(m.Name, v) {
				return true, nil
			}
		}
	}
	return false, nil
}
