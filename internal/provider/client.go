// Package provider implements the outbound text-generation capability
// against an OpenAI-compatible chat-completions endpoint. The pipeline
// treats it as a black box that may be slow, truncate output, or fail.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/focusflow-app/focusflow/internal/config"
	"github.com/focusflow-app/focusflow/internal/pipeline"
)

const clientTimeout = 150 * time.Second

// Client talks to the configured completion endpoint. It is stateless
// and safe for concurrent use.
type Client struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
}

// New builds a client from the validated configuration.
func New(cfg *config.Config) *Client {
	transport := http.DefaultTransport
	if t, ok := transport.(*http.Transport); ok {
		t = t.Clone()
		// Compression is negotiated and decoded manually below so
		// brotli can be offered alongside gzip.
		t.DisableCompression = true
		transport = t
	}
	return &Client{
		baseURL: cfg.Provider.BaseURL,
		model:   cfg.Provider.Model,
		apiKey:  cfg.Provider.APIKey,
		// The pipeline owns the effective deadline; this is a backstop
		// so an abandoned loser goroutine cannot hold a socket forever.
		http: &http.Client{Timeout: clientTimeout, Transport: transport},
	}
}

type statusError struct {
	code int
	msg  string
}

func (e statusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.code, e.msg)
}

// Generate implements pipeline.Generator.
func (c *Client) Generate(ctx context.Context, req pipeline.GenerationRequest) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxOutputTokens,
		"messages": []map[string]any{
			{"role": "user", "content": req.Prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("provider: marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("provider: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept-Encoding", "gzip, br")

	log.WithFields(log.Fields{
		"model":        c.model,
		"promptTokens": EstimateTokens(req.Prompt),
		"maxTokens":    req.MaxOutputTokens,
	}).Debug("provider request")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("provider: request failed: %w", err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("provider: close body error: %v", errClose)
		}
	}()

	data, err := decodeBody(resp)
	if err != nil {
		return "", fmt.Errorf("provider: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError{code: resp.StatusCode, msg: truncateForError(data)}
	}
	return extractCompletionText(data), nil
}

// decodeBody reads the response body, decoding gzip or brotli encoding.
func decodeBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	}
	return io.ReadAll(reader)
}

// extractCompletionText pulls the completion out of whatever envelope
// the provider returned, coercing to string defensively. Unknown
// envelopes fall back to the raw body so the recovery parser still gets
// a chance at it.
func extractCompletionText(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if gjson.ValidBytes(data) {
		root := gjson.ParseBytes(data)
		for _, path := range []string{
			"choices.0.message.content", // OpenAI chat
			"choices.0.text",            // OpenAI legacy completions
			"content.0.text",            // Anthropic messages
			"message.content",           // Ollama
			"output_text",               // OpenAI responses
		} {
			if field := root.Get(path); field.Exists() && field.String() != "" {
				return field.String()
			}
		}
	}
	return string(data)
}

func truncateForError(data []byte) string {
	const limit = 512
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
