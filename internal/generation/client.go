// Package generation talks to the external image-generation service.
// The rest of the application treats it as a black box taking a prompt
// and an optional reference image and returning image bytes.
package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"polished/internal/config"
	"polished/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Generator produces image bytes from a prompt, optionally steered by a
// reference image. A stalled call blocks only the requesting operation,
// so implementations enforce a timeout.
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, prompt string, reference []byte) ([]byte, error)
}

const placeholderKey = "your_key_here"

// OpenAIClient generates images through the OpenAI images API. When a
// reference image is supplied the edits endpoint is used; otherwise a
// plain generation is requested.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIClient builds a client from configuration. The returned
// client reports Configured() == false when no usable key is present.
func NewOpenAIClient(cfg *config.Config) *OpenAIClient {
	timeout := time.Duration(cfg.GenerationTimeoutSeconds) * time.Second
	return &OpenAIClient{
		apiKey:  cfg.OpenAIAPIKey,
		baseURL: strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether the client has credentials to call out.
func (c *OpenAIClient) Configured() bool {
	return c.apiKey != "" && c.apiKey != placeholderKey
}

type imageResult struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate requests one 1024x1024 image and returns its bytes. The
// service replies with either a download URL or an inline payload.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, reference []byte) ([]byte, error) {
	ctx, span := observability.Tracer.Start(ctx, "generation.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.Bool("reference.present", reference != nil),
	)

	var (
		req *http.Request
		err error
	)
	if reference != nil {
		req, err = c.editRequest(ctx, prompt, reference)
	} else {
		req, err = c.generateRequest(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Error.Message != "" {
			span.SetStatus(codes.Error, ae.Error.Message)
			return nil, fmt.Errorf("generation service error: %s", ae.Error.Message)
		}
		span.SetStatus(codes.Error, resp.Status)
		return nil, fmt.Errorf("generation service returned %s", resp.Status)
	}

	var result imageResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("generation service returned no images")
	}

	if b64 := result.Data[0].B64JSON; b64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode inline image payload: %w", err)
		}
		return decoded, nil
	}

	return c.download(ctx, result.Data[0].URL)
}

func (c *OpenAIClient) generateRequest(ctx context.Context, prompt string) (*http.Request, error) {
	payload, err := json.Marshal(map[string]any{
		"prompt": prompt,
		"n":      1,
		"size":   "1024x1024",
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *OpenAIClient) editRequest(ctx context.Context, prompt string, reference []byte) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", "reference.png")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(reference); err != nil {
		return nil, err
	}
	for key, value := range map[string]string{
		"prompt": prompt,
		"n":      "1",
		"size":   "1024x1024",
	} {
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

func (c *OpenAIClient) download(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("generation service returned neither url nor payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
