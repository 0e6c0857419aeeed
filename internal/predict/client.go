// Package predict talks to the remote prediction backend: it posts the
// feature set and decodes the risk probability.
package predict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
	"time"

	"heart-risk-dashboard/internal/common/config"
	commonhttp "heart-risk-dashboard/internal/common/http"
	"heart-risk-dashboard/internal/common/logger"
	"heart-risk-dashboard/internal/common/validation"
	"heart-risk-dashboard/internal/schema"
)

var (
	// ErrRequestFailure means the backend answered, but not with a usable
	// prediction (non-2xx status or a body of the wrong shape).
	ErrRequestFailure = errors.New("REQUEST_FAILURE")
	// ErrTransportFailure means no answer arrived at all.
	ErrTransportFailure = errors.New("TRANSPORT_FAILURE")
)

// maxResponseBytes bounds the body read; the backend's inline plot is a few
// hundred kilobytes.
const maxResponseBytes = 8 << 20

const maxSnippetRunes = 200

type Client struct {
	http       *commonhttp.Client
	baseURL    string
	predictURL string
	assetsURL  string
	schema     *schema.Schema
	validator  *validation.Validator
	logger     logger.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *commonhttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSchema makes Predict check the outbound payload before sending it.
func WithSchema(s *schema.Schema) Option {
	return func(c *Client) { c.schema = s }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(cfg config.PredictionConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:    cfg.BaseURL,
		predictURL: cfg.PredictURL(),
		assetsURL:  cfg.AssetsURL(),
		validator:  validation.MustCompile(responseSchema),
		logger:     logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = commonhttp.NewClient(config.GetDuration(cfg.Timeout))
	}
	return c
}

// BaseURL is the backend origin, used in user-facing failure text.
func (c *Client) BaseURL() string { return c.baseURL }

// Predict sends one prediction request. It does not retry.
func (c *Client) Predict(ctx context.Context, features schema.Values) (Response, error) {
	if c.schema != nil {
		if err := c.schema.ValidatePayload(features); err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrRequestFailure, err)
		}
	}

	start := time.Now()
	resp, err := c.http.PostJSON(ctx, c.predictURL, Request{Features: features})
	if err != nil {
		c.logger.Warn("Prediction request did not complete", map[string]interface{}{
			"url":   c.predictURL,
			"error": err,
		})
		return Response{}, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read response: %v", ErrTransportFailure, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn("Prediction backend returned an error status", map[string]interface{}{
			"url":    c.predictURL,
			"status": resp.StatusCode,
		})
		return Response{}, fmt.Errorf("%w: status %d: %s", ErrRequestFailure, resp.StatusCode, snippet(body))
	}

	result, err := c.validator.ValidateJSON(body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrRequestFailure, err)
	}
	if !result.Valid {
		for _, key := range responseKeys {
			if !result.HasErrors(key) {
				continue
			}
			for _, fe := range result.GetErrorsForField(key) {
				c.logger.Warn("Prediction response field rejected", map[string]interface{}{
					"url":   c.predictURL,
					"field": key,
					"code":  fe.Code,
					"error": fe.Message,
				})
			}
		}
		return Response{}, fmt.Errorf("%w: unexpected response: %s", ErrRequestFailure, result.Error())
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return Response{}, fmt.Errorf("%w: decode response: %v", ErrRequestFailure, err)
	}

	c.logger.Debug("Prediction received", map[string]interface{}{
		"prob":        out.Prob,
		"is_risk":     out.IsRisk,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return out, nil
}

// AssetURL resolves a static asset name against the backend's assets path.
func (c *Client) AssetURL(name string) string {
	return c.assetsURL + strings.TrimPrefix(name, "/")
}

// Gallery lists the diagnostic plots with their resolved URLs.
func (c *Client) Gallery() []Image {
	images := make([]Image, len(GalleryImages))
	for i, name := range GalleryImages {
		images[i] = Image{
			Name: name,
			Alt:  strings.TrimSuffix(name, ".png"),
			URL:  c.AssetURL(name),
		}
	}
	return images
}

// snippet shortens an error body to at most maxSnippetRunes runes.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if utf8.RuneCountInString(s) <= maxSnippetRunes {
		return s
	}
	return string([]rune(s)[:maxSnippetRunes]) + "..."
}
