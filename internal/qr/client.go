package qr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Generator renders a QR code image for a payload. The production
// implementation is an external rate-limited HTTP API; the core treats it
// as an opaque, retryable call.
type Generator interface {
	GenerateQR(ctx context.Context, payload string) ([]byte, error)
}

// HTTPGeneratorConfig holds settings for the HTTP QR render client.
type HTTPGeneratorConfig struct {
	BaseURL     string
	SizePixels  int
	CallTimeout time.Duration
}

// HTTPGenerator calls a QR render API that returns PNG bytes.
type HTTPGenerator struct {
	baseURL string
	size    int
	client  *http.Client
}

// NewHTTPGenerator creates a QR render client with sane defaults.
func NewHTTPGenerator(cfg HTTPGeneratorConfig) *HTTPGenerator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.qrserver.com/v1/create-qr-code/"
	}
	if cfg.SizePixels == 0 {
		cfg.SizePixels = 400
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	return &HTTPGenerator{
		baseURL: cfg.BaseURL,
		size:    cfg.SizePixels,
		client:  &http.Client{Timeout: cfg.CallTimeout},
	}
}

// GenerateQR fetches one rendered QR image. The context bounds the call
// independently of the client-level timeout so a job deadline cancels
// in-flight renders.
func (g *HTTPGenerator) GenerateQR(ctx context.Context, payload string) ([]byte, error) {
	params := url.Values{}
	params.Set("data", payload)
	params.Set("size", fmt.Sprintf("%dx%d", g.size, g.size))
	params.Set("format", "png")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build QR request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("QR render call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("QR render API returned status %d", resp.StatusCode)
	}

	img, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read QR image: %w", err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("QR render API returned an empty image")
	}
	return img, nil
}

// Ensure HTTPGenerator implements Generator
var _ Generator = (*HTTPGenerator)(nil)
