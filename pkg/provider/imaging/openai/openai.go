// Package openai provides an imaging provider backed by the OpenAI Images API.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/jarvis/pkg/provider/imaging"
)

// DefaultModel is the default OpenAI image model.
const DefaultModel = "gpt-image-1"

// Ensure Provider implements the imaging.Provider interface.
var _ imaging.Provider = (*Provider)(nil)

// Provider implements imaging.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs an OpenAI imaging Provider.
// If model is empty, DefaultModel (gpt-image-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai imaging: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Name implements imaging.Provider.
func (p *Provider) Name() string { return "openai:" + p.model }

// Generate implements imaging.Provider.
func (p *Provider) Generate(ctx context.Context, prompt string) (imaging.Image, error) {
	params := oai.ImageGenerateParams{
		Prompt: prompt,
		Model:  oai.ImageModel(p.model),
	}
	if legacyModel(p.model) {
		params.ResponseFormat = oai.ImageGenerateParamsResponseFormatB64JSON
	}
	resp, err := p.client.Images.Generate(ctx, params)
	if err != nil {
		return imaging.Image{}, fmt.Errorf("openai imaging: generate: %w", err)
	}
	return decode(resp)
}

// Transform implements imaging.Provider via the image edit endpoint.
func (p *Provider) Transform(ctx context.Context, src imaging.Image, prompt string) (imaging.Image, error) {
	mt := src.MIMEType
	if mt == "" {
		mt = "image/jpeg"
	}
	params := oai.ImageEditParams{
		Image: oai.ImageEditParamsImageUnion{
			OfFile: oai.File(bytes.NewReader(src.Data), "frame"+extension(mt), mt),
		},
		Prompt: prompt,
		Model:  oai.ImageModel(p.model),
	}
	if legacyModel(p.model) {
		params.ResponseFormat = oai.ImageEditParamsResponseFormatB64JSON
	}
	resp, err := p.client.Images.Edit(ctx, params)
	if err != nil {
		return imaging.Image{}, fmt.Errorf("openai imaging: edit: %w", err)
	}
	return decode(resp)
}

// decode extracts the first base64 image from resp.
func decode(resp *oai.ImagesResponse) (imaging.Image, error) {
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return imaging.Image{}, imaging.ErrNoImage
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return imaging.Image{}, fmt.Errorf("openai imaging: decode b64_json: %w", err)
	}
	return imaging.Image{MIMEType: "image/png", Data: data}, nil
}

// legacyModel reports whether model only returns base64 when asked to.
func legacyModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "dall-e")
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
