// Package gemini implements imaging.Provider on the Gemini generateContent API
// using image-capable models.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/MrWong99/jarvis/pkg/provider/imaging"
)

// DefaultModel is the image model used when none is configured.
const DefaultModel = "gemini-3-pro-image-preview"

var _ imaging.Provider = (*Provider)(nil)

// Provider implements imaging.Provider with google.golang.org/genai.
type Provider struct {
	client *genai.Client
	model  string
}

type config struct {
	baseURL string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// New creates a Provider. If model is empty, DefaultModel is used.
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini imaging: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini imaging: new client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Name implements imaging.Provider.
func (p *Provider) Name() string { return "gemini:" + p.model }

// Generate implements imaging.Provider.
func (p *Provider) Generate(ctx context.Context, prompt string) (imaging.Image, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	return p.generate(ctx, parts)
}

// Transform implements imaging.Provider. The source image is sent inline
// ahead of the prompt.
func (p *Provider) Transform(ctx context.Context, src imaging.Image, prompt string) (imaging.Image, error) {
	mt := src.MIMEType
	if mt == "" {
		mt = "image/jpeg"
	}
	parts := []*genai.Part{
		genai.NewPartFromBytes(src.Data, mt),
		genai.NewPartFromText(prompt),
	}
	return p.generate(ctx, parts)
}

func (p *Provider) generate(ctx context.Context, parts []*genai.Part) (imaging.Image, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return imaging.Image{}, fmt.Errorf("gemini imaging: generate content: %w", err)
	}
	return firstImage(resp)
}

// firstImage returns the first inline image part of the first candidate.
func firstImage(resp *genai.GenerateContentResponse) (imaging.Image, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return imaging.Image{}, imaging.ErrNoImage
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		if mt := part.InlineData.MIMEType; mt == "" || strings.HasPrefix(mt, "image/") {
			return imaging.Image{MIMEType: mt, Data: part.InlineData.Data}, nil
		}
	}
	return imaging.Image{}, imaging.ErrNoImage
}
