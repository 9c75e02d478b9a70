// Package gemini implements search.Provider using Gemini's Google Search
// grounding tool.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/MrWong99/jarvis/pkg/provider/search"
)

// DefaultModel is the text model used for grounded searches.
const DefaultModel = "gemini-2.0-flash"

var _ search.Provider = (*Provider)(nil)

// Provider implements search.Provider.
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
		return nil, fmt.Errorf("gemini search: apiKey must not be empty")
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
		return nil, fmt.Errorf("gemini search: new client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Search implements search.Provider.
func (p *Provider) Search(ctx context.Context, query string) (search.Result, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(query), &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return search.Result{}, fmt.Errorf("gemini search: generate content: %w", err)
	}

	res := search.Result{Text: resp.Text()}
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		seen := make(map[string]bool)
		for _, c := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
			if c == nil || c.Web == nil || c.Web.URI == "" || seen[c.Web.URI] {
				continue
			}
			seen[c.Web.URI] = true
			res.Sources = append(res.Sources, search.Source{Title: c.Web.Title, URI: c.Web.URI})
		}
	}
	return res, nil
}
