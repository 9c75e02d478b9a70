// Package mock provides a test double for imaging.Provider.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/jarvis/pkg/provider/imaging"
)

// GenerateCall records a single invocation of Provider.Generate.
type GenerateCall struct {
	Prompt string
}

// TransformCall records a single invocation of Provider.Transform.
type TransformCall struct {
	Source imaging.Image
	Prompt string
}

// Provider is a mock implementation of imaging.Provider.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Result is returned by Generate and Transform.
	Result imaging.Image

	// GenerateErr, if non-nil, is returned by Generate.
	GenerateErr error

	// TransformErr, if non-nil, is returned by Transform.
	TransformErr error

	// Block, if non-nil, makes every call wait until it is closed or ctx ends.
	Block chan struct{}

	GenerateCalls  []GenerateCall
	TransformCalls []TransformCall
}

func (p *Provider) wait(ctx context.Context) error {
	p.mu.Lock()
	block := p.Block
	p.mu.Unlock()
	if block == nil {
		return nil
	}
	select {
	case <-block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Generate records the call and returns Result, GenerateErr.
func (p *Provider) Generate(ctx context.Context, prompt string) (imaging.Image, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Prompt: prompt})
	p.mu.Unlock()

	if err := p.wait(ctx); err != nil {
		return imaging.Image{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.GenerateErr != nil {
		return imaging.Image{}, p.GenerateErr
	}
	return p.Result, nil
}

// Transform records the call and returns Result, TransformErr.
func (p *Provider) Transform(ctx context.Context, src imaging.Image, prompt string) (imaging.Image, error) {
	p.mu.Lock()
	p.TransformCalls = append(p.TransformCalls, TransformCall{Source: src, Prompt: prompt})
	p.mu.Unlock()

	if err := p.wait(ctx); err != nil {
		return imaging.Image{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TransformErr != nil {
		return imaging.Image{}, p.TransformErr
	}
	return p.Result, nil
}

// Name returns ProviderName or "mock".
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Calls returns the number of Generate and Transform calls.
func (p *Provider) Calls() (generate, transform int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.GenerateCalls), len(p.TransformCalls)
}

var _ imaging.Provider = (*Provider)(nil)
