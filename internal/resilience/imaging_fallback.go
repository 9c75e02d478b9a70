package resilience

import (
	"context"

	"github.com/MrWong99/jarvis/pkg/provider/imaging"
)

// ImagingFallback implements [imaging.Provider] with failover across several
// image backends.
type ImagingFallback struct {
	group *FallbackGroup[imaging.Provider]
}

var _ imaging.Provider = (*ImagingFallback)(nil)

// NewImagingFallback creates an [ImagingFallback] with primary as the
// preferred backend.
func NewImagingFallback(primary imaging.Provider, cfg CircuitBreakerConfig) *ImagingFallback {
	return &ImagingFallback{group: NewFallbackGroup(primary, primary.Name(), cfg)}
}

// AddFallback registers another backend.
func (f *ImagingFallback) AddFallback(p imaging.Provider) {
	f.group.Add(p.Name(), p)
}

// Name lists the backends in try order.
func (f *ImagingFallback) Name() string {
	names := f.group.Names()
	out := names[0]
	for _, n := range names[1:] {
		out += "|" + n
	}
	return out
}

// Generate implements imaging.Provider.
func (f *ImagingFallback) Generate(ctx context.Context, prompt string) (imaging.Image, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p imaging.Provider) (imaging.Image, error) {
		return p.Generate(ctx, prompt)
	})
}

// Transform implements imaging.Provider.
func (f *ImagingFallback) Transform(ctx context.Context, src imaging.Image, prompt string) (imaging.Image, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p imaging.Provider) (imaging.Image, error) {
		return p.Transform(ctx, src, prompt)
	})
}
