// Package imaging defines the Provider interface for image generation.
//
// Two operations are supported: Generate creates an image from a text prompt,
// Transform re-renders an existing image (typically a camera frame) guided by
// a prompt. Results are raw encoded bytes plus a MIME type; [Image.DataURL]
// turns them into something a UI can display directly.
//
// Implementations must be safe for concurrent use.
package imaging

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrNoImage is returned when the backend answered but produced no image.
var ErrNoImage = errors.New("imaging: no image in response")

// Image is an encoded image.
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURL returns the image as a data: URL. An empty MIME type is reported as
// image/png.
func (i Image) DataURL() string {
	mt := i.MIMEType
	if mt == "" {
		mt = "image/png"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// ParseDataURL decodes a data:<mime>;base64,<payload> URL. Input without the
// data: prefix is treated as bare base64 with MIME type fallback.
func ParseDataURL(s, fallback string) (Image, error) {
	mt := fallback
	payload := s
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found {
			return Image{}, errors.New("imaging: malformed data URL")
		}
		payload = data
		if m, _, _ := strings.Cut(header, ";"); m != "" {
			mt = m
		}
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, err
	}
	return Image{MIMEType: mt, Data: b}, nil
}

// Provider generates images.
type Provider interface {
	// Generate produces an image from prompt.
	Generate(ctx context.Context, prompt string) (Image, error)

	// Transform produces a new image from src, steered by prompt.
	Transform(ctx context.Context, src Image, prompt string) (Image, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}
