package gemini_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/jarvis/pkg/provider/imaging"
	"github.com/MrWong99/jarvis/pkg/provider/imaging/gemini"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// startServer serves generateContent requests. The handler receives the
// decoded request body and returns the response body.
func startServer(t *testing.T, respond func(path string, req map[string]any) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(respond(r.URL.Path, req))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func imageResponse() map[string]any {
	return map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role": "model",
				"parts": []any{
					map[string]any{"text": "here is your image"},
					map[string]any{"inlineData": map[string]any{
						"mimeType": "image/png",
						"data":     base64.StdEncoding.EncodeToString(pngBytes),
					}},
				},
			},
		}},
	}
}

func TestNew_RequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := gemini.New(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	paths := make(chan string, 1)
	reqs := make(chan map[string]any, 1)
	srv := startServer(t, func(path string, req map[string]any) any {
		paths <- path
		reqs <- req
		return imageResponse()
	})

	p, err := gemini.New(context.Background(), "key", "", gemini.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Name() != "gemini:gemini-3-pro-image-preview" {
		t.Errorf("Name() = %q", p.Name())
	}

	img, err := p.Generate(context.Background(), "a red fox")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if img.MIMEType != "image/png" || !bytes.Equal(img.Data, pngBytes) {
		t.Errorf("image = %+v", img)
	}
	if path := <-paths; !strings.Contains(path, "gemini-3-pro-image-preview:generateContent") {
		t.Errorf("path = %q", path)
	}
	raw, _ := json.Marshal(<-reqs)
	if !strings.Contains(string(raw), "a red fox") {
		t.Errorf("request does not carry the prompt: %s", raw)
	}
}

func TestTransform_SendsSourceImage(t *testing.T) {
	t.Parallel()

	reqs := make(chan map[string]any, 1)
	srv := startServer(t, func(_ string, req map[string]any) any {
		reqs <- req
		return imageResponse()
	})

	p, err := gemini.New(context.Background(), "key", "custom", gemini.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	src := imaging.Image{MIMEType: "image/jpeg", Data: []byte{0xFF, 0xD8}}
	if _, err := p.Transform(context.Background(), src, "as a pirate"); err != nil {
		t.Fatalf("Transform: %v", err)
	}

	raw, _ := json.Marshal(<-reqs)
	if !strings.Contains(string(raw), base64.StdEncoding.EncodeToString(src.Data)) {
		t.Errorf("request does not carry the source image: %s", raw)
	}
	if !strings.Contains(string(raw), "image/jpeg") {
		t.Errorf("request does not carry the source MIME type: %s", raw)
	}
}

func TestGenerate_NoImage(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(string, map[string]any) any {
		return map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": "I cannot draw that"}}},
			}},
		}
	})
	p, err := gemini.New(context.Background(), "key", "", gemini.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Generate(context.Background(), "x"); !errors.Is(err, imaging.ErrNoImage) {
		t.Errorf("err = %v; want ErrNoImage", err)
	}
}
