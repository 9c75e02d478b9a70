package gemini_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/jarvis/pkg/provider/search/gemini"
)

func TestSearch_ExtractsSources(t *testing.T) {
	t.Parallel()

	bodies := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- string(b)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": "It is sunny in Berlin."}},
				},
				"groundingMetadata": map[string]any{
					"groundingChunks": []any{
						map[string]any{"web": map[string]any{"uri": "https://weather.example/berlin", "title": "Weather"}},
						map[string]any{"web": map[string]any{"uri": "https://weather.example/berlin", "title": "Duplicate"}},
						map[string]any{"web": map[string]any{"uri": "https://news.example", "title": "News"}},
					},
				},
			}},
		})
	}))
	defer srv.Close()

	p, err := gemini.New(context.Background(), "key", "", gemini.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Search(context.Background(), "weather in berlin")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Text != "It is sunny in Berlin." {
		t.Errorf("Text = %q", res.Text)
	}
	if len(res.Sources) != 2 {
		t.Fatalf("Sources = %+v; want 2 deduplicated", res.Sources)
	}
	if res.Sources[0].Title != "Weather" || res.Sources[1].URI != "https://news.example" {
		t.Errorf("Sources = %+v", res.Sources)
	}
	if body := <-bodies; !strings.Contains(body, "googleSearch") {
		t.Errorf("request does not enable googleSearch: %s", body)
	}
}

func TestNew_RequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := gemini.New(context.Background(), "", ""); err == nil {
		t.Fatal("expected error")
	}
}
