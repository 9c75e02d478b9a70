package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/jarvis/internal/observe"
	"github.com/MrWong99/jarvis/pkg/provider/imaging"
	imagingmock "github.com/MrWong99/jarvis/pkg/provider/imaging/mock"
	"github.com/MrWong99/jarvis/pkg/provider/live"
	"github.com/MrWong99/jarvis/pkg/provider/search"
	searchmock "github.com/MrWong99/jarvis/pkg/provider/search/mock"
	"github.com/MrWong99/jarvis/pkg/types"
)

var pngResult = imaging.Image{MIMEType: "image/png", Data: []byte("png-bytes")}

func TestBuiltins_Declarations(t *testing.T) {
	t.Parallel()
	m := observe.DefaultMetrics()

	without := Builtins(&imagingmock.Provider{}, nil, m)
	if len(without) != 2 {
		t.Fatalf("Builtins without searcher = %d tools, want 2", len(without))
	}

	with := Builtins(&imagingmock.Provider{}, &searchmock.Provider{}, m)
	wantNames := []string{NameCreateIllustration, NameReimagineUser, NameSearchWeb}
	if len(with) != len(wantNames) {
		t.Fatalf("Builtins = %d tools, want %d", len(with), len(wantNames))
	}
	wantParam := map[string]string{
		NameCreateIllustration: "prompt",
		NameReimagineUser:      "prompt",
		NameSearchWeb:          "query",
	}
	for i, tool := range with {
		decl := tool.Declaration
		if decl.Name != wantNames[i] {
			t.Errorf("tool %d name = %q, want %q", i, decl.Name, wantNames[i])
		}
		if decl.Description == "" {
			t.Errorf("%s has no description", decl.Name)
		}
		req, _ := decl.Parameters["required"].([]string)
		if len(req) != 1 || req[0] != wantParam[decl.Name] {
			t.Errorf("%s required = %v, want [%s]", decl.Name, req, wantParam[decl.Name])
		}
		props, _ := decl.Parameters["properties"].(map[string]any)
		if _, ok := props[wantParam[decl.Name]]; !ok {
			t.Errorf("%s has no %q property", decl.Name, wantParam[decl.Name])
		}
	}
}

func runTool(t *testing.T, tool Tool, host *fakeHost, args map[string]any) []live.FunctionResponse {
	t.Helper()
	r := &replies{}
	d := NewDispatcher(host, []Tool{tool})
	d.Dispatch(context.Background(), []live.FunctionCall{{ID: "call-1", Name: tool.Declaration.Name, Args: args}}, r.Reply)
	wait(t, d)
	return r.Sent()
}

func TestCreateIllustration(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		img := &imagingmock.Provider{Result: pngResult}
		host := &fakeHost{}
		sent := runTool(t, CreateIllustration(img, observe.DefaultMetrics()), host, map[string]any{"prompt": "a red fox"})

		if len(sent) != 1 || sent[0].ID != "call-1" || sent[0].Response["result"] != ackIllustration {
			t.Fatalf("responses = %+v", sent)
		}
		if len(img.GenerateCalls) != 1 || img.GenerateCalls[0].Prompt != "a red fox" {
			t.Errorf("generate calls = %+v", img.GenerateCalls)
		}

		msgs := host.Messages()
		if len(msgs) != 2 {
			t.Fatalf("messages = %d, want 2: %+v", len(msgs), msgs)
		}
		if msgs[0].Role != types.RoleModel || msgs[0].Text != "Initiating visual cortex for: a red fox..." {
			t.Errorf("started message = %+v", msgs[0])
		}
		done := msgs[1]
		if done.Metadata == nil || done.Metadata.Type != types.MetadataImageGen {
			t.Fatalf("completion message = %+v", done)
		}
		if done.Metadata.Image != pngResult.DataURL() || done.Text != "a red fox" {
			t.Errorf("completion message = %+v", done)
		}
	})

	t.Run("acknowledges before generation finishes", func(t *testing.T) {
		t.Parallel()
		block := make(chan struct{})
		img := &imagingmock.Provider{Result: pngResult, Block: block}
		r := &replies{}
		d := NewDispatcher(&fakeHost{}, []Tool{CreateIllustration(img, observe.DefaultMetrics())})
		d.Dispatch(context.Background(), []live.FunctionCall{{ID: "c", Name: NameCreateIllustration, Args: map[string]any{"prompt": "x"}}}, r.Reply)

		waitUntil(t, func() bool { return len(r.Sent()) == 1 })
		close(block)
		wait(t, d)
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()
		img := &imagingmock.Provider{GenerateErr: errors.New("quota")}
		host := &fakeHost{}
		sent := runTool(t, CreateIllustration(img, observe.DefaultMetrics()), host, map[string]any{"prompt": "a red fox"})

		if len(sent) != 1 || sent[0].Response["result"] != ackIllustration {
			t.Errorf("responses = %+v, want only the acknowledgement", sent)
		}
		msgs := host.Messages()
		last := msgs[len(msgs)-1]
		if last.Metadata == nil || last.Metadata.Type != types.MetadataError || !strings.Contains(last.Metadata.Error, "quota") {
			t.Errorf("failure message = %+v", last)
		}
	})
}

func TestReimagineUser(t *testing.T) {
	t.Parallel()

	t.Run("missing frame", func(t *testing.T) {
		t.Parallel()
		img := &imagingmock.Provider{Result: pngResult}
		host := &fakeHost{}
		sent := runTool(t, ReimagineUser(img, observe.DefaultMetrics()), host, map[string]any{"prompt": "as a knight"})

		if len(sent) != 1 || sent[0].Response["error"] != errNoCameraFrame {
			t.Errorf("responses = %+v", sent)
		}
		if _, transforms := img.Calls(); transforms != 0 {
			t.Errorf("transform calls = %d, want 0", transforms)
		}
		msgs := host.Messages()
		if len(msgs) != 1 || msgs[0].Role != types.RoleSystem || msgs[0].Text != "Error: Camera frame missing." {
			t.Errorf("messages = %+v", msgs)
		}
	})

	t.Run("default prompt", func(t *testing.T) {
		t.Parallel()
		img := &imagingmock.Provider{Result: pngResult}
		host := &fakeHost{frame: []byte("jpeg")}
		sent := runTool(t, ReimagineUser(img, observe.DefaultMetrics()), host, nil)

		if len(sent) != 1 || sent[0].Response["result"] != ackReimagine {
			t.Fatalf("responses = %+v", sent)
		}
		if len(img.TransformCalls) != 1 {
			t.Fatalf("transform calls = %d, want 1", len(img.TransformCalls))
		}
		call := img.TransformCalls[0]
		if call.Prompt != DefaultReimaginePrompt {
			t.Errorf("prompt = %q, want default", call.Prompt)
		}
		if string(call.Source.Data) != "jpeg" || call.Source.MIMEType != "image/jpeg" {
			t.Errorf("source = %+v", call.Source)
		}

		msgs := host.Messages()
		if len(msgs) != 2 {
			t.Fatalf("messages = %d, want 2", len(msgs))
		}
		if want := `Processing your image with prompt: "` + DefaultReimaginePrompt + `"...`; msgs[0].Text != want {
			t.Errorf("started text = %q, want %q", msgs[0].Text, want)
		}
		if msgs[1].Metadata == nil || msgs[1].Metadata.Type != types.MetadataReimagine || msgs[1].Metadata.Image != pngResult.DataURL() {
			t.Errorf("completion message = %+v", msgs[1])
		}
	})

	t.Run("transform failure", func(t *testing.T) {
		t.Parallel()
		img := &imagingmock.Provider{TransformErr: errors.New("rejected")}
		host := &fakeHost{frame: []byte("jpeg")}
		sent := runTool(t, ReimagineUser(img, observe.DefaultMetrics()), host, map[string]any{"prompt": "as a knight"})

		if len(sent) != 1 || sent[0].Response["result"] != ackReimagine {
			t.Errorf("responses = %+v", sent)
		}
		msgs := host.Messages()
		if last := msgs[len(msgs)-1]; last.Metadata == nil || last.Metadata.Type != types.MetadataError {
			t.Errorf("failure message = %+v", last)
		}
	})
}

func TestSearchWeb(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		s := &searchmock.Provider{Result: search.Result{
			Text:    "It is sunny.",
			Sources: []search.Source{{Title: "Weather", URI: "https://weather.example"}},
		}}
		host := &fakeHost{}
		sent := runTool(t, SearchWeb(s, observe.DefaultMetrics()), host, map[string]any{"query": "weather"})

		if len(sent) != 1 || sent[0].Response["result"] != "It is sunny." {
			t.Fatalf("responses = %+v", sent)
		}
		if len(s.Queries) != 1 || s.Queries[0] != "weather" {
			t.Errorf("queries = %v", s.Queries)
		}
		msgs := host.Messages()
		if len(msgs) != 1 || msgs[0].Metadata == nil || msgs[0].Metadata.Type != types.MetadataSearch {
			t.Fatalf("messages = %+v", msgs)
		}
		if src := msgs[0].Metadata.Sources; len(src) != 1 || src[0].URI != "https://weather.example" {
			t.Errorf("sources = %+v", src)
		}
	})

	t.Run("empty answer", func(t *testing.T) {
		t.Parallel()
		host := &fakeHost{}
		sent := runTool(t, SearchWeb(&searchmock.Provider{}, observe.DefaultMetrics()), host, map[string]any{"query": "q"})
		if len(sent) != 1 || sent[0].Response["result"] != searchFallback {
			t.Errorf("responses = %+v", sent)
		}
		if n := len(host.Messages()); n != 0 {
			t.Errorf("messages = %d, want 0", n)
		}
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()
		host := &fakeHost{}
		sent := runTool(t, SearchWeb(&searchmock.Provider{Err: errors.New("offline")}, observe.DefaultMetrics()), host, map[string]any{"query": "q"})
		if len(sent) != 1 || sent[0].Response["error"] != searchFailedReply {
			t.Errorf("responses = %+v", sent)
		}
		msgs := host.Messages()
		if len(msgs) != 1 || msgs[0].Metadata == nil || msgs[0].Metadata.Type != types.MetadataError {
			t.Errorf("messages = %+v", msgs)
		}
	})
}
