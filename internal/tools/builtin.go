package tools

import (
	"context"
	"fmt"

	"github.com/MrWong99/jarvis/internal/observe"
	"github.com/MrWong99/jarvis/internal/session"
	"github.com/MrWong99/jarvis/pkg/provider/imaging"
	"github.com/MrWong99/jarvis/pkg/provider/live"
	"github.com/MrWong99/jarvis/pkg/provider/search"
	"github.com/MrWong99/jarvis/pkg/types"
)

// Tool names.
const (
	NameCreateIllustration = "create_illustration"
	NameReimagineUser      = "reimagine_user"
	NameSearchWeb          = "search_web"
)

// DefaultReimaginePrompt is used when reimagine_user is called without one.
const DefaultReimaginePrompt = "A high quality professional portrait of the person"

// Responses sent to the model.
const (
	ackIllustration   = "Image generation started. Inform user it will be ready shortly."
	ackReimagine      = "Photo captured and processing."
	errNoCameraFrame  = "Camera frame not available."
	searchFallback    = "I found some information."
	searchFailedReply = "I'm sorry, I encountered an error while searching."
)

// promptSchema is an object with a single required string property.
func promptSchema(key, description string) map[string]any {
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			key: map[string]any{"type": "STRING", "description": description},
		},
		"required": []string{key},
	}
}

// Builtins returns the standard tool set. search_web is only included when
// searcher is non-nil.
func Builtins(images imaging.Provider, searcher search.Provider, m *observe.Metrics) []Tool {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	out := []Tool{
		CreateIllustration(images, m),
		ReimagineUser(images, m),
	}
	if searcher != nil {
		out = append(out, SearchWeb(searcher, m))
	}
	return out
}

// CreateIllustration generates an image from a prompt. The model gets an
// immediate acknowledgement; the image is delivered to the UI when ready.
func CreateIllustration(images imaging.Provider, m *observe.Metrics) Tool {
	return Tool{
		Declaration: live.FunctionDeclaration{
			Name:        NameCreateIllustration,
			Description: "Create an illustration or image based on a description. Use this tool whenever the user asks to generate, create, or draw an image from scratch.",
			Parameters:  promptSchema("prompt", "Detailed description of the image to create."),
		},
		Handler: func(ctx context.Context, inv *Invocation) error {
			prompt := inv.String("prompt")
			inv.Emit(types.Message{Role: types.RoleModel, Text: fmt.Sprintf("Initiating visual cortex for: %s...", prompt)})
			_ = inv.Reply(map[string]any{"result": ackIllustration})

			img, err := images.Generate(ctx, prompt)
			recordProvider(ctx, m, images.Name(), "generate", err)
			if err != nil {
				inv.Emit(toolError("Error: Failed to generate image.", err))
				return failed(NameCreateIllustration, err)
			}
			inv.Emit(types.Message{
				Role:     types.RoleSystem,
				Text:     prompt,
				Metadata: &types.Metadata{Type: types.MetadataImageGen, Image: img.DataURL()},
			})
			return nil
		},
	}
}

// ReimagineUser re-renders the cached camera frame. It fails immediately when
// no frame has been cached.
func ReimagineUser(images imaging.Provider, m *observe.Metrics) Tool {
	return Tool{
		Declaration: live.FunctionDeclaration{
			Name:        NameReimagineUser,
			Description: "Captures the current view from the user's camera to create a new AI-generated image based on it. Use this tool for: 'take a photo of me', 'take a picture', 'capture me', 'selfie', 'make me look like...', 'turn me into...', or 'reimagine this scene'.",
			Parameters: promptSchema("prompt",
				"The visual description for the new image. If the user simply asks to 'take a photo' without specifying a style, use '"+DefaultReimaginePrompt+"'."),
		},
		Handler: func(ctx context.Context, inv *Invocation) error {
			frame, ok := inv.Host().CameraFrame()
			if !ok {
				_ = inv.Reply(errorResponse(errNoCameraFrame))
				inv.Emit(types.Message{Role: types.RoleSystem, Text: "Error: Camera frame missing."})
				return failed(NameReimagineUser, session.ErrCameraFrameUnavailable)
			}

			prompt := inv.String("prompt")
			if prompt == "" {
				prompt = DefaultReimaginePrompt
			}
			inv.Emit(types.Message{Role: types.RoleModel, Text: fmt.Sprintf("Processing your image with prompt: \"%s\"...", prompt)})
			_ = inv.Reply(map[string]any{"result": ackReimagine})

			img, err := images.Transform(ctx, imaging.Image{MIMEType: "image/jpeg", Data: frame}, prompt)
			recordProvider(ctx, m, images.Name(), "transform", err)
			if err != nil {
				inv.Emit(toolError("Error: Failed to reimagine image.", err))
				return failed(NameReimagineUser, err)
			}
			inv.Emit(types.Message{
				Role:     types.RoleSystem,
				Text:     prompt,
				Metadata: &types.Metadata{Type: types.MetadataReimagine, Image: img.DataURL()},
			})
			return nil
		},
	}
}

// SearchWeb runs a grounded web search. The response is sent once the search
// completes and the sources are shown in the UI.
func SearchWeb(searcher search.Provider, m *observe.Metrics) Tool {
	return Tool{
		Declaration: live.FunctionDeclaration{
			Name:        NameSearchWeb,
			Description: "Search the web for current events, facts or anything that needs up-to-date information.",
			Parameters:  promptSchema("query", "The search query."),
		},
		Handler: func(ctx context.Context, inv *Invocation) error {
			query := inv.String("query")
			res, err := searcher.Search(ctx, query)
			recordProvider(ctx, m, "search", "search", err)
			if err != nil {
				_ = inv.Reply(errorResponse(searchFailedReply))
				inv.Emit(toolError("Error: Search failed.", err))
				return failed(NameSearchWeb, err)
			}

			text := res.Text
			if text == "" {
				text = searchFallback
			}
			_ = inv.Reply(map[string]any{"result": text})

			if len(res.Sources) > 0 {
				sources := make([]types.Source, len(res.Sources))
				for i, s := range res.Sources {
					sources[i] = types.Source{Title: s.Title, URI: s.URI}
				}
				inv.Emit(types.Message{
					Role:     types.RoleSystem,
					Text:     session.GroundingText,
					Metadata: &types.Metadata{Type: types.MetadataSearch, Sources: sources},
				})
			}
			return nil
		},
	}
}

func recordProvider(ctx context.Context, m *observe.Metrics, provider, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RecordProviderRequest(ctx, provider, kind, status)
}
