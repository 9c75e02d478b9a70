package gemini

import (
	"log/slog"

	"github.com/MrWong99/jarvis/pkg/audio"
	"github.com/MrWong99/jarvis/pkg/provider/live"
)

// ── Outbound wire types ────────────────────────────────────────────────────────

type setupMessage struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *content         `json:"systemInstruction,omitempty"`
	Tools                    []geminiTool     `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}        `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}        `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type geminiTool struct {
	GoogleSearch         *struct{}             `json:"googleSearch,omitempty"`
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations,omitempty"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type clientContentMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

type toolResponseMessage struct {
	ToolResponse toolResponse `json:"toolResponse"`
}

type toolResponse struct {
	FunctionResponses []functionResponse `json:"functionResponses"`
}

type functionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ── Inbound wire types ─────────────────────────────────────────────────────────

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	ToolCall      *toolCall      `json:"toolCall,omitempty"`
	Error         *serverError   `json:"error,omitempty"`
}

type serverContent struct {
	ModelTurn           *modelTurn         `json:"modelTurn,omitempty"`
	TurnComplete        bool               `json:"turnComplete,omitempty"`
	Interrupted         bool               `json:"interrupted,omitempty"`
	InputTranscription  *transcription     `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription     `json:"outputTranscription,omitempty"`
	GroundingMetadata   *groundingMetadata `json:"groundingMetadata,omitempty"`
}

type modelTurn struct {
	Parts             []part             `json:"parts"`
	GroundingMetadata *groundingMetadata `json:"groundingMetadata,omitempty"`
}

type transcription struct {
	Text string `json:"text"`
}

type groundingMetadata struct {
	GroundingChunks []groundingChunk `json:"groundingChunks,omitempty"`
}

type groundingChunk struct {
	Web *webChunk `json:"web,omitempty"`
}

type webChunk struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type toolCall struct {
	FunctionCalls []functionCall `json:"functionCalls"`
}

type functionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type serverError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// decode converts a raw frame into a live.ServerMessage. It reports false for
// frames that carry nothing the session understands.
func decode(raw *serverMessage) (live.ServerMessage, bool) {
	var msg live.ServerMessage
	known := false

	if raw.SetupComplete != nil {
		msg.SetupComplete = true
		known = true
	}

	if raw.ToolCall != nil && len(raw.ToolCall.FunctionCalls) > 0 {
		msg.ToolCalls = make([]live.FunctionCall, len(raw.ToolCall.FunctionCalls))
		for i, fc := range raw.ToolCall.FunctionCalls {
			msg.ToolCalls[i] = live.FunctionCall{ID: fc.ID, Name: fc.Name, Args: fc.Args}
		}
		known = true
	}

	if raw.Error != nil {
		msg.Error = raw.Error.Message
		known = true
	}

	if sc := raw.ServerContent; sc != nil {
		known = true
		msg.Interrupted = sc.Interrupted
		msg.TurnComplete = sc.TurnComplete
		if sc.InputTranscription != nil {
			msg.InputTranscript = sc.InputTranscription.Text
		}
		if sc.OutputTranscription != nil {
			msg.OutputTranscript = sc.OutputTranscription.Text
		}

		gm := sc.GroundingMetadata
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				lp := live.Part{Text: p.Text}
				if p.InlineData != nil {
					data, err := audio.DecodeBase64(p.InlineData.Data)
					if err != nil {
						slog.Debug("gemini: dropping undecodable inline data", "err", err)
						if p.Text == "" {
							continue
						}
					} else {
						lp.InlineData = &live.Blob{MIMEType: p.InlineData.MIMEType, Data: data}
					}
				}
				msg.Parts = append(msg.Parts, lp)
			}
			if gm == nil {
				gm = sc.ModelTurn.GroundingMetadata
			}
		}
		if gm != nil {
			g := &live.Grounding{}
			for _, c := range gm.GroundingChunks {
				if c.Web == nil || c.Web.URI == "" || c.Web.Title == "" {
					continue
				}
				g.Sources = append(g.Sources, live.GroundingSource{Title: c.Web.Title, URI: c.Web.URI})
			}
			if len(g.Sources) > 0 {
				msg.Grounding = g
			}
		}
	}

	return msg, known
}
