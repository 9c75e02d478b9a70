// Package gemini implements live.Provider for Google's Gemini Live API.
//
// It opens a WebSocket to the BidiGenerateContent endpoint and exchanges JSON
// messages: one setup message, then realtimeInput media chunks, clientContent
// turns and toolResponse messages upstream, and serverContent / toolCall
// messages downstream. Binary payloads travel base64-encoded.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/jarvis/pkg/audio"
	"github.com/MrWong99/jarvis/pkg/provider/live"
)

// Compile-time assertions that Provider and session satisfy the live interfaces.
var (
	_ live.Provider = (*Provider)(nil)
	_ live.Conn     = (*session)(nil)
)

const (
	defaultModel   = "gemini-2.0-flash-exp"
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"

	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second
	writeTimeout      = 10 * time.Second

	// Inbound model audio chunks can exceed the library's 32 KiB default.
	readLimit = 16 << 20
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Gemini model used for sessions.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithHTTPClient sets the HTTP client used for the WebSocket handshake.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// ── Provider ───────────────────────────────────────────────────────────────────

// Provider implements live.Provider for the Gemini Live API.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// New creates a Gemini Live Provider with the given API key and options.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Model returns the configured model name.
func (p *Provider) Model() string { return p.model }

// Connect dials the endpoint and sends the setup message. The session is
// usable as soon as Connect returns; setupComplete arrives later on Messages.
func (p *Provider) Connect(ctx context.Context, cfg live.SessionConfig) (live.Conn, error) {
	wsURL := fmt.Sprintf(
		"%s/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent?key=%s",
		p.baseURL, p.apiKey,
	)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: p.httpClient,
		HTTPHeader: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: dial: %w", err)
	}
	conn.SetReadLimit(readLimit)

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		conn:     conn,
		messages: make(chan live.ServerMessage, 64),
		done:     make(chan struct{}),
		ctx:      sessCtx,
		cancel:   sessCancel,
	}

	if err := sess.writeJSON(buildSetup(p.model, cfg)); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "setup failed")
		return nil, fmt.Errorf("gemini: setup: %w", err)
	}

	go sess.receiveLoop()
	go sess.keepaliveLoop()

	return sess, nil
}

// buildSetup translates a live.SessionConfig into the BidiGenerateContent
// setup message.
func buildSetup(model string, cfg live.SessionConfig) setupMessage {
	msg := setupMessage{
		Setup: setupConfig{
			Model: "models/" + model,
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"AUDIO"},
			},
		},
	}

	if cfg.Instructions != "" {
		msg.Setup.SystemInstruction = &content{Parts: []part{{Text: cfg.Instructions}}}
	}
	if cfg.Voice != "" {
		msg.Setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}
	if cfg.InputTranscription {
		msg.Setup.InputAudioTranscription = &struct{}{}
	}
	if cfg.OutputTranscription {
		msg.Setup.OutputAudioTranscription = &struct{}{}
	}
	if cfg.SearchGrounding {
		msg.Setup.Tools = append(msg.Setup.Tools, geminiTool{GoogleSearch: &struct{}{}})
	}
	if len(cfg.Tools) > 0 {
		decls := make([]functionDeclaration, len(cfg.Tools))
		for i, t := range cfg.Tools {
			decls[i] = functionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			}
		}
		msg.Setup.Tools = append(msg.Setup.Tools, geminiTool{FunctionDeclarations: decls})
	}
	return msg
}

// ── session ────────────────────────────────────────────────────────────────────

type session struct {
	conn     *websocket.Conn
	messages chan live.ServerMessage

	mu     sync.Mutex
	errVal error
	done   chan struct{}
	closed bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("gemini: marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// receiveLoop reads messages from the WebSocket and forwards them in order.
// It owns the messages channel and closes it when it exits.
func (s *session) receiveLoop() {
	defer s.closeChannels()

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.setErr(translateReadErr(err))
			return
		}

		var raw serverMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			slog.Debug("gemini: skipping malformed frame", "err", err)
			continue
		}

		msg, ok := decode(&raw)
		if !ok {
			continue
		}
		select {
		case s.messages <- msg:
		case <-s.ctx.Done():
			return
		}
	}
}

// translateReadErr maps a WebSocket close frame onto live.CloseError.
func translateReadErr(err error) error {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return &live.CloseError{Code: int(ce.Code), Reason: ce.Reason, Err: err}
	}
	return fmt.Errorf("gemini: read: %w", err)
}

// keepaliveLoop pings the server so idle sessions are not dropped by proxies.
func (s *session) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(s.ctx, keepaliveTimeout)
			_ = s.conn.Ping(pingCtx)
			cancel()
		}
	}
}

func (s *session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errVal == nil {
		s.errVal = err
	}
}

func (s *session) closeChannels() {
	s.closeOnce.Do(func() {
		close(s.messages)
	})
}

func (s *session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("gemini: session closed")
	}
	return nil
}

// ── live.Conn methods ──────────────────────────────────────────────────────────

// SendRealtimeInput streams media chunks (PCM audio, JPEG frames).
func (s *session) SendRealtimeInput(chunks ...live.MediaChunk) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	mc := make([]mediaChunk, len(chunks))
	for i, c := range chunks {
		mc[i] = mediaChunk{MIMEType: c.MIMEType, Data: audio.EncodeBase64(c.Data)}
	}
	return s.writeJSON(realtimeInputMessage{RealtimeInput: realtimeInput{MediaChunks: mc}})
}

// SendClientContent appends text turns to the conversation.
func (s *session) SendClientContent(turns []live.Turn, turnComplete bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	ct := make([]content, len(turns))
	for i, t := range turns {
		role := t.Role
		if role != live.RoleModel {
			role = live.RoleUser
		}
		ct[i] = content{Role: role, Parts: []part{{Text: t.Text}}}
	}
	return s.writeJSON(clientContentMessage{
		ClientContent: clientContent{Turns: ct, TurnComplete: turnComplete},
	})
}

// SendToolResponse answers tool calls by id.
func (s *session) SendToolResponse(responses ...live.FunctionResponse) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	fr := make([]functionResponse, len(responses))
	for i, r := range responses {
		fr[i] = functionResponse{ID: r.ID, Name: r.Name, Response: r.Response}
	}
	return s.writeJSON(toolResponseMessage{ToolResponse: toolResponse{FunctionResponses: fr}})
}

// Messages returns the inbound message channel.
func (s *session) Messages() <-chan live.ServerMessage { return s.messages }

// Err returns the first error that terminated the session.
func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// Close terminates the session and releases all resources. Idempotent.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()    // unblocks receiveLoop and keepaliveLoop
	close(s.done) // signals keepaliveLoop via done channel
	s.conn.Close(websocket.StatusNormalClosure, "session closed")
	return nil
}
