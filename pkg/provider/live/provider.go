// Package live defines the Provider interface for realtime, bidirectional
// model sessions.
//
// A live session is a single long-lived connection that carries microphone
// audio and camera frames up, and synthesised audio, transcripts, tool calls
// and grounding metadata down, all interleaved on the same transport. The
// Gemini Live BidiGenerateContent protocol is the reference shape.
//
// The central abstraction is [Conn]. Outbound traffic is sent through its
// Send* methods; inbound traffic arrives in order on [Conn.Messages] as
// decoded [ServerMessage] values. The channel closes when the transport ends,
// after which [Conn.Err] tells an unexpected close apart from a local Close.
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"
	"fmt"
	"strings"
)

// MIME types understood by realtime input.
const (
	MIMEAudioPCM16k = "audio/pcm;rate=16000"
	MIMEImageJPEG   = "image/jpeg"
)

// Turn roles for client content.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// MediaChunk is a single piece of realtime input. Data holds raw bytes;
// providers apply whatever transport encoding they need.
type MediaChunk struct {
	MIMEType string
	Data     []byte
}

// Turn is a text turn sent as client content.
type Turn struct {
	Role string
	Text string
}

// FunctionDeclaration offers a callable tool to the model. Parameters is an
// OpenAPI-style schema object.
type FunctionDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// FunctionCall is a tool invocation requested by the model. ID correlates the
// eventual [FunctionResponse].
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponse answers a [FunctionCall].
type FunctionResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// Blob is decoded inline data from a model turn.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Part is one element of a model turn: text, inline data, or both.
type Part struct {
	Text       string
	InlineData *Blob
}

// GroundingSource is a web citation attached to a grounded answer.
type GroundingSource struct {
	Title string
	URI   string
}

// Grounding carries the citation metadata of a grounded answer.
type Grounding struct {
	Sources []GroundingSource
}

// ServerMessage is one decoded inbound message. A single message may populate
// several fields; consumers decide precedence.
type ServerMessage struct {
	SetupComplete bool

	// ToolCalls is non-empty when the model requests tool invocations.
	ToolCalls []FunctionCall

	Interrupted  bool
	TurnComplete bool

	InputTranscript  string
	OutputTranscript string

	Parts     []Part
	Grounding *Grounding

	// Error is a non-fatal error reported by the remote side.
	Error string
}

// SessionConfig is the configuration sent when a session is opened.
type SessionConfig struct {
	// Voice selects a prebuilt voice (e.g. "Aoede"). Empty uses the model default.
	Voice string

	// Instructions is the system instruction.
	Instructions string

	// InputTranscription enables live transcription of user speech.
	InputTranscription bool

	// OutputTranscription enables transcription of synthesised speech.
	OutputTranscription bool

	// SearchGrounding offers the remote web search tool to the model.
	SearchGrounding bool

	// Tools lists function declarations the model may call.
	Tools []FunctionDeclaration
}

// CloseError describes a transport closed by the remote side.
type CloseError struct {
	Code   int
	Reason string
	Err    error
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("live: connection closed (%d %s): %v", e.Code, e.Reason, e.Err)
}

func (e *CloseError) Unwrap() error { return e.Err }

// Quota reports whether the close looks like a quota or server overload
// rejection (status 1011 or a reason mentioning quota).
func (e *CloseError) Quota() bool {
	return e.Code == 1011 || strings.Contains(strings.ToLower(e.Reason), "quota")
}

// Conn is an open live session.
//
// Send methods write directly to the transport and return an error if the
// session is closed. Callers must call Close when done; Close is idempotent.
type Conn interface {
	// SendRealtimeInput streams audio or image chunks.
	SendRealtimeInput(chunks ...MediaChunk) error

	// SendClientContent appends text turns to the conversation.
	SendClientContent(turns []Turn, turnComplete bool) error

	// SendToolResponse answers one or more tool calls.
	SendToolResponse(responses ...FunctionResponse) error

	// Messages delivers inbound messages in arrival order. It is closed when
	// the session ends for any reason.
	Messages() <-chan ServerMessage

	// Err returns the error that ended the session, or nil if it was closed
	// locally. Only meaningful after Messages is closed.
	Err() error

	// Close terminates the session. Safe to call more than once.
	Close() error
}

// Provider opens live sessions.
type Provider interface {
	// Connect dials the remote endpoint and sends the session setup. The
	// returned Conn accepts input immediately. ctx bounds the dial only.
	Connect(ctx context.Context, cfg SessionConfig) (Conn, error)
}
