// Package tools implements the model-callable tools of a live session and the
// dispatcher that runs them.
//
// A [Tool] pairs the [live.FunctionDeclaration] offered to the model with a
// [Handler]. Every call is handled on its own goroutine, so a handler may
// block on slow provider work. Handlers answer the model through
// [Invocation.Reply] exactly once, either immediately (an optimistic
// acknowledgement followed by background work) or after the work completes.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/jarvis/internal/session"
	"github.com/MrWong99/jarvis/pkg/provider/live"
	"github.com/MrWong99/jarvis/pkg/types"
)

// Host is the part of the session a tool may use.
type Host interface {
	// CameraFrame returns the cached camera frame, if any.
	CameraFrame() ([]byte, bool)

	// Emit sends a UI message.
	Emit(types.Message)
}

// Handler executes one tool call. A returned error is counted against the
// tool and, if the handler has not replied yet, sent to the model as an
// error response.
type Handler func(ctx context.Context, inv *Invocation) error

// Tool is a callable tool.
type Tool struct {
	Declaration live.FunctionDeclaration
	Handler     Handler
}

// Invocation is a single in-flight tool call.
type Invocation struct {
	ID   string
	Name string
	Args map[string]any

	host  Host
	reply session.ReplyFunc

	once    sync.Once
	replied bool
}

// String returns the string argument key, or "" if it is missing or not a
// string.
func (inv *Invocation) String(key string) string {
	s, _ := inv.Args[key].(string)
	return s
}

// Host returns the session the call arrived on.
func (inv *Invocation) Host() Host { return inv.host }

// Emit sends a UI message through the host.
func (inv *Invocation) Emit(m types.Message) { inv.host.Emit(m) }

// Reply sends the tool response, tagged with the call ID, on the connection
// the call arrived on. Only the first call has any effect. If that
// connection is gone the response is dropped and [session.ErrNotConnected]
// is returned.
func (inv *Invocation) Reply(response map[string]any) error {
	var err error
	sent := false
	inv.once.Do(func() {
		sent = true
		inv.replied = true
		err = inv.reply(live.FunctionResponse{ID: inv.ID, Name: inv.Name, Response: response})
	})
	if !sent {
		return nil
	}
	if err != nil {
		slog.Debug("tool response dropped", "tool", inv.Name, "id", inv.ID, "err", err)
	}
	return err
}

// errorResponse is the response shape for failed calls.
func errorResponse(msg string) map[string]any {
	return map[string]any{"error": msg}
}

// toolError builds a system UI message carrying error metadata.
func toolError(text string, err error) types.Message {
	md := &types.Metadata{Type: types.MetadataError, Error: text}
	if err != nil {
		md.Error = err.Error()
	}
	return types.Message{Role: types.RoleSystem, Text: text, Metadata: md}
}

// failed wraps err in [session.ErrToolExecutionFailed].
func failed(tool string, err error) error {
	return fmt.Errorf("%w: %s: %w", session.ErrToolExecutionFailed, tool, err)
}
