package session

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrWong99/jarvis/internal/observe"
	"github.com/MrWong99/jarvis/pkg/provider/live"
	"github.com/MrWong99/jarvis/pkg/types"
)

// GroundingText is the UI text attached to search source lists.
const GroundingText = "Grounded Intelligence Sources"

// Player is the playback side of the audio pipeline.
type Player interface {
	Play(pcm []byte) error
	Interrupt() int
}

// ReplyFunc sends a tool response on the connection the call arrived on. It
// returns [ErrNotConnected] once that connection is gone.
type ReplyFunc func(live.FunctionResponse) error

// ToolDispatcher executes tool calls. Dispatch must not block on tool work.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, calls []live.FunctionCall, reply ReplyFunc)
}

// Kind is the primary category a routed message was assigned to.
type Kind int

const (
	KindIgnored Kind = iota
	KindSetupComplete
	KindToolCall
	KindInterrupted
	KindInputTranscript
	KindOutputTranscript
	KindContent
	KindError
)

var kindNames = [...]string{"ignored", "setup_complete", "tool_call", "interrupted", "input_transcript", "output_transcript", "content", "error"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Router demultiplexes inbound messages, one at a time, in arrival order.
//
// A setup ack is handled alone. Tool calls are always dispatched. An
// interruption flushes playback and ends handling of the message, so audio
// from the interrupted turn is never queued. Otherwise transcripts are
// emitted first and the content parts and grounding of the same message
// follow. A remote error is only looked at when nothing else matched.
type Router struct {
	player  Player
	sink    Sink
	tools   func() ToolDispatcher
	metrics *observe.Metrics

	playbackErrs rate.Sometimes
}

// NewRouter creates a Router. tools is consulted per call so the dispatcher
// can be attached after construction; it may return nil.
func NewRouter(player Player, sink Sink, tools func() ToolDispatcher, m *observe.Metrics) *Router {
	return &Router{
		player:       player,
		sink:         sink,
		tools:        tools,
		metrics:      m,
		playbackErrs: rate.Sometimes{Interval: 5 * time.Second},
	}
}

// Route handles msg and reports the first category it matched.
func (r *Router) Route(ctx context.Context, msg live.ServerMessage, reply ReplyFunc) Kind {
	log := observe.Logger(ctx)

	if msg.SetupComplete {
		log.Info("live session setup complete")
		return KindSetupComplete
	}

	kind := KindIgnored
	mark := func(k Kind) {
		if kind == KindIgnored {
			kind = k
		}
	}

	if len(msg.ToolCalls) > 0 {
		mark(KindToolCall)
		if d := r.tools(); d != nil {
			d.Dispatch(ctx, msg.ToolCalls, reply)
		} else {
			log.Warn("tool calls received but no dispatcher attached", "calls", len(msg.ToolCalls))
		}
	}

	if msg.Interrupted {
		n := r.player.Interrupt()
		r.metrics.Interrupts.Add(ctx, 1)
		log.Debug("playback interrupted", "discarded_frames", n)
		mark(KindInterrupted)
		return kind
	}

	if msg.InputTranscript != "" {
		r.sink.OnMessage(types.Message{Role: types.RoleUser, Text: msg.InputTranscript, Transcript: true})
		mark(KindInputTranscript)
	}
	if msg.OutputTranscript != "" {
		r.sink.OnMessage(types.Message{Role: types.RoleModel, Text: msg.OutputTranscript, Transcript: true})
		mark(KindOutputTranscript)
	}

	if len(msg.Parts) > 0 || msg.Grounding != nil {
		r.content(ctx, msg)
		mark(KindContent)
	}

	if kind == KindIgnored && msg.Error != "" {
		log.Warn("live session reported an error", "err", msg.Error)
		return KindError
	}
	return kind
}

func (r *Router) content(ctx context.Context, msg live.ServerMessage) {
	for _, p := range msg.Parts {
		if p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "audio/") {
			if err := r.player.Play(p.InlineData.Data); err != nil {
				r.playbackErrs.Do(func() {
					observe.Logger(ctx).Warn("playback failed", "err", err)
					r.sink.OnMessage(systemError("Error: Audio output unavailable.", err))
				})
				continue
			}
			r.metrics.FramesPlayed.Add(ctx, 1)
			continue
		}
		if p.Text != "" {
			r.sink.OnMessage(types.Message{Role: types.RoleModel, Text: p.Text})
		}
	}

	if g := msg.Grounding; g != nil && len(g.Sources) > 0 {
		sources := make([]types.Source, len(g.Sources))
		for i, s := range g.Sources {
			sources[i] = types.Source{Title: s.Title, URI: s.URI}
		}
		r.sink.OnMessage(types.Message{
			Role:     types.RoleSystem,
			Text:     GroundingText,
			Metadata: &types.Metadata{Type: types.MetadataSearch, Sources: sources},
		})
	}
}

