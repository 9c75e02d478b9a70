// Package mock provides test doubles for the live package interfaces.
//
// Use Provider to script Connect outcomes and to grab the Conn handed to the
// code under test. Use Conn to push inbound messages, simulate a remote close
// and inspect what was sent.
//
// Example:
//
//	p := &mock.Provider{}
//	c, _ := p.Connect(ctx, cfg)
//	p.Last().Push(live.ServerMessage{SetupComplete: true})
//	p.Last().CloseRemote(&live.CloseError{Code: 1011})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/jarvis/pkg/provider/live"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	Ctx context.Context
	Cfg live.SessionConfig
}

// Provider is a mock implementation of live.Provider.
type Provider struct {
	mu sync.Mutex

	// ConnectErrs is consumed in order, one entry per Connect call. A nil
	// entry means that call succeeds. Once exhausted, ConnectErr applies.
	ConnectErrs []error

	// ConnectErr, if non-nil, is returned by every Connect call after
	// ConnectErrs is exhausted.
	ConnectErr error

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall

	// Conns holds every Conn returned by a successful Connect.
	Conns []*Conn

	// OnConnect, if set, is called with each new Conn before Connect returns.
	OnConnect func(*Conn)
}

// Connect records the call and returns a fresh Conn or the scripted error.
func (p *Provider) Connect(ctx context.Context, cfg live.SessionConfig) (live.Conn, error) {
	p.mu.Lock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})

	var err error
	if len(p.ConnectErrs) > 0 {
		err = p.ConnectErrs[0]
		p.ConnectErrs = p.ConnectErrs[1:]
	} else {
		err = p.ConnectErr
	}
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	c := NewConn()
	p.Conns = append(p.Conns, c)
	hook := p.OnConnect
	p.mu.Unlock()

	if hook != nil {
		hook(c)
	}
	return c, nil
}

// CallCount returns the number of Connect calls so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ConnectCalls)
}

// Last returns the most recent successful Conn, or nil.
func (p *Provider) Last() *Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Conns) == 0 {
		return nil
	}
	return p.Conns[len(p.Conns)-1]
}

// LastConfig returns the SessionConfig of the most recent Connect call.
func (p *Provider) LastConfig() live.SessionConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.ConnectCalls) == 0 {
		return live.SessionConfig{}
	}
	return p.ConnectCalls[len(p.ConnectCalls)-1].Cfg
}

var _ live.Provider = (*Provider)(nil)

// ClientContentCall records a single invocation of Conn.SendClientContent.
type ClientContentCall struct {
	Turns        []live.Turn
	TurnComplete bool
}

// Conn is a mock implementation of live.Conn.
type Conn struct {
	mu sync.Mutex

	messages chan live.ServerMessage
	closed   bool
	err      error

	// SendErr, if non-nil, is returned by every Send* call.
	SendErr error

	// RealtimeBlock, if non-nil, makes SendRealtimeInput wait until it is
	// closed before recording, as a stalled uplink would. Set it before the
	// Conn is used.
	RealtimeBlock <-chan struct{}

	// RealtimeChunks records every chunk passed to SendRealtimeInput.
	RealtimeChunks []live.MediaChunk

	// ClientContentCalls records every call to SendClientContent.
	ClientContentCalls []ClientContentCall

	// ToolResponses records every response passed to SendToolResponse.
	ToolResponses []live.FunctionResponse

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewConn returns an open Conn with a buffered message channel.
func NewConn() *Conn {
	return &Conn{messages: make(chan live.ServerMessage, 64)}
}

// Push delivers msg on Messages. It is a no-op once the Conn is closed.
func (c *Conn) Push(msg live.ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.messages <- msg
}

// CloseRemote simulates the remote side ending the session with err.
func (c *Conn) CloseRemote(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	close(c.messages)
}

// SendRealtimeInput records the chunks and returns SendErr.
func (c *Conn) SendRealtimeInput(chunks ...live.MediaChunk) error {
	if c.RealtimeBlock != nil {
		<-c.RealtimeBlock
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	for _, ch := range chunks {
		data := make([]byte, len(ch.Data))
		copy(data, ch.Data)
		c.RealtimeChunks = append(c.RealtimeChunks, live.MediaChunk{MIMEType: ch.MIMEType, Data: data})
	}
	return nil
}

// SendClientContent records the call and returns SendErr.
func (c *Conn) SendClientContent(turns []live.Turn, turnComplete bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	cp := make([]live.Turn, len(turns))
	copy(cp, turns)
	c.ClientContentCalls = append(c.ClientContentCalls, ClientContentCall{Turns: cp, TurnComplete: turnComplete})
	return nil
}

// SendToolResponse records the responses and returns SendErr.
func (c *Conn) SendToolResponse(responses ...live.FunctionResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	c.ToolResponses = append(c.ToolResponses, responses...)
	return nil
}

// Messages returns the inbound channel.
func (c *Conn) Messages() <-chan live.ServerMessage { return c.messages }

// Err returns the error passed to CloseRemote, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close records the call and closes Messages.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCallCount++
	if !c.closed {
		c.closed = true
		close(c.messages)
	}
	return nil
}

// Closed reports whether the Conn was closed locally or remotely.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Chunks returns a copy of the recorded realtime chunks with the given MIME type.
func (c *Conn) Chunks(mimeType string) []live.MediaChunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []live.MediaChunk
	for _, ch := range c.RealtimeChunks {
		if ch.MIMEType == mimeType {
			out = append(out, ch)
		}
	}
	return out
}

// Responses returns a copy of the recorded tool responses.
func (c *Conn) Responses() []live.FunctionResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]live.FunctionResponse(nil), c.ToolResponses...)
}

// ClientContent returns a copy of the recorded client content calls.
func (c *Conn) ClientContent() []ClientContentCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ClientContentCall(nil), c.ClientContentCalls...)
}

var _ live.Conn = (*Conn)(nil)
