// Package session implements the realtime session engine: the connection
// state machine that owns the single live transport, the audio pipelines
// attached to it, the camera frame cache and the router that demultiplexes
// inbound traffic.
//
// The lifecycle is DISCONNECTED -> CONNECTING -> CONNECTED, with transport
// failures going through ERROR to RETRYING (exponential backoff) and back to
// CONNECTING, or to a terminal DISCONNECTED once the retry budget is spent.
// Every transition is reported to the [Sink].
//
// Each dial bumps an epoch counter. Timers, receive loops and tool replies
// capture the epoch they were created under and become no-ops once it is
// stale, so nothing from an old connection can act on a newer one.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/jarvis/internal/observe"
	"github.com/MrWong99/jarvis/internal/resilience"
	"github.com/MrWong99/jarvis/pkg/audio"
	"github.com/MrWong99/jarvis/pkg/provider/live"
	"github.com/MrWong99/jarvis/pkg/types"
)

// Defaults for [Config].
const (
	DefaultStabilityWindow = 10 * time.Second
	DefaultDialTimeout     = 15 * time.Second
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. [time.AfterFunc] is the production
// implementation.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Controller is the surface the UI layer drives.
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect() error
	SendText(text string) error
	SendTurnComplete() error
	MuteMic()
	UnmuteMic()
	MicMuted() bool
	UpdateCameraFrame(jpeg []byte)
	State() State
}

// Config configures an [Engine].
type Config struct {
	// Provider opens live sessions. Required.
	Provider live.Provider

	// Session is sent on every connect.
	Session live.SessionConfig

	// Audio opens capture and playback devices. Required.
	Audio audio.Backend

	InputDevice  string
	OutputDevice string

	// CaptureRate defaults to 16 kHz, PlaybackRate to 24 kHz.
	CaptureRate  int
	PlaybackRate int

	// OutputRate is the rate the output device is opened at. Zero means
	// PlaybackRate.
	OutputRate int

	// FrameSize is the capture buffer in samples. Defaults to 256.
	FrameSize int

	Retry resilience.RetryConfig

	// StabilityWindow is how long a connection must survive before the retry
	// count resets.
	StabilityWindow time.Duration

	// DialTimeout bounds a single connect attempt.
	DialTimeout time.Duration

	// CameraInterval is the minimum spacing between camera frame sends.
	CameraInterval time.Duration

	// Sink receives state changes, UI messages and volume. May be nil.
	Sink Sink

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// AfterFunc defaults to time.AfterFunc. Tests inject a manual clock.
	AfterFunc AfterFunc
}

// Engine is the connection state machine. All methods are safe for
// concurrent use.
type Engine struct {
	cfg      Config
	sink     Sink
	metrics  *observe.Metrics
	after    AfterFunc
	retry    *resilience.RetryPolicy
	capture  *audio.CaptureStream
	playback *audio.PlaybackStream
	camera   *Camera
	router   *Router

	// flushMu serialises delivery of queued state changes.
	flushMu sync.Mutex

	mu          sync.Mutex
	state       State
	conn        live.Conn
	up          *uplink
	epoch       uint64
	sessionID   string
	retryTimer  Timer
	stableTimer Timer
	pending     []StateChange
	tools       ToolDispatcher
	connected   bool

	wg sync.WaitGroup
}

var _ Controller = (*Engine)(nil)

// New creates a disconnected Engine.
func New(cfg Config) *Engine {
	if cfg.StabilityWindow <= 0 {
		cfg.StabilityWindow = DefaultStabilityWindow
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}
	if cfg.Sink == nil {
		cfg.Sink = SinkFuncs{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	e := &Engine{
		cfg:     cfg,
		sink:    cfg.Sink,
		metrics: cfg.Metrics,
		after:   cfg.AfterFunc,
		retry:   resilience.NewRetryPolicy(cfg.Retry),
		camera:  NewCamera(cfg.CameraInterval),
	}
	e.capture = audio.NewCaptureStream(audio.CaptureConfig{
		Backend:      cfg.Audio,
		Device:       cfg.InputDevice,
		SampleRate:   cfg.CaptureRate,
		FrameSize:    cfg.FrameSize,
		OnVolume:     e.sink.OnVolume,
		OnFrame:      e.sendAudio,
		OnSuppressed: func() { e.metrics.FramesSuppressed.Add(context.Background(), 1) },
	})
	e.playback = audio.NewPlaybackStream(audio.PlaybackConfig{
		Backend:    cfg.Audio,
		Device:     cfg.OutputDevice,
		SampleRate: cfg.PlaybackRate,
		DeviceRate: cfg.OutputRate,
	})
	e.router = NewRouter(e.playback, e.sink, e.toolDispatcher, e.metrics)
	return e
}

// SetToolDispatcher attaches the dispatcher that receives tool calls.
func (e *Engine) SetToolDispatcher(d ToolDispatcher) {
	e.mu.Lock()
	e.tools = d
	e.mu.Unlock()
}

// SetSession replaces the session configuration. It applies from the next
// connect on; a live session keeps the configuration it was opened with.
func (e *Engine) SetSession(cfg live.SessionConfig) {
	e.mu.Lock()
	e.cfg.Session = cfg
	e.mu.Unlock()
}

// SetCameraInterval changes the minimum spacing between camera frame sends.
func (e *Engine) SetCameraInterval(d time.Duration) { e.camera.SetInterval(d) }

func (e *Engine) toolDispatcher() ToolDispatcher {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tools
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RetryAttempt returns the current retry count.
func (e *Engine) RetryAttempt() int { return e.retry.Attempt() }

// SessionID returns the identifier of the current or most recent connection.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Connected reports whether the engine is CONNECTED.
func (e *Engine) Connected() bool { return e.State() == StateConnected }

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// Connect starts a new session, resetting the retry count. It is a no-op
// while a session is already connecting, connected or failing over. The
// returned error is the first attempt's open error, after which the retry
// path has already been scheduled.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateConnecting, StateConnected, StateError:
		e.mu.Unlock()
		return nil
	}
	e.stopTimersLocked()
	e.retry.Reset()
	e.epoch++
	epoch := e.epoch
	e.setStateLocked(StateChange{State: StateConnecting})
	e.mu.Unlock()
	e.flush()

	return e.open(ctx, epoch)
}

// Disconnect closes the session on caller request. Pending retries are
// cancelled, the retry count resets and dispatched tool work is left to
// finish on its own.
func (e *Engine) Disconnect() error {
	e.mu.Lock()
	e.epoch++
	e.stopTimersLocked()
	e.retry.Reset()
	conn, up := e.conn, e.up
	e.conn, e.up = nil, nil
	wasConnected := e.markDisconnectedLocked()
	if e.state != StateDisconnected {
		e.setStateLocked(StateChange{State: StateDisconnected})
	}
	e.mu.Unlock()

	if up != nil {
		up.stop()
	}
	var err error
	if conn != nil {
		err = conn.Close()
	}
	e.teardownAudio()
	if wasConnected {
		e.metrics.Connected.Add(context.Background(), -1)
	}
	e.flush()
	return err
}

// Close disconnects and waits for receive loops to exit.
func (e *Engine) Close() error {
	err := e.Disconnect()
	e.wg.Wait()
	return err
}

// open dials the provider for epoch. The caller has already moved the state
// to CONNECTING.
func (e *Engine) open(ctx context.Context, epoch uint64) error {
	ctx, span := observe.StartSpan(ctx, "session.connect")
	defer span.End()

	dctx, cancel := context.WithTimeout(ctx, e.cfg.DialTimeout)
	e.mu.Lock()
	sess := e.cfg.Session
	e.mu.Unlock()
	conn, err := e.cfg.Provider.Connect(dctx, sess)
	cancel()

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrNotConnected
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransportOpenFailed, err)
		span.RecordError(err)
		e.setStateLocked(StateChange{State: StateError, Err: err, Attempt: e.retry.Attempt()})
		e.mu.Unlock()
		slog.Warn("live session connect failed", "err", err, "attempt", e.retry.Attempt())
		e.flush()
		e.scheduleRetry(epoch, err)
		return err
	}

	up := newUplink(conn, e.metrics)
	e.conn, e.up = conn, up
	e.sessionID = uuid.NewString()
	e.connected = true
	sessCtx := observe.WithSessionID(context.Background(), e.sessionID)
	e.stableTimer = e.after(e.cfg.StabilityWindow, func() { e.onStable(epoch) })
	e.setStateLocked(StateChange{State: StateConnected, Attempt: e.retry.Attempt()})
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		up.run(sessCtx)
	}()

	e.metrics.Connected.Add(ctx, 1)
	observe.Logger(sessCtx).Info("live session connected", "attempt", e.retry.Attempt())
	e.flush()

	if err := e.capture.Start(); err != nil {
		observe.Logger(sessCtx).Error("microphone unavailable", "err", err)
		e.sink.OnMessage(systemError("Error: Microphone unavailable.", err))
	}
	e.mu.Lock()
	stale := e.epoch != epoch
	e.mu.Unlock()
	if stale {
		_ = e.capture.Stop()
		return nil
	}

	e.wg.Add(1)
	go e.receive(sessCtx, conn, epoch)
	return nil
}

// receive routes inbound messages until the connection ends.
func (e *Engine) receive(ctx context.Context, conn live.Conn, epoch uint64) {
	defer e.wg.Done()
	reply := e.replier(epoch)
	for msg := range conn.Messages() {
		e.router.Route(ctx, msg, reply)
	}
	e.handleClose(ctx, epoch, conn.Err())
}

// handleClose reacts to the end of the connection opened under epoch.
func (e *Engine) handleClose(ctx context.Context, epoch uint64, cause error) {
	e.mu.Lock()
	if e.epoch != epoch {
		// Caller-initiated disconnect or a newer connect already took over.
		e.mu.Unlock()
		return
	}
	conn, up := e.conn, e.up
	e.conn, e.up = nil, nil
	if e.stableTimer != nil {
		e.stableTimer.Stop()
		e.stableTimer = nil
	}
	wasConnected := e.markDisconnectedLocked()
	err := ErrTransportClosedUnexpectedly
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrTransportClosedUnexpectedly, cause)
	}
	e.setStateLocked(StateChange{State: StateError, Err: err, Attempt: e.retry.Attempt()})
	e.mu.Unlock()

	log := observe.Logger(ctx)
	var ce *live.CloseError
	if errors.As(cause, &ce) && ce.Quota() {
		log.Warn("live session closed: quota exceeded or server overloaded", "code", ce.Code, "reason", ce.Reason)
	} else {
		log.Warn("live session closed unexpectedly", "err", err)
	}

	if up != nil {
		up.stop()
	}
	if conn != nil {
		_ = conn.Close()
	}
	e.teardownAudio()
	if wasConnected {
		e.metrics.Connected.Add(ctx, -1)
	}
	e.flush()
	e.scheduleRetry(epoch, err)
}

// scheduleRetry moves to RETRYING with the next backoff delay, or to the
// terminal DISCONNECTED once attempts are exhausted.
func (e *Engine) scheduleRetry(epoch uint64, cause error) {
	e.mu.Lock()
	if e.epoch != epoch || e.state != StateError {
		e.mu.Unlock()
		return
	}
	attempt, delay, ok := e.retry.Next()
	if !ok {
		limit := e.retry.MaxAttempts()
		e.setStateLocked(StateChange{
			State:   StateDisconnected,
			Err:     fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, limit, cause),
			Attempt: limit,
		})
		e.mu.Unlock()
		slog.Error("live session retries exhausted", "attempts", limit, "err", cause)
		e.flush()
		return
	}
	e.setStateLocked(StateChange{State: StateRetrying, Err: cause, Attempt: attempt, Delay: delay})
	e.retryTimer = e.after(delay, func() { e.fireRetry(epoch) })
	e.mu.Unlock()

	e.metrics.Reconnects.Add(context.Background(), 1)
	slog.Info("live session reconnect scheduled", "attempt", attempt, "delay", delay)
	e.flush()
}

// fireRetry runs when a backoff delay elapses. The retry count is kept.
func (e *Engine) fireRetry(epoch uint64) {
	e.mu.Lock()
	if e.epoch != epoch || e.state != StateRetrying {
		e.mu.Unlock()
		return
	}
	e.retryTimer = nil
	e.epoch++
	next := e.epoch
	e.setStateLocked(StateChange{State: StateConnecting, Attempt: e.retry.Attempt()})
	e.mu.Unlock()
	e.flush()

	_ = e.open(context.Background(), next)
}

// onStable resets the retry count once a connection has survived the
// stability window.
func (e *Engine) onStable(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch || e.state != StateConnected {
		return
	}
	e.stableTimer = nil
	if e.retry.Attempt() > 0 {
		slog.Info("live session stable, retry count reset", "attempts", e.retry.Attempt())
	}
	e.retry.Reset()
}

func (e *Engine) teardownAudio() {
	if err := e.capture.Stop(); err != nil {
		slog.Warn("capture stop failed", "err", err)
	}
	if err := e.playback.Stop(); err != nil {
		slog.Warn("playback stop failed", "err", err)
	}
}

// markDisconnectedLocked clears the connected flag and reports whether it
// was set. Must be called with e.mu held.
func (e *Engine) markDisconnectedLocked() bool {
	was := e.connected
	e.connected = false
	return was
}

// stopTimersLocked cancels the retry and stability timers. Must be called
// with e.mu held.
func (e *Engine) stopTimersLocked() {
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
	if e.stableTimer != nil {
		e.stableTimer.Stop()
		e.stableTimer = nil
	}
}

// setStateLocked applies a guarded transition and queues it for delivery.
// Must be called with e.mu held.
func (e *Engine) setStateLocked(c StateChange) {
	if !CanTransition(e.state, c.State) {
		slog.Error("illegal session state transition", "from", e.state, "to", c.State)
		return
	}
	e.state = c.State
	e.pending = append(e.pending, c)
}

// flush delivers queued state changes in order. It must be called without
// e.mu held.
func (e *Engine) flush() {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	for {
		e.mu.Lock()
		if len(e.pending) == 0 {
			e.mu.Unlock()
			return
		}
		c := e.pending[0]
		e.pending = e.pending[1:]
		e.mu.Unlock()

		e.metrics.RecordStateChange(context.Background(), c.State.String())
		e.sink.OnStateChange(c)
	}
}

// ── Outbound ──────────────────────────────────────────────────────────────────

// liveConn returns the transport if the engine is CONNECTED.
func (e *Engine) liveConn() (live.Conn, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateConnected || e.conn == nil {
		return nil, false
	}
	return e.conn, true
}

// sendAudio is the capture callback and runs on the device thread. It only
// queues the frame for the connection's uplink. Frames outside CONNECTED are
// dropped.
func (e *Engine) sendAudio(f audio.AudioFrame) {
	e.mu.Lock()
	up := e.up
	ok := e.state == StateConnected
	e.mu.Unlock()
	if !ok || up == nil {
		return
	}
	up.enqueue(context.Background(), f.Data)
}

// SendText sends a complete user text turn. Outside CONNECTED it is dropped
// and [ErrNotConnected] is returned.
func (e *Engine) SendText(text string) error {
	conn, ok := e.liveConn()
	if !ok {
		return ErrNotConnected
	}
	return conn.SendClientContent([]live.Turn{{Role: live.RoleUser, Text: text}}, true)
}

// SendTurnComplete tells the model the user turn is over.
func (e *Engine) SendTurnComplete() error {
	conn, ok := e.liveConn()
	if !ok {
		return ErrNotConnected
	}
	return conn.SendClientContent([]live.Turn{{Role: live.RoleUser}}, true)
}

// replier binds tool responses to the connection opened under epoch.
func (e *Engine) replier(epoch uint64) ReplyFunc {
	return func(r live.FunctionResponse) error {
		e.mu.Lock()
		conn := e.conn
		ok := e.epoch == epoch && e.state == StateConnected && conn != nil
		e.mu.Unlock()
		if !ok {
			return ErrNotConnected
		}
		return conn.SendToolResponse(r)
	}
}

// ── Microphone ────────────────────────────────────────────────────────────────

// MuteMic stops transmitting microphone audio. Volume metering continues.
func (e *Engine) MuteMic() { e.capture.Mute() }

// UnmuteMic resumes transmission from the next frame.
func (e *Engine) UnmuteMic() { e.capture.Unmute() }

// MicMuted reports the mute flag. It survives reconnects.
func (e *Engine) MicMuted() bool { return e.capture.Muted() }

// Playback exposes the output pipeline.
func (e *Engine) Playback() *audio.PlaybackStream { return e.playback }

// ── Camera ────────────────────────────────────────────────────────────────────

// UpdateCameraFrame caches jpeg and forwards it to the session when the
// engine is CONNECTED, no failure episode is in progress and the send
// throttle admits it.
func (e *Engine) UpdateCameraFrame(jpeg []byte) {
	if len(jpeg) == 0 {
		return
	}
	e.camera.Store(jpeg)

	ctx := context.Background()
	conn, ok := e.liveConn()
	if !ok || e.retry.Attempt() != 0 {
		e.metrics.RecordCameraFrame(ctx, "skipped")
		return
	}
	if !e.camera.Allow() {
		e.metrics.RecordCameraFrame(ctx, "throttled")
		return
	}
	if err := conn.SendRealtimeInput(live.MediaChunk{MIMEType: live.MIMEImageJPEG, Data: jpeg}); err != nil {
		slog.Debug("camera frame send failed", "err", err)
		return
	}
	e.metrics.RecordCameraFrame(ctx, "sent")
}

// UpdateCameraDataURL decodes a data URL or bare base64 frame and passes it
// to [Engine.UpdateCameraFrame].
func (e *Engine) UpdateCameraDataURL(s string) error {
	b, err := DecodeFrame(s)
	if err != nil {
		return err
	}
	e.UpdateCameraFrame(b)
	return nil
}

// CameraFrame returns the cached camera frame.
func (e *Engine) CameraFrame() ([]byte, bool) { return e.camera.Latest() }

// Emit forwards a UI message to the sink.
func (e *Engine) Emit(m types.Message) { e.sink.OnMessage(m) }
