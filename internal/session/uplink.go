package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrWong99/jarvis/internal/observe"
	"github.com/MrWong99/jarvis/pkg/provider/live"
)

// uplinkQueueSize bounds the microphone frames buffered for one connection.
// At 256 samples per frame and 16 kHz that is roughly four seconds of audio.
const uplinkQueueSize = 256

// uplink moves microphone frames off the device thread and onto a single
// connection. enqueue never blocks: when the transport falls behind and the
// queue is full, the frame is dropped.
type uplink struct {
	conn    live.Conn
	metrics *observe.Metrics
	frames  chan []byte
	done    chan struct{}

	stopOnce sync.Once
	dropLog  rate.Sometimes
}

func newUplink(conn live.Conn, m *observe.Metrics) *uplink {
	return &uplink{
		conn:    conn,
		metrics: m,
		frames:  make(chan []byte, uplinkQueueSize),
		done:    make(chan struct{}),
		dropLog: rate.Sometimes{Interval: 5 * time.Second},
	}
}

// enqueue hands pcm to the sender and reports whether it was accepted.
func (u *uplink) enqueue(ctx context.Context, pcm []byte) bool {
	select {
	case <-u.done:
		return false
	default:
	}
	select {
	case u.frames <- pcm:
		return true
	default:
		u.metrics.FramesDropped.Add(ctx, 1)
		u.dropLog.Do(func() {
			observe.Logger(ctx).Warn("uplink backed up, dropping microphone frames", "queued", len(u.frames))
		})
		return false
	}
}

// run sends queued frames in order until stop is called.
func (u *uplink) run(ctx context.Context) {
	log := observe.Logger(ctx)
	for {
		select {
		case <-u.done:
			return
		case pcm := <-u.frames:
			select {
			case <-u.done:
				return
			default:
			}
			if err := u.conn.SendRealtimeInput(live.MediaChunk{MIMEType: live.MIMEAudioPCM16k, Data: pcm}); err != nil {
				log.Debug("audio frame send failed", "err", err)
				continue
			}
			u.metrics.FramesSent.Add(ctx, 1)
		}
	}
}

// stop ends run. Frames still queued are discarded. Safe to call more than
// once.
func (u *uplink) stop() {
	u.stopOnce.Do(func() { close(u.done) })
}
