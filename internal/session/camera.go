package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Camera caches the most recent camera frame and throttles how often frames
// are forwarded to the live session.
//
// The cache is a single slot swapped atomically: readers never block writers
// and always see a complete frame, though possibly not the newest one.
type Camera struct {
	frame   atomic.Pointer[[]byte]
	limiter *rate.Limiter
}

// NewCamera returns a Camera that admits at most one send per interval.
// A non-positive interval defaults to one second.
func NewCamera(interval time.Duration) *Camera {
	if interval <= 0 {
		interval = time.Second
	}
	return &Camera{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Store replaces the cached frame. Empty frames are ignored.
func (c *Camera) Store(jpeg []byte) {
	if len(jpeg) == 0 {
		return
	}
	c.frame.Store(&jpeg)
}

// Latest returns the cached frame.
func (c *Camera) Latest() ([]byte, bool) {
	p := c.frame.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

// SetInterval changes the send spacing. Non-positive values are ignored.
func (c *Camera) SetInterval(d time.Duration) {
	if d > 0 {
		c.limiter.SetLimit(rate.Every(d))
	}
}

// Allow reports whether a frame may be sent now and consumes the token if so.
func (c *Camera) Allow() bool { return c.limiter.Allow() }

// DecodeFrame accepts a data URL (data:image/jpeg;base64,...) or bare base64
// and returns the raw image bytes.
func DecodeFrame(s string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		_, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, fmt.Errorf("session: malformed camera data URL")
		}
		s = payload
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("session: decode camera frame: %w", err)
	}
	return b, nil
}

// WatchFrameFile feeds the contents of path to onFrame every time the file is
// written or replaced, plus once at start if it exists. It watches the parent
// directory so atomic rename-into-place updates are seen. Blocks until ctx
// ends.
func WatchFrameFile(ctx context.Context, path string, onFrame func([]byte)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("session: camera watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("session: camera watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("session: camera watcher: watch %s: %w", filepath.Dir(abs), err)
	}

	read := func() {
		data, err := os.ReadFile(abs)
		if err != nil {
			slog.Debug("camera frame read failed", "path", abs, "err", err)
			return
		}
		onFrame(data)
	}
	read()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				read()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("camera watcher error", "err", err)
		}
	}
}
