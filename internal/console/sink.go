// Package console implements the line-oriented text UI for the session
// engine.
//
// [Sink] renders engine events (messages, state changes, microphone level) to
// a writer. [Reader] parses slash commands from an input stream and drives a
// [session.Controller].
package console

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrWong99/jarvis/internal/session"
	"github.com/MrWong99/jarvis/pkg/provider/imaging"
	"github.com/MrWong99/jarvis/pkg/types"
)

const meterWidth = 20

// SinkOption configures a [Sink].
type SinkOption func(*Sink)

// WithImageDir saves every image carried in message metadata to dir and
// prints the file path instead of the data URL size.
func WithImageDir(dir string) SinkOption {
	return func(s *Sink) { s.imageDir = dir }
}

// WithVolumeInterval sets how often the microphone level meter is printed.
// Zero disables the meter. The default is 2s.
func WithVolumeInterval(d time.Duration) SinkOption {
	return func(s *Sink) { s.volumeEvery = d }
}

// Sink is a [session.Sink] that prints to a writer. All writes are serialised.
type Sink struct {
	mu  sync.Mutex
	out io.Writer

	imageDir    string
	volumeEvery time.Duration
	volume      rate.Sometimes
	images      int

	now func() time.Time
}

var _ session.Sink = (*Sink)(nil)

// NewSink creates a Sink writing to out.
func NewSink(out io.Writer, opts ...SinkOption) *Sink {
	s := &Sink{out: out, volumeEvery: 2 * time.Second, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.volume = rate.Sometimes{Interval: s.volumeEvery}
	return s
}

// OnStateChange prints the new connection state.
func (s *Sink) OnStateChange(c session.StateChange) {
	var line string
	switch {
	case c.Exhausted():
		line = fmt.Sprintf("[state] %s: gave up reconnecting (%v)", c.State, c.Err)
	case c.State == session.StateRetrying:
		line = fmt.Sprintf("[state] %s: attempt %d in %s (%v)", c.State, c.Attempt, c.Delay, c.Err)
	case c.Err != nil:
		line = fmt.Sprintf("[state] %s: %v", c.State, c.Err)
	default:
		line = fmt.Sprintf("[state] %s", c.State)
	}
	s.println(line)
}

// OnMessage prints a UI message. Images are either saved to the image
// directory or summarised.
func (s *Sink) OnMessage(m types.Message) {
	var b strings.Builder
	b.WriteString(prefix(m))
	if m.Text != "" {
		b.WriteString(" ")
		b.WriteString(m.Text)
	}

	if md := m.Metadata; md != nil {
		switch md.Type {
		case types.MetadataImageGen, types.MetadataReimagine:
			b.WriteString("\n  ")
			b.WriteString(s.renderImage(md))
		case types.MetadataSearch:
			for _, src := range md.Sources {
				fmt.Fprintf(&b, "\n  - %s <%s>", src.Title, src.URI)
			}
		case types.MetadataError:
			if md.Error != "" {
				fmt.Fprintf(&b, " (%s)", md.Error)
			}
		}
	}
	s.println(b.String())
}

// OnVolume prints a level meter at most once per volume interval.
func (s *Sink) OnVolume(level float64) {
	if s.volumeEvery <= 0 {
		return
	}
	s.volume.Do(func() {
		s.println("[mic] " + meter(level))
	})
}

func (s *Sink) renderImage(md *types.Metadata) string {
	if s.imageDir == "" {
		return fmt.Sprintf("[image %s, %d bytes]", md.Type, len(md.Image))
	}
	img, err := imaging.ParseDataURL(md.Image, "image/png")
	if err != nil {
		slog.Warn("console: undecodable image", "err", err)
		return "[image could not be decoded]"
	}

	s.mu.Lock()
	s.images++
	n := s.images
	s.mu.Unlock()

	name := fmt.Sprintf("%s-%s-%03d%s", md.Type, s.now().Format("20060102-150405"), n, extension(img.MIMEType))
	path := filepath.Join(s.imageDir, name)
	if err := os.MkdirAll(s.imageDir, 0o755); err != nil {
		slog.Warn("console: create image dir", "dir", s.imageDir, "err", err)
		return "[image could not be saved]"
	}
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		slog.Warn("console: save image", "path", path, "err", err)
		return "[image could not be saved]"
	}
	return "[image saved to " + path + "]"
}

func (s *Sink) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, line)
}

func prefix(m types.Message) string {
	switch {
	case m.Role == types.RoleUser && m.Transcript:
		return "you (heard):"
	case m.Role == types.RoleUser:
		return "you:"
	case m.Role == types.RoleModel && m.Transcript:
		return "jarvis (spoken):"
	case m.Role == types.RoleModel:
		return "jarvis:"
	default:
		return "[system]"
	}
}

// meter renders level (0..100) as a fixed-width bar.
func meter(level float64) string {
	level = max(0, min(level, 100))
	filled := int(level / 100 * meterWidth)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", meterWidth-filled) + "] " + fmt.Sprintf("%.0f", level)
}

func extension(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
