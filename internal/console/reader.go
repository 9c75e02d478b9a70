package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MrWong99/jarvis/internal/session"
)

// errQuit ends [Reader.Run] without an error.
var errQuit = errors.New("quit")

// command is a single slash command.
type command struct {
	name  string
	usage string
	run   func(ctx context.Context, r *Reader, arg string) error
}

func commands() []command {
	return []command{
		{"help", "/help", func(_ context.Context, r *Reader, _ string) error {
			r.printHelp()
			return nil
		}},
		{"connect", "/connect", func(ctx context.Context, r *Reader, _ string) error {
			return r.ctrl.Connect(ctx)
		}},
		{"disconnect", "/disconnect", func(_ context.Context, r *Reader, _ string) error {
			return r.ctrl.Disconnect()
		}},
		{"mute", "/mute", func(_ context.Context, r *Reader, _ string) error {
			r.ctrl.MuteMic()
			r.printf("[mic] muted")
			return nil
		}},
		{"unmute", "/unmute", func(_ context.Context, r *Reader, _ string) error {
			r.ctrl.UnmuteMic()
			r.printf("[mic] live")
			return nil
		}},
		{"turn", "/turn", func(_ context.Context, r *Reader, _ string) error {
			return r.ctrl.SendTurnComplete()
		}},
		{"frame", "/frame <path>", func(_ context.Context, r *Reader, arg string) error {
			if arg == "" {
				return errors.New("usage: /frame <path>")
			}
			data, err := os.ReadFile(arg)
			if err != nil {
				return fmt.Errorf("read frame: %w", err)
			}
			r.ctrl.UpdateCameraFrame(data)
			r.printf("[camera] loaded %s (%d bytes)", arg, len(data))
			return nil
		}},
		{"status", "/status", func(_ context.Context, r *Reader, _ string) error {
			mic := "live"
			if r.ctrl.MicMuted() {
				mic = "muted"
			}
			r.printf("[status] %s, mic %s", r.ctrl.State(), mic)
			return nil
		}},
		{"quit", "/quit", func(context.Context, *Reader, string) error {
			return errQuit
		}},
	}
}

// Reader reads console input line by line and turns it into controller calls.
// Lines starting with "/" are commands; anything else is sent as text.
type Reader struct {
	ctrl     session.Controller
	out      io.Writer
	commands map[string]command
	order    []command
}

// NewReader creates a Reader driving ctrl. Command feedback and errors are
// written to out.
func NewReader(ctrl session.Controller, out io.Writer) *Reader {
	r := &Reader{ctrl: ctrl, out: out, commands: make(map[string]command)}
	for _, c := range commands() {
		r.commands[c.name] = c
		r.order = append(r.order, c)
	}
	return r
}

// Run reads lines from in until /quit, EOF or ctx cancellation. /quit and
// EOF return nil; cancellation returns ctx.Err().
//
// Reading happens on a separate goroutine so a blocked terminal read does
// not delay shutdown.
func (r *Reader) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line := <-lines:
			if err := r.Handle(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				r.printf("[error] %v", err)
			}
		}
	}
}

// Handle executes a single input line. It returns errQuit for /quit.
func (r *Reader) Handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		if err := r.ctrl.SendText(line); err != nil {
			return fmt.Errorf("send text: %w", err)
		}
		return nil
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	name = strings.ToLower(name)
	c, ok := r.commands[name]
	if !ok {
		return fmt.Errorf("unknown command /%s (try /help)", name)
	}
	slog.Debug("console: command", "name", name)
	return c.run(ctx, r, strings.TrimSpace(arg))
}

func (r *Reader) printHelp() {
	var b strings.Builder
	b.WriteString("commands:")
	for _, c := range r.order {
		b.WriteString("\n  ")
		b.WriteString(c.usage)
	}
	b.WriteString("\n  anything else is sent as text")
	r.printf("%s", b.String())
}

func (r *Reader) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}
