// Package bridge is the PTY orchestrator: it runs a child command attached
// to a pseudo-terminal, mirrors I/O with the real terminal, and drives
// sanitized output into the narration pipeline without blocking
// interactive use. The host's own stdin is placed in raw mode for the
// child's lifetime so keystrokes pass through unbuffered.
package bridge

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/lokutor-ai/vibebridge/internal/audioplayer"
	"github.com/lokutor-ai/vibebridge/internal/logging"
	"github.com/lokutor-ai/vibebridge/internal/narration"
	"github.com/lokutor-ai/vibebridge/internal/sanitize"
	"github.com/lokutor-ai/vibebridge/internal/textbuf"
)

// Narrator is the tool contract the orchestrator drives narration through.
// narration.Service satisfies it directly for in-process wiring; an
// MCP-client-backed adapter (see client.go) satisfies it for an
// out-of-process narration service.
type Narrator interface {
	NarrateText(ctx context.Context, prompt string, onChunk func(narration.Chunk)) (narration.NarrateResult, error)
}

// Config tunes the orchestrator's concurrency and timeout knobs.
type Config struct {
	NarrationConcurrency int
	NarrationTimeout     time.Duration
}

// DefaultConfig bounds in-flight narrations to 2, each with a 60s timeout.
func DefaultConfig() Config {
	return Config{NarrationConcurrency: 2, NarrationTimeout: 60 * time.Second}
}

// Orchestrator runs one child command in a PTY for the lifetime of Run.
type Orchestrator struct {
	narrator Narrator
	player   *audioplayer.Player
	logger   logging.Logger
	cfg      Config

	sanitizer *sanitize.Sanitizer
	buffer    *textbuf.Buffer

	// gate is a counting semaphore bounding in-flight narration requests to
	// cfg.NarrationConcurrency.
	gate chan struct{}

	pendingWG sync.WaitGroup
}

// New returns an Orchestrator. logger defaults to a no-op logger when nil.
func New(narrator Narrator, player *audioplayer.Player, cfg Config, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NoOp()
	}
	if cfg.NarrationConcurrency <= 0 {
		cfg.NarrationConcurrency = DefaultConfig().NarrationConcurrency
	}
	if cfg.NarrationTimeout <= 0 {
		cfg.NarrationTimeout = DefaultConfig().NarrationTimeout
	}
	return &Orchestrator{
		narrator:  narrator,
		player:    player,
		logger:    logger,
		cfg:       cfg,
		sanitizer: sanitize.New(),
		buffer:    textbuf.New(),
		gate:      make(chan struct{}, cfg.NarrationConcurrency),
	}
}

// Run starts command with args attached to a new PTY, mirrors I/O with the
// host terminal, and drives narration until the child exits. It returns the
// child's exit code.
func (o *Orchestrator) Run(ctx context.Context, command string, args []string) (int, error) {
	cmd := exec.Command(command, args...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return -1, fmt.Errorf("%w: %v", ErrPTYStart, err)
	}
	defer ptmx.Close()

	o.propagateSize(ptmx)

	sigwinch := make(chan os.Signal, 1)
	signal.Notify(sigwinch, syscall.SIGWINCH)
	defer signal.Stop(sigwinch)
	go func() {
		for range sigwinch {
			o.propagateSize(ptmx)
		}
	}()

	stdinFD := int(os.Stdin.Fd())
	rawState, rawErr := term.MakeRaw(stdinFD)
	rawModeEntered := rawErr == nil
	if rawModeEntered {
		defer term.Restore(stdinFD, rawState)
	} else {
		o.logger.Warn("bridge: raw mode unavailable", "err", ErrRawModeUnavailable)
	}

	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigterm)
	go func() {
		<-sigterm
		if rawModeEntered {
			term.Restore(stdinFD, rawState)
		}
		cmd.Process.Kill()
	}()

	go io.Copy(ptmx, os.Stdin)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go o.flushLoop(ctx)

	o.copyAndCapture(ptmx)

	err = cmd.Wait()

	o.finalFlush(ctx)
	o.waitPending(5 * time.Second)

	if o.player != nil {
		o.player.WaitForCompletion(context.Background(), 2*time.Second)
	}

	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		return -1, fmt.Errorf("bridge: child wait: %w", err)
	}
	return exitCode, nil
}

// copyAndCapture tees PTY output to stdout (at full native latency) and to
// the sanitizer+buffer, in that order, so interactive responsiveness never
// waits on narration.
func (o *Orchestrator) copyAndCapture(ptmx *os.File) {
	buf := make([]byte, 8192)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			os.Stdout.Write(chunk)
			clean := o.sanitizer.Clean(string(chunk))
			o.buffer.Add(clean, time.Now())
		}
		if err != nil {
			return
		}
	}
}

// flushLoop polls the buffer's flush decision on a 100ms tick.
func (o *Orchestrator) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if o.buffer.ShouldFlush(now) {
				text := o.buffer.Flush()
				if text != "" {
					o.scheduleNarration(ctx, text)
				}
			}
		}
	}
}

// finalFlush force-flushes any remaining buffered content at child exit and
// schedules one last narration call.
func (o *Orchestrator) finalFlush(ctx context.Context) {
	text := o.buffer.FlushAll()
	if text != "" {
		o.scheduleNarration(ctx, text)
	}
}

// scheduleNarration runs one narration call on a background goroutine,
// bounded by the concurrency gate and a per-request timeout. The gate is
// acquired before the goroutine is spawned so requests start (and their
// audio plays) in schedule order; the PTY mirror runs on its own goroutine
// and is never blocked by this wait. Abandoned (timed-out) requests simply
// have their audio skipped.
func (o *Orchestrator) scheduleNarration(ctx context.Context, text string) {
	select {
	case o.gate <- struct{}{}:
	case <-ctx.Done():
		return
	}
	o.pendingWG.Add(1)

	go func() {
		defer o.pendingWG.Done()
		defer func() { <-o.gate }()

		reqCtx, cancel := context.WithTimeout(ctx, o.cfg.NarrationTimeout)
		defer cancel()

		// Playback happens per-chunk via onChunk below; the terminal
		// NarrateResult carries the same audio concatenated and is not
		// separately enqueued.
		_, err := o.narrator.NarrateText(reqCtx, text, func(c narration.Chunk) {
			if o.player != nil {
				o.player.Enqueue(c.AudioBytes)
			}
		})
		if err != nil {
			o.logger.Warn("bridge: narration failed", "err", err)
		}
	}()
}

func (o *Orchestrator) propagateSize(ptmx *os.File) {
	cols, rows, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return
	}
	pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// waitPending blocks for pending narration tasks to complete, bounded by
// timeout.
func (o *Orchestrator) waitPending(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		o.pendingWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		o.logger.Warn("bridge: pending narration tasks did not finish before teardown")
	}
}
