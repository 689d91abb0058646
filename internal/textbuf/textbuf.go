// Package textbuf implements the time-and-boundary-aware accumulator that
// decides when a captured span of terminal output is ready to be narrated.
package textbuf

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// Defaults for the flush-decision windows. Operators may tune both through
// the constructor options.
const (
	DefaultMinWindow      = 3 * time.Second
	DefaultPauseThreshold = 4 * time.Second
)

// Buffer accumulates text and timestamps to decide when a pending span
// should be flushed for narration. It is safe for concurrent use: the PTY
// read loop calls Add while a separate flush goroutine calls
// ShouldFlush/Flush/FlushAll.
type Buffer struct {
	minWindow      time.Duration
	pauseThreshold time.Duration

	mu            sync.Mutex
	chunks        []string
	bufLen        int
	windowStart   time.Time
	lastDataTime  time.Time
	forceFlushAll bool
}

// Option configures a Buffer at construction time.
type Option func(*Buffer)

// WithMinWindow overrides the default minimum accumulation window.
func WithMinWindow(d time.Duration) Option { return func(b *Buffer) { b.minWindow = d } }

// WithPauseThreshold overrides the default idle-pause threshold.
func WithPauseThreshold(d time.Duration) Option {
	return func(b *Buffer) { b.pauseThreshold = d }
}

// New returns an empty Buffer using the package defaults unless overridden.
func New(opts ...Option) *Buffer {
	b := &Buffer{
		minWindow:      DefaultMinWindow,
		pauseThreshold: DefaultPauseThreshold,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add appends text to the pending span, recording window_start on the first
// append since the last flush and always refreshing last_data_time.
func (b *Buffer) Add(text string, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if text != "" {
		b.chunks = append(b.chunks, text)
		b.bufLen += len(text)
	}
	if b.windowStart.IsZero() {
		b.windowStart = now
	}
	b.lastDataTime = now
}

// HasData reports whether the buffer currently holds any pending text.
func (b *Buffer) HasData() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bufLen > 0
}

func (b *Buffer) hasCompleteLines() bool {
	for _, c := range b.chunks {
		if strings.Contains(c, "\n") {
			return true
		}
	}
	return false
}

// ShouldFlush reports whether the buffer should be drained at time now: once
// the minimum window has passed and the buffer holds a newline, or once no
// data has arrived for the pause threshold. The minimum window alone never
// triggers a flush of a span without a newline.
func (b *Buffer) ShouldFlush(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bufLen == 0 {
		return false
	}

	hasComplete := b.hasCompleteLines()

	if !b.windowStart.IsZero() && now.Sub(b.windowStart) >= b.minWindow && hasComplete {
		b.forceFlushAll = false
		return true
	}

	// The force-flush-all path only wins once the stream has gone idle with
	// no newline at all; a span that is still receiving data without a
	// newline keeps accumulating past the minimum window.
	if !b.lastDataTime.IsZero() && now.Sub(b.lastDataTime) >= b.pauseThreshold {
		b.forceFlushAll = !hasComplete
		return true
	}

	return false
}

func (b *Buffer) joined() string {
	if len(b.chunks) == 0 {
		return ""
	}
	if len(b.chunks) > 1 {
		b.chunks = []string{strings.Join(b.chunks, "")}
	}
	return b.chunks[0]
}

// Flush returns the longest prefix ending at the last newline, unless
// force_flush_all is set (or there is no newline), in which case everything
// is returned. The returned text is removed from the buffer, after a
// trailing-incomplete-escape split is applied so the caller never receives
// a cut escape sequence.
func (b *Buffer) Flush() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bufLen == 0 {
		return ""
	}

	full := b.joined()
	lastNL := strings.LastIndexByte(full, '\n')

	var result, remaining string
	if lastNL == -1 || b.forceFlushAll {
		result = full
		remaining = ""
		b.forceFlushAll = false
	} else {
		result = full[:lastNL+1]
		remaining = full[lastNL+1:]
	}

	if remaining != "" {
		b.chunks = []string{remaining}
		b.bufLen = len(remaining)
		b.windowStart = time.Now()
	} else {
		b.chunks = nil
		b.bufLen = 0
		b.windowStart = time.Time{}
		b.lastDataTime = time.Time{}
	}

	safe, tail := splitIncompleteEscapeTail(result)
	if tail != "" {
		b.chunks = append([]string{tail}, b.chunks...)
		b.bufLen += len(tail)
		if b.windowStart.IsZero() {
			b.windowStart = time.Now()
		}
		b.lastDataTime = time.Now()
		if safe == "" {
			return ""
		}
	}

	return safe
}

// FlushAll unconditionally returns and clears all pending content.
func (b *Buffer) FlushAll() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bufLen == 0 {
		return ""
	}
	full := b.joined()
	b.chunks = nil
	b.bufLen = 0
	b.windowStart = time.Time{}
	b.lastDataTime = time.Time{}
	b.forceFlushAll = false
	return full
}

// tailPatterns are four of the five incomplete-escape detectors, checked
// against the tail of the text in priority order. The fifth (the 8-bit CSI
// introducer) is checked separately by findIncomplete8BitCSITail:
// regexp.MustCompile always matches against the text decoded as UTF-8, so a
// literal `\x9b` in a pattern can only match the two-byte UTF-8 encoding of
// U+009B, never the single raw byte 0x9b that the 8-bit form actually is.
var tailPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\x1b\][^\x07\x1b]*)$`),
	regexp.MustCompile(`(\x1b\[[0-9;:?<>]*[\x20-\x2f]*)$`),
	regexp.MustCompile(`(\x1b[\x20-\x2f]*)$`),
	regexp.MustCompile(`(\x1b)$`),
}

// splitIncompleteEscapeTail returns (safeText, tail) such that tail holds any
// trailing incomplete CSI/OSC/ESC-only/ESC+intermediates sequence.
func splitIncompleteEscapeTail(text string) (string, string) {
	if text == "" {
		return text, ""
	}
	if loc := tailPatterns[0].FindStringIndex(text); loc != nil {
		return text[:loc[0]], text[loc[0]:]
	}
	if loc := tailPatterns[1].FindStringIndex(text); loc != nil {
		return text[:loc[0]], text[loc[0]:]
	}
	if idx := findIncomplete8BitCSITail(text); idx >= 0 {
		return text[:idx], text[idx:]
	}
	if loc := tailPatterns[2].FindStringIndex(text); loc != nil {
		return text[:loc[0]], text[loc[0]:]
	}
	if loc := tailPatterns[3].FindStringIndex(text); loc != nil {
		return text[:loc[0]], text[loc[0]:]
	}
	return text, ""
}

// findIncomplete8BitCSITail returns the byte offset of a trailing raw 0x9b
// CSI introducer byte (optionally followed by parameter/intermediate bytes),
// or -1 if text does not end in one. It scans raw bytes directly rather than
// through a regexp, since 0x9b is not valid UTF-8 on its own.
func findIncomplete8BitCSITail(text string) int {
	end := len(text)
	for end > 0 {
		b := text[end-1]
		isParam := (b >= '0' && b <= '9') || b == ';' || b == ':' || b == '?' || b == '<' || b == '>'
		isInter := b >= 0x20 && b <= 0x2f
		if !isParam && !isInter {
			break
		}
		end--
	}
	if end > 0 && text[end-1] == 0x9b {
		return end - 1
	}
	return -1
}
