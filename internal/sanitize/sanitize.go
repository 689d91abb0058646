// Package sanitize strips terminal escape sequences and disruptive control
// and Unicode code points from a byte stream, one chunk at a time, while
// carrying parser state across chunk boundaries.
package sanitize

import "unicode/utf8"

type state int

const (
	stateText state = iota
	stateEsc
	stateEscInter
	stateCSI
	stateOSC
	stateOSCEsc
	stateString
	stateStringEsc
)

// Sanitizer is a stateful ANSI/control-sequence stripper. It is safe to feed
// chunks of a byte stream to it in order; the result is identical to
// cleaning the concatenation of all chunks in one call. Internally it works
// on raw bytes, not decoded runes: PTY reads are cut at arbitrary byte
// offsets, which can land in the middle of a multi-byte UTF-8 character or
// (for the 8-bit C1 control forms) produce a single byte that is not valid
// UTF-8 on its own.
type Sanitizer struct {
	state state

	// pending holds a trailing run of bytes from the previous call that
	// looked like the start of a multi-byte UTF-8 character but ran out of
	// chunk before it could be decoded. It is prepended to the next call's
	// input so a character split across two PTY reads still decodes whole.
	pending []byte
}

// New returns a Sanitizer starting in the text state.
func New() *Sanitizer {
	return &Sanitizer{state: stateText}
}

// Reset returns the sanitizer to its initial state.
func (s *Sanitizer) Reset() {
	s.state = stateText
	s.pending = nil
}

// Clean consumes chunk and returns the plain-text bytes it yields, advancing
// internal state so a later call continues correctly across any split point,
// including one that falls in the middle of a multi-byte escape sequence or
// a multi-byte UTF-8 character.
func (s *Sanitizer) Clean(chunk string) string {
	data := []byte(chunk)
	if len(s.pending) > 0 {
		data = append(s.pending, data...)
		s.pending = nil
	}

	out := make([]byte, 0, len(data))
	state := s.state
	i := 0

	for i < len(data) {
		b := data[i]

		if state == stateText && b >= 0x80 {
			// The 8-bit C1 control forms are always in the UTF-8
			// continuation-byte range (0x80-0xBF), so they can never be the
			// lead byte of a valid multi-byte character; check for them by
			// raw byte value before attempting to decode a rune.
			switch b {
			case 0x9b:
				state = stateCSI
				i++
				continue
			case 0x9d:
				state = stateOSC
				i++
				continue
			case 0x90, 0x98, 0x9e, 0x9f:
				state = stateString
				i++
				continue
			}

			tail := data[i:]
			if !utf8.FullRune(tail) {
				// A genuine multi-byte lead byte (or valid prefix of one)
				// with not enough trailing bytes yet in this chunk. Hold it
				// back whole for the next Clean call instead of guessing.
				s.pending = append([]byte(nil), tail...)
				break
			}
			r, size := utf8.DecodeRune(tail)
			if r == utf8.RuneError && size == 1 {
				i++ // stray byte, not valid UTF-8 on its own
				continue
			}
			if isDisruptive(r) {
				i += size
				continue
			}
			out = append(out, tail[:size]...)
			i += size
			continue
		}

		switch state {
		case stateText:
			switch {
			case b == 0x1b:
				state = stateEsc
			case b < 0x20 && b != '\n' && b != '\t':
				// drop
			case b == 0x7f:
				// drop (DEL)
			default:
				out = append(out, b)
			}

		case stateEsc:
			switch {
			case b == '[':
				state = stateCSI
			case b == ']':
				state = stateOSC
			case b == 'P' || b == 'X' || b == '^' || b == '_':
				state = stateString
			case b == '\\':
				state = stateText
			case b >= ' ' && b <= '/':
				state = stateEscInter
			default:
				// any other final byte, including single-char ESC sequences
				state = stateText
			}

		case stateEscInter:
			if b >= '@' && b <= '~' {
				state = stateText
			}

		case stateCSI:
			switch {
			case b == 0x1b:
				state = stateEsc
			case b >= 0x40 && b <= 0x7e:
				state = stateText
			}

		case stateOSC:
			switch {
			case b == 0x07 || b == 0x9c:
				state = stateText
			case b == 0x1b:
				state = stateOSCEsc
			}

		case stateOSCEsc:
			switch {
			case b == '\\' || b == 0x07 || b == 0x9c:
				state = stateText
			case b == 0x1b:
				state = stateOSCEsc
			default:
				// A lone ESC inside the string restarts escape parsing:
				// re-read this byte as the one following a fresh ESC.
				state = stateEsc
				continue
			}

		case stateString:
			switch {
			case b == 0x07 || b == 0x9c:
				state = stateText
			case b == 0x1b:
				state = stateStringEsc
			}

		case stateStringEsc:
			switch {
			case b == '\\' || b == 0x07 || b == 0x9c:
				state = stateText
			case b == 0x1b:
				state = stateStringEsc
			default:
				// A lone ESC inside the string restarts escape parsing:
				// re-read this byte as the one following a fresh ESC.
				state = stateEsc
				continue
			}
		}
		i++
	}

	s.state = state
	return string(out)
}

// IsIdle reports whether the sanitizer is currently in the plain-text state
// with no incomplete escape sequence or UTF-8 character held back.
func (s *Sanitizer) IsIdle() bool {
	return s.state == stateText && len(s.pending) == 0
}

// isDisruptive reports whether ch is the Unicode replacement character, a
// zero-width code point, or a bidirectional-override control, all of which
// are stripped even though they are not classic terminal escapes.
func isDisruptive(ch rune) bool {
	switch ch {
	case 0xFFFD, // replacement character
		0x200B, 0x200C, 0x200D, 0xFEFF, // zero-width space/non-joiner/joiner, BOM
		0x202A, 0x202B, 0x202C, 0x202D, 0x202E, // bidi embedding/override
		0x2066, 0x2067, 0x2068, 0x2069: // bidi isolates
		return true
	}
	return false
}
