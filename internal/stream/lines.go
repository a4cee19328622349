package stream

import "strings"

// LineBuffer reassembles complete lines from an arbitrarily chunked byte
// stream. A chunk may end mid-line, mid-token, or mid-rune; the trailing
// fragment is retained and prepended to the next chunk.
type LineBuffer struct {
	rest string
}

// Feed appends a chunk and returns every complete line it closed, in order.
// Lines are split on '\n'; a trailing '\r' is stripped so CRLF streams
// behave like LF streams.
func (b *LineBuffer) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	data := b.rest + string(chunk)
	idx := strings.LastIndexByte(data, '\n')
	if idx < 0 {
		b.rest = data
		return nil
	}
	b.rest = data[idx+1:]

	lines := strings.Split(data[:idx], "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Flush returns the unterminated trailing fragment, if any, and resets the
// buffer. Called once at stream end so a final line without a newline is
// not lost.
func (b *LineBuffer) Flush() (string, bool) {
	if b.rest == "" {
		return "", false
	}
	line := strings.TrimSuffix(b.rest, "\r")
	b.rest = ""
	return line, true
}

// Pending reports whether an incomplete fragment is buffered.
func (b *LineBuffer) Pending() bool { return b.rest != "" }
