package session

// Reassembler turns an unbounded raw byte stream into discrete logical lines.
// The OS gives no line-buffering guarantee, so chunks can split anywhere,
// including inside a \r\n pair or a multi-byte rune; feeding the same bytes in
// any chunking yields the same lines.
//
// Terminator rules: \n ends the current line; \r\n ends it consuming both
// bytes; a bare \r not followed by \n clears the in-progress buffer without
// emitting it. Progress bars and npm-style spinners redraw with bare \r, so
// intermediate redraws are dropped and only the state before a true
// terminator is emitted.
type Reassembler struct {
	buf       []byte
	pendingCR bool
}

// NewReassembler returns an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends a chunk and returns the complete lines it produced, in order.
// The trailing unterminated remainder stays buffered.
func (r *Reassembler) Feed(chunk []byte) []string {
	var lines []string

	for _, b := range chunk {
		if r.pendingCR {
			r.pendingCR = false
			if b == '\n' {
				lines = append(lines, string(r.buf))
				r.buf = r.buf[:0]
				continue
			}
			// Bare \r: the line was overwritten, drop it.
			r.buf = r.buf[:0]
		}

		switch b {
		case '\n':
			lines = append(lines, string(r.buf))
			r.buf = r.buf[:0]
		case '\r':
			// Defer until the next byte decides \r\n vs overwrite.
			r.pendingCR = true
		default:
			r.buf = append(r.buf, b)
		}
	}

	return lines
}

// Partial returns the drawable in-progress line fragment.
func (r *Reassembler) Partial() string {
	return string(r.buf)
}

// MidLine reports whether the cursor sits inside an unterminated line.
func (r *Reassembler) MidLine() bool {
	return len(r.buf) > 0
}

// Flush returns and clears the pending partial line, if any. Used when a
// session ends with unterminated output.
func (r *Reassembler) Flush() (string, bool) {
	if len(r.buf) == 0 {
		r.pendingCR = false
		return "", false
	}
	line := string(r.buf)
	r.buf = r.buf[:0]
	r.pendingCR = false
	return line, true
}

// Reset discards all buffered state, used on mode switches.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
	r.pendingCR = false
}
