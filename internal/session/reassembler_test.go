package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func feedAll(r *Reassembler, input string) []string {
	return r.Feed([]byte(input))
}

func feedByteAtATime(r *Reassembler, input string) []string {
	var lines []string
	for i := 0; i < len(input); i++ {
		lines = append(lines, r.Feed([]byte{input[i]})...)
	}
	return lines
}

func TestReassembler_PlainNewlines(t *testing.T) {
	r := NewReassembler()
	lines := feedAll(r, "one\ntwo\nthree")

	assert.Equal(t, []string{"one", "two"}, lines)
	assert.Equal(t, "three", r.Partial())
	assert.True(t, r.MidLine())
}

func TestReassembler_CRLF(t *testing.T) {
	r := NewReassembler()
	lines := feedAll(r, "one\r\ntwo\r\n")

	assert.Equal(t, []string{"one", "two"}, lines)
	assert.False(t, r.MidLine())
}

func TestReassembler_BareCRDropsLine(t *testing.T) {
	r := NewReassembler()
	lines := feedAll(r, "downloading 10%\rdownloading 99%\rdone\n")

	// Intermediate redraws are dropped, only the final state is emitted.
	assert.Equal(t, []string{"done"}, lines)
}

func TestReassembler_BareCRNeverEmits(t *testing.T) {
	r := NewReassembler()
	lines := feedAll(r, "spinner\r")
	assert.Empty(t, lines)

	// The overwrite only lands once the next byte proves it was not \r\n.
	lines = feedAll(r, "x")
	assert.Empty(t, lines)
	assert.Equal(t, "x", r.Partial())
}

func TestReassembler_CRLFSplitAcrossChunks(t *testing.T) {
	r := NewReassembler()

	lines := feedAll(r, "hello\r")
	assert.Empty(t, lines)

	lines = feedAll(r, "\nworld\n")
	assert.Equal(t, []string{"hello", "world"}, lines)
}

func TestReassembler_ChunkBoundaryIndependence(t *testing.T) {
	inputs := []string{
		"one\ntwo\nthree",
		"a\r\nb\r\nc\r\n",
		"progress\rprogress\rfinal\n",
		"split\r",
		"mixed\r\nbare\rline\npartial",
		"unicode héllo wörld\n",
	}

	for _, input := range inputs {
		whole := NewReassembler()
		perByte := NewReassembler()

		wholeLines := feedAll(whole, input)
		byteLines := feedByteAtATime(perByte, input)

		assert.Equal(t, wholeLines, byteLines, "input %q", input)
		assert.Equal(t, whole.Partial(), perByte.Partial(), "input %q", input)
	}
}

func TestReassembler_Flush(t *testing.T) {
	r := NewReassembler()
	feedAll(r, "tail without newline")

	line, ok := r.Flush()
	assert.True(t, ok)
	assert.Equal(t, "tail without newline", line)

	_, ok = r.Flush()
	assert.False(t, ok)
}

func TestReassembler_Reset(t *testing.T) {
	r := NewReassembler()
	feedAll(r, "pending\r")
	r.Reset()

	lines := feedAll(r, "\n")
	assert.Equal(t, []string{""}, lines)
}
