package session

import (
	"strings"
	"sync"

	"github.com/tuzig/vt10x"
)

// screenAccumulator feeds raw passthrough bytes into a virtual terminal so
// the visible screen can be analyzed after the interactive program exits.
// Best effort: scrollback is not kept, only the final visible state.
type screenAccumulator struct {
	mu   sync.Mutex
	term vt10x.Terminal
	cols int
	rows int
}

func newScreenAccumulator(cols, rows int) *screenAccumulator {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	return &screenAccumulator{
		term: vt10x.New(vt10x.WithSize(cols, rows)),
		cols: cols,
		rows: rows,
	}
}

// Write feeds raw output bytes to the virtual terminal.
func (s *screenAccumulator) Write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.term.Write(data)
}

// VisibleLines returns the rendered screen rows, trailing blank rows dropped.
func (s *screenAccumulator) VisibleLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]string, s.rows)
	for row := 0; row < s.rows; row++ {
		var chars []rune
		for col := 0; col < s.cols; col++ {
			g := s.term.Cell(col, row)
			if g.Char == 0 {
				chars = append(chars, ' ')
			} else {
				chars = append(chars, g.Char)
			}
		}
		lines[row] = strings.TrimRight(string(chars), " ")
	}

	last := len(lines)
	for last > 0 && lines[last-1] == "" {
		last--
	}
	return lines[:last]
}

// Reset replaces the virtual terminal with a blank one.
func (s *screenAccumulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term = vt10x.New(vt10x.WithSize(s.cols, s.rows))
}
