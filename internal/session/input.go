package session

import (
	"strings"
)

// State is the input machine's mode.
type State int

const (
	// StateEditing accepts keystrokes into the edit buffer.
	StateEditing State = iota
	// StateAwaitingCompletion follows a submit; no input is accepted until
	// the machine re-enters StateEditing.
	StateAwaitingCompletion
	// StatePassthrough forwards all input verbatim to the shell.
	StatePassthrough
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateAwaitingCompletion:
		return "awaiting_completion"
	case StatePassthrough:
		return "passthrough"
	default:
		return "unknown"
	}
}

// InputKind identifies one input unit.
type InputKind int

const (
	// InputText is a printable key or a paste chunk.
	InputText InputKind = iota
	InputEnter
	InputBackspace
	InputUp
	InputDown
	// InputInterrupt is the conventional cancel-current-line signal (^C).
	InputInterrupt
	// InputEscape leaves passthrough mode.
	InputEscape
)

// Input is one unit fed to the machine: a key, a paste chunk, or a control
// sequence.
type Input struct {
	Kind InputKind
	Text string // set for InputText
}

// ActionKind identifies an output action produced by the machine.
type ActionKind int

const (
	// ActionEcho echoes text to the display.
	ActionEcho ActionKind = iota
	// ActionErase removes the last displayed character.
	ActionErase
	// ActionReplaceLine replaces the whole displayed edit line.
	ActionReplaceLine
	// ActionSubmit carries a full command to write to the shell.
	ActionSubmit
	// ActionForward carries raw bytes to write to the shell unmodified.
	ActionForward
	// ActionEnterPassthrough signals the session to stop line reassembly.
	ActionEnterPassthrough
	// ActionExitPassthrough signals the session to resume line reassembly.
	ActionExitPassthrough
)

// Action is one output the machine asks the session to perform.
type Action struct {
	Kind ActionKind
	Text string
}

// History holds previously submitted non-empty commands in submission order,
// plus a browse cursor. Cursor -1 means not browsing. Navigation never
// mutates the entries.
type History struct {
	entries []string
	cursor  int
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{cursor: -1}
}

// Append records a submitted command and resets the cursor.
func (h *History) Append(command string) {
	if command == "" {
		return
	}
	h.entries = append(h.entries, command)
	h.cursor = -1
}

// Up moves the cursor toward older entries and returns the entry there.
// Returns false when the history is empty or already at the oldest entry.
func (h *History) Up() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.cursor = len(h.entries) - 1
	case h.cursor > 0:
		h.cursor--
	default:
		// Already at the oldest entry, stay there.
	}
	return h.entries[h.cursor], true
}

// Down moves the cursor toward newer entries. Moving past the most recent
// entry stops browsing and returns the empty buffer.
func (h *History) Down() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	h.cursor++
	if h.cursor >= len(h.entries) {
		h.cursor = -1
		return "", true
	}
	return h.entries[h.cursor], true
}

// ResetCursor stops browsing without touching the entries.
func (h *History) ResetCursor() {
	h.cursor = -1
}

// Len returns the number of stored commands.
func (h *History) Len() int {
	return len(h.entries)
}

// InteractiveList matches submitted commands against the configured set of
// known interactive programs. A single-word entry matches the command name;
// a multi-word entry matches the command's leading words exactly.
type InteractiveList struct {
	entries [][]string
}

// NewInteractiveList parses the configured program list.
func NewInteractiveList(programs []string) *InteractiveList {
	l := &InteractiveList{}
	for _, p := range programs {
		fields := strings.Fields(p)
		if len(fields) > 0 {
			l.entries = append(l.entries, fields)
		}
	}
	return l
}

// Matches reports whether the command names a known interactive program.
func (l *InteractiveList) Matches(command string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	for _, entry := range l.entries {
		if len(fields) < len(entry) {
			continue
		}
		ok := true
		for i := range entry {
			if entry[i] != fields[i] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// Machine is the keystroke state machine: it owns the edit buffer and the
// history cursor, and mediates what is written to the shell versus echoed to
// the display.
type Machine struct {
	state       State
	buffer      []rune
	history     *History
	interactive *InteractiveList
}

// NewMachine creates a machine in StateEditing.
func NewMachine(interactive *InteractiveList) *Machine {
	if interactive == nil {
		interactive = NewInteractiveList(nil)
	}
	return &Machine{
		state:       StateEditing,
		history:     NewHistory(),
		interactive: interactive,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Buffer returns the current edit buffer.
func (m *Machine) Buffer() string {
	return string(m.buffer)
}

// History exposes the command history for inspection.
func (m *Machine) History() *History {
	return m.history
}

// CommandCompleted returns the machine to StateEditing after a submitted
// command's output settled or the fallback timer fired. No-op in passthrough.
func (m *Machine) CommandCompleted() {
	if m.state == StateAwaitingCompletion {
		m.state = StateEditing
	}
}

// Handle consumes one input unit and returns the resulting actions.
func (m *Machine) Handle(in Input) []Action {
	// Interrupt behaves the same everywhere: clear the line, go back to
	// editing, and still forward it so the child can react.
	if in.Kind == InputInterrupt {
		m.buffer = m.buffer[:0]
		m.history.ResetCursor()
		wasPassthrough := m.state == StatePassthrough
		m.state = StateEditing

		actions := []Action{{Kind: ActionForward, Text: "\x03"}}
		if wasPassthrough {
			actions = append(actions, Action{Kind: ActionExitPassthrough})
		}
		actions = append(actions, Action{Kind: ActionReplaceLine, Text: ""})
		return actions
	}

	switch m.state {
	case StatePassthrough:
		return m.handlePassthrough(in)
	case StateAwaitingCompletion:
		// Input is dropped until the machine re-enters editing.
		return nil
	default:
		return m.handleEditing(in)
	}
}

func (m *Machine) handlePassthrough(in Input) []Action {
	switch in.Kind {
	case InputEscape:
		m.state = StateEditing
		m.buffer = m.buffer[:0]
		return []Action{{Kind: ActionExitPassthrough}}
	case InputText:
		return []Action{{Kind: ActionForward, Text: in.Text}}
	case InputEnter:
		return []Action{{Kind: ActionForward, Text: "\n"}}
	case InputBackspace:
		return []Action{{Kind: ActionForward, Text: "\x7f"}}
	case InputUp:
		return []Action{{Kind: ActionForward, Text: "\x1b[A"}}
	case InputDown:
		return []Action{{Kind: ActionForward, Text: "\x1b[B"}}
	default:
		return nil
	}
}

func (m *Machine) handleEditing(in Input) []Action {
	switch in.Kind {
	case InputText:
		m.buffer = append(m.buffer, []rune(in.Text)...)
		return []Action{{Kind: ActionEcho, Text: in.Text}}

	case InputBackspace:
		if len(m.buffer) == 0 {
			return nil
		}
		m.buffer = m.buffer[:len(m.buffer)-1]
		return []Action{{Kind: ActionErase}}

	case InputUp:
		entry, ok := m.history.Up()
		if !ok {
			return nil
		}
		m.buffer = []rune(entry)
		return []Action{{Kind: ActionReplaceLine, Text: entry}}

	case InputDown:
		entry, ok := m.history.Down()
		if !ok {
			return nil
		}
		m.buffer = []rune(entry)
		return []Action{{Kind: ActionReplaceLine, Text: entry}}

	case InputEnter:
		command := string(m.buffer)
		m.buffer = m.buffer[:0]
		m.history.Append(command)
		m.history.ResetCursor()

		actions := []Action{{Kind: ActionSubmit, Text: command}}
		if m.interactive.Matches(command) {
			m.state = StatePassthrough
			actions = append(actions, Action{Kind: ActionEnterPassthrough})
		} else {
			m.state = StateAwaitingCompletion
		}
		return actions

	default:
		return nil
	}
}
