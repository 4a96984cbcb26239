// Package session owns the child shell process: spawning, raw output
// reassembly into logical lines, the keystroke state machine, and the
// passthrough mode used while interactive sub-programs run.
package session

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
)

// Config holds per-session shell configuration.
type Config struct {
	Command             string
	Args                []string
	WorkDir             string
	UsePTY              bool
	Cols                int
	Rows                int
	FallbackPromptDelay time.Duration
	InteractivePrograms []string
}

// DefaultConfig returns the default session configuration.
func DefaultConfig(workDir string) Config {
	return Config{
		WorkDir:             workDir,
		Cols:                80,
		Rows:                24,
		FallbackPromptDelay: 300 * time.Millisecond,
	}
}

// EventKind identifies one session event.
type EventKind int

const (
	// EventLine is one complete reassembled output line.
	EventLine EventKind = iota
	// EventPartial is the drawable in-progress line fragment.
	EventPartial
	// EventRaw is unprocessed passthrough output.
	EventRaw
	// EventScreen carries the visible screen lines captured while in
	// passthrough, emitted once on leaving it.
	EventScreen
	// EventEcho is display feedback for user input (echo, erase, redraw).
	EventEcho
	// EventExit signals that the shell process ended.
	EventExit
)

// Event is one unit delivered to session subscribers.
type Event struct {
	Kind     EventKind
	Data     string
	Lines    []string // set for EventScreen
	ExitCode int      // set for EventExit
}

// Session is one spawned shell process with its input/output channels, the
// line reassemblers, and the input state machine. Exclusively owned by the
// manager; never shared across sessions.
type Session struct {
	ID        string
	logger    *logger.Logger
	config    Config
	shell     string
	shellArgs []string

	cmd   *exec.Cmd
	ptmx  *os.File       // set when UsePTY
	stdin io.WriteCloser // set when piped

	// Output path. outMu serializes all output processing so lines are
	// reassembled strictly in arrival order.
	outMu       sync.Mutex
	stdoutRe    *Reassembler
	stderrRe    *Reassembler
	screen      *screenAccumulator
	passthrough bool

	// Input path.
	inputMu sync.Mutex
	machine *Machine

	fallbackMu sync.Mutex
	fallback   *time.Timer

	subMu       sync.RWMutex
	subscribers map[string]chan Event

	mu        sync.RWMutex
	running   bool
	stopping  bool
	exitCode  int
	startedAt time.Time
	doneCh    chan struct{}
}

// NewSession spawns the shell and starts its output readers.
func NewSession(cfg Config, log *logger.Logger) (*Session, error) {
	shell := cfg.Command
	args := cfg.Args
	if shell == "" {
		shell, args = detectShell()
	}
	if cfg.FallbackPromptDelay <= 0 {
		cfg.FallbackPromptDelay = 300 * time.Millisecond
	}

	s := &Session{
		ID:          uuid.New().String(),
		config:      cfg,
		shell:       shell,
		shellArgs:   args,
		stdoutRe:    NewReassembler(),
		stderrRe:    NewReassembler(),
		screen:      newScreenAccumulator(cfg.Cols, cfg.Rows),
		machine:     NewMachine(NewInteractiveList(cfg.InteractivePrograms)),
		subscribers: make(map[string]chan Event),
		doneCh:      make(chan struct{}),
	}
	s.logger = log.WithSessionID(s.ID).WithFields(zap.String("component", "session"))

	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) start() error {
	s.cmd = exec.Command(s.shell, s.shellArgs...)
	s.cmd.Dir = s.config.WorkDir
	s.cmd.Env = buildShellEnv(s.config.WorkDir)

	if s.config.UsePTY {
		ptmx, err := pty.StartWithSize(s.cmd, &pty.Winsize{
			Cols: uint16(s.config.Cols),
			Rows: uint16(s.config.Rows),
		})
		if err != nil {
			return fmt.Errorf("failed to start PTY shell: %w", err)
		}
		s.ptmx = ptmx
		go s.readOutput(ptmx, s.stdoutRe)
	} else {
		stdin, err := s.cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("failed to open shell stdin: %w", err)
		}
		stdout, err := s.cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("failed to open shell stdout: %w", err)
		}
		stderr, err := s.cmd.StderrPipe()
		if err != nil {
			return fmt.Errorf("failed to open shell stderr: %w", err)
		}
		if err := s.cmd.Start(); err != nil {
			return fmt.Errorf("failed to start shell: %w", err)
		}
		s.stdin = stdin
		go s.readOutput(stdout, s.stdoutRe)
		go s.readOutput(stderr, s.stderrRe)
	}

	s.mu.Lock()
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("shell session started",
		zap.String("shell", s.shell),
		zap.String("cwd", s.config.WorkDir),
		zap.Bool("pty", s.config.UsePTY),
		zap.Int("pid", s.cmd.Process.Pid))

	go s.waitForExit()
	return nil
}

// Running reports whether the shell process is alive.
func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// StartedAt returns when the shell was spawned.
func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// Shell returns the spawned shell command.
func (s *Session) Shell() string {
	return s.shell
}

// State returns the input machine's current state.
func (s *Session) State() State {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return s.machine.State()
}

// Done is closed when the shell process has exited and teardown finished.
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}

// ExitCode returns the shell's exit code, valid after Done is closed.
func (s *Session) ExitCode() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exitCode
}

// Subscribe registers an event channel and returns its subscription ID.
// Slow subscribers drop events rather than block output processing.
func (s *Session) Subscribe() (string, <-chan Event) {
	ch := make(chan Event, 256)
	id := uuid.New().String()

	s.subMu.Lock()
	s.subscribers[id] = ch
	s.subMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber.
func (s *Session) Unsubscribe(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		delete(s.subscribers, id)
		close(ch)
	}
}

func (s *Session) broadcast(ev Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// HandleInput feeds one input unit through the state machine and performs
// the resulting actions.
func (s *Session) HandleInput(in Input) error {
	s.inputMu.Lock()
	actions := s.machine.Handle(in)
	s.inputMu.Unlock()

	for _, a := range actions {
		switch a.Kind {
		case ActionEcho:
			s.broadcast(Event{Kind: EventEcho, Data: a.Text})
		case ActionErase:
			s.broadcast(Event{Kind: EventEcho, Data: "\b \b"})
		case ActionReplaceLine:
			s.broadcast(Event{Kind: EventEcho, Data: "\r\x1b[K" + a.Text})
		case ActionSubmit:
			if err := s.write(a.Text + "\n"); err != nil {
				return err
			}
			s.armFallbackTimer()
		case ActionForward:
			if err := s.write(a.Text); err != nil {
				return err
			}
		case ActionEnterPassthrough:
			s.setPassthrough(true)
		case ActionExitPassthrough:
			s.setPassthrough(false)
		}
	}
	return nil
}

// write sends raw bytes to the shell's input channel.
func (s *Session) write(data string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return fmt.Errorf("session %s: shell not running", s.ID)
	}

	var err error
	if s.ptmx != nil {
		_, err = s.ptmx.Write([]byte(data))
	} else {
		_, err = s.stdin.Write([]byte(data))
	}
	if err != nil {
		return fmt.Errorf("failed to write to shell: %w", err)
	}
	return nil
}

// setPassthrough flips line reassembly on or off. Leaving passthrough emits
// the captured screen for one post-hoc analysis pass.
func (s *Session) setPassthrough(on bool) {
	s.outMu.Lock()
	if s.passthrough == on {
		s.outMu.Unlock()
		return
	}
	s.passthrough = on

	var screenLines []string
	if !on {
		screenLines = s.screen.VisibleLines()
		s.screen.Reset()
	}
	s.stdoutRe.Reset()
	s.stderrRe.Reset()
	s.outMu.Unlock()

	s.logger.Debug("passthrough mode changed", zap.Bool("passthrough", on))
	if !on && len(screenLines) > 0 {
		s.broadcast(Event{Kind: EventScreen, Lines: screenLines})
	}
}

// readOutput pumps one output channel. Reassembly order within a channel is
// arrival order; interleaving across channels is serialized by outMu.
func (s *Session) readOutput(r io.Reader, re *Reassembler) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.handleOutput(re, buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("shell read ended", zap.Error(err))
			}
			return
		}
	}
}

func (s *Session) handleOutput(re *Reassembler, data []byte) {
	s.outMu.Lock()

	if s.passthrough {
		s.screen.Write(data)
		raw := string(data)
		s.outMu.Unlock()
		s.broadcast(Event{Kind: EventRaw, Data: raw})
		return
	}

	lines := re.Feed(data)
	partial := re.Partial()
	s.outMu.Unlock()

	// Real output restarts the fallback timer: the machine returns to
	// editing only after the shell goes quiet again.
	s.armFallbackTimer()

	for _, line := range lines {
		s.broadcast(Event{Kind: EventLine, Data: line})
	}
	if partial != "" {
		s.broadcast(Event{Kind: EventPartial, Data: partial})
	}
}

// armFallbackTimer (re)starts the liveness timer that returns the input
// machine to editing. A command that produces no output at all still frees
// the prompt after the configured delay.
func (s *Session) armFallbackTimer() {
	s.fallbackMu.Lock()
	defer s.fallbackMu.Unlock()

	if s.fallback != nil {
		s.fallback.Stop()
	}
	s.fallback = time.AfterFunc(s.config.FallbackPromptDelay, func() {
		s.inputMu.Lock()
		s.machine.CommandCompleted()
		s.inputMu.Unlock()
	})
}

func (s *Session) cancelFallbackTimer() {
	s.fallbackMu.Lock()
	defer s.fallbackMu.Unlock()
	if s.fallback != nil {
		s.fallback.Stop()
		s.fallback = nil
	}
}

func (s *Session) waitForExit() {
	err := s.cmd.Wait()

	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}

	s.mu.Lock()
	s.running = false
	s.exitCode = exitCode
	stopping := s.stopping
	s.mu.Unlock()

	s.cancelFallbackTimer()

	// Unterminated trailing output still counts as a line.
	s.outMu.Lock()
	var tail []string
	if line, ok := s.stdoutRe.Flush(); ok {
		tail = append(tail, line)
	}
	if line, ok := s.stderrRe.Flush(); ok {
		tail = append(tail, line)
	}
	s.outMu.Unlock()
	for _, line := range tail {
		s.broadcast(Event{Kind: EventLine, Data: line})
	}

	if stopping {
		s.logger.Info("shell session stopped", zap.Int("exit_code", exitCode))
	} else {
		s.logger.Info("shell process exited", zap.Int("exit_code", exitCode))
	}
	s.broadcast(Event{Kind: EventExit, ExitCode: exitCode})
	close(s.doneCh)
}

// Stop tears the session down: the child is terminated, pending timers are
// canceled, and no event is delivered after Done closes.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		<-s.doneCh
		return nil
	}
	s.stopping = true
	running := s.running
	s.mu.Unlock()

	s.cancelFallbackTimer()
	if !running {
		return nil
	}

	s.logger.Info("stopping shell session")
	if s.ptmx != nil {
		_ = s.ptmx.Close() // SIGHUP to the child
	} else if s.stdin != nil {
		_ = s.stdin.Close()
	}

	select {
	case <-s.doneCh:
	case <-time.After(5 * time.Second):
		s.logger.Warn("shell stop timeout, force killing")
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		<-s.doneCh
	}
	return nil
}

// detectShell returns the user's shell, falling back through common paths.
func detectShell() (string, []string) {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell, []string{"-i"}
	}
	for _, sh := range []string{"/bin/bash", "/bin/zsh", "/bin/sh"} {
		if _, err := os.Stat(sh); err == nil {
			return sh, []string{"-i"}
		}
	}
	return "/bin/sh", nil
}

func buildShellEnv(workDir string) []string {
	env := os.Environ()
	env = append(env, "PWD="+workDir)
	env = append(env, "TERM=xterm-256color")
	return env
}
