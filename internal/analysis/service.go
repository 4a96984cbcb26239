package analysis

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/detect"
	"github.com/kapjain-rh/error-resolver/internal/resolve"
	"github.com/kapjain-rh/error-resolver/internal/session"
)

// Service attaches an Analyzer to each watched session and routes session
// output into it until the session ends.
type Service struct {
	logger     *logger.Logger
	set        *detect.Set
	cfg        Config
	dispatcher *resolve.Dispatcher
	notifier   Notifier

	mu        sync.Mutex
	analyzers map[string]*Analyzer
}

// NewService creates the analysis service shared by all sessions.
func NewService(set *detect.Set, cfg Config, dispatcher *resolve.Dispatcher, notifier Notifier, log *logger.Logger) *Service {
	return &Service{
		logger:     log.WithFields(zap.String("component", "analysis")),
		set:        set,
		cfg:        cfg,
		dispatcher: dispatcher,
		notifier:   notifier,
		analyzers:  make(map[string]*Analyzer),
	}
}

// Watch starts analyzing a session's output. Returns immediately; the watch
// ends when the session exits or the service closes.
func (s *Service) Watch(sess *session.Session) {
	analyzer := NewAnalyzer(sess.ID, s.set, s.cfg, s.dispatcher, s.notifier, s.logger)

	s.mu.Lock()
	s.analyzers[sess.ID] = analyzer
	s.mu.Unlock()

	subID, events := sess.Subscribe()

	go func() {
		defer func() {
			sess.Unsubscribe(subID)
			s.mu.Lock()
			delete(s.analyzers, sess.ID)
			s.mu.Unlock()
			analyzer.Close()
		}()

		for ev := range events {
			switch ev.Kind {
			case session.EventLine:
				analyzer.AddLine(ev.Data)
			case session.EventScreen:
				analyzer.AnalyzeNow(ev.Lines)
			case session.EventExit:
				return
			}
		}
	}()
}

// Close tears down every analyzer; in-flight passes are canceled.
func (s *Service) Close() {
	s.mu.Lock()
	analyzers := make([]*Analyzer, 0, len(s.analyzers))
	for _, a := range s.analyzers {
		analyzers = append(analyzers, a)
	}
	s.mu.Unlock()

	for _, a := range analyzers {
		a.Close()
	}
}
