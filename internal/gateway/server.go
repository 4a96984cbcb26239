// Package gateway exposes the HTTP API and WebSocket stream: session
// lifecycle, input injection, and ranked resolution delivery. Rendering is
// the client's job; the gateway only moves data.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/analysis"
	"github.com/kapjain-rh/error-resolver/internal/common/config"
	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/events/bus"
	gwws "github.com/kapjain-rh/error-resolver/internal/gateway/websocket"
	"github.com/kapjain-rh/error-resolver/internal/notify"
	"github.com/kapjain-rh/error-resolver/internal/session"
	ws "github.com/kapjain-rh/error-resolver/pkg/websocket"
)

// Server is the HTTP/WebSocket gateway.
type Server struct {
	logger   *logger.Logger
	cfg      config.ServerConfig
	engine   *gin.Engine
	httpSrv  *http.Server
	manager  *session.Manager
	analysis *analysis.Service
	notifier *notify.Notifier

	hub        *gwws.Hub
	wsNotifier *gwws.Notifier
	hubCancel  context.CancelFunc
}

// NewServer wires the API routes and the WebSocket hub.
func NewServer(
	cfg config.ServerConfig,
	manager *session.Manager,
	analysisSvc *analysis.Service,
	notifier *notify.Notifier,
	eventBus bus.EventBus,
	log *logger.Logger,
) (*Server, error) {
	s := &Server{
		logger:   log.WithFields(zap.String("component", "gateway")),
		cfg:      cfg,
		manager:  manager,
		analysis: analysisSvc,
		notifier: notifier,
	}

	dispatcher := ws.NewDispatcher()
	gwws.RegisterHealthHandler(dispatcher)
	s.registerWSHandlers(dispatcher)

	s.hub = gwws.NewHub(dispatcher, log)
	wsNotifier, err := gwws.NewNotifier(eventBus, s.hub, log)
	if err != nil {
		return nil, fmt.Errorf("failed to attach hub to event bus: %w", err)
	}
	s.wsNotifier = wsNotifier

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.registerRoutes()

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
	}
	return s, nil
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start runs the hub and the HTTP listener. Blocks until the listener stops.
func (s *Server) Start() error {
	hubCtx, cancel := context.WithCancel(context.Background())
	s.hubCancel = cancel
	go s.hub.Run(hubCtx)

	s.logger.Info("gateway listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway listener failed: %w", err)
	}
	return nil
}

// Shutdown stops the listener and the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hubCancel != nil {
		s.hubCancel()
	}
	s.wsNotifier.Close()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	wsHandler := gwws.NewHandler(s.hub, s.logger)
	s.engine.GET("/ws", wsHandler.HandleConnection)

	api := s.engine.Group("/api/v1")
	{
		api.POST("/sessions", s.createSession)
		api.GET("/sessions", s.listSessions)
		api.GET("/sessions/:id", s.getSession)
		api.DELETE("/sessions/:id", s.stopSession)
		api.POST("/sessions/:id/input", s.sessionInput)
		api.GET("/resolutions", s.recentResolutions)
	}
}

type createSessionRequest struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
	WorkDir string   `json:"work_dir"`
	UsePTY  bool     `json:"use_pty"`
	Cols    int      `json:"cols"`
	Rows    int      `json:"rows"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	Shell     string    `json:"shell"`
	Running   bool      `json:"running"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

func toSessionResponse(sess *session.Session) sessionResponse {
	return sessionResponse{
		ID:        sess.ID,
		Shell:     sess.Shell(),
		Running:   sess.Running(),
		State:     sess.State().String(),
		StartedAt: sess.StartedAt(),
	}
}

func (s *Server) createSession(c *gin.Context) {
	// An empty body is fine: every field has a default.
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	sess, err := s.manager.Create(c.Request.Context(), session.Config{
		Command: req.Command,
		Args:    req.Args,
		WorkDir: req.WorkDir,
		UsePTY:  req.UsePTY,
		Cols:    req.Cols,
		Rows:    req.Rows,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Every session gets watched for errors and streamed to subscribers.
	s.analysis.Watch(sess)
	gwws.StreamSession(sess, s.hub, s.logger)

	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) listSessions(c *gin.Context) {
	sessions := s.manager.List()
	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionResponse(sess))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (s *Server) stopSession(c *gin.Context) {
	if err := s.manager.Stop(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type inputRequest struct {
	Kind string `json:"kind"` // text, enter, backspace, up, down, interrupt, escape
	Text string `json:"text"`
}

func parseInput(req inputRequest) (session.Input, error) {
	switch req.Kind {
	case "text":
		return session.Input{Kind: session.InputText, Text: req.Text}, nil
	case "enter":
		return session.Input{Kind: session.InputEnter}, nil
	case "backspace":
		return session.Input{Kind: session.InputBackspace}, nil
	case "up":
		return session.Input{Kind: session.InputUp}, nil
	case "down":
		return session.Input{Kind: session.InputDown}, nil
	case "interrupt":
		return session.Input{Kind: session.InputInterrupt}, nil
	case "escape":
		return session.Input{Kind: session.InputEscape}, nil
	default:
		return session.Input{}, fmt.Errorf("unknown input kind %q", req.Kind)
	}
}

func (s *Server) sessionInput(c *gin.Context) {
	sess, err := s.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	in, err := parseInput(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := sess.HandleInput(in); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": sess.State().String()})
}

func (s *Server) recentResolutions(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	c.JSON(http.StatusOK, gin.H{"resolutions": s.notifier.Recent(limit)})
}

// registerWSHandlers binds the request-frame actions served over WebSocket.
func (s *Server) registerWSHandlers(d *ws.Dispatcher) {
	d.RegisterFunc(ws.ActionSessionList, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		sessions := s.manager.List()
		out := make([]sessionResponse, 0, len(sessions))
		for _, sess := range sessions {
			out = append(out, toSessionResponse(sess))
		}
		return ws.NewResponse(msg.ID, msg.Action, gin.H{"sessions": out})
	})

	d.RegisterFunc(ws.ActionSessionInput, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		var req struct {
			SessionID string `json:"session_id"`
			inputRequest
		}
		if err := msg.ParsePayload(&req); err != nil {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, err.Error())
		}

		sess, err := s.manager.Get(req.SessionID)
		if err != nil {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, "session not found")
		}
		in, err := parseInput(req.inputRequest)
		if err != nil {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, err.Error())
		}
		if err := sess.HandleInput(in); err != nil {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeInternalError, err.Error())
		}
		return ws.NewResponse(msg.ID, msg.Action, gin.H{"state": sess.State().String()})
	})
}
