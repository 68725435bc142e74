package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/timoa/github-actions-gui/editor"
	"github.com/timoa/github-actions-gui/flow"
	"github.com/timoa/github-actions-gui/workflow"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 10 * time.Second

	// Request bodies carry a document plus JSON escaping.
	maxBodySize = 2 * workflow.MaxDocumentBytes

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	outboxSize = 16
)

// SessionFactory returns a fresh session for each websocket connection.
type SessionFactory func() *editor.Session

// Server exposes the editing core over HTTP: stateless JSON endpoints under
// /api and a message channel per editing session on /ws.
type Server struct {
	router     chi.Router
	log        *zap.Logger
	version    string
	newSession SessionFactory
	cache      *editor.ParseCache
	upgrader   websocket.Upgrader
}

// NewServer builds the router.
func NewServer(version string, newSession SessionFactory, cache *editor.ParseCache, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		router:     chi.NewRouter(),
		log:        log,
		version:    version,
		newSession: newSession,
		cache:      cache,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.routes()
	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.logRequests)
		r.Post("/parse", s.handleParse)
		r.Post("/format", s.handleFormat)
		r.Post("/lint", s.handleLint)
		r.Post("/graph", s.handleGraph)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("bridge listening", zap.String("addr", addr), zap.String("version", s.version))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("bridge stopped")
	return nil
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestId", middleware.GetReqID(r.Context())),
		)
	})
}

type errorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}

type sourceRequest struct {
	Content string `json:"content"`
}

type parseResponse struct {
	Document    workflow.Value `json:"document"`
	ParseErrors []string       `json:"parseErrors"`
}

type formatResponse struct {
	Content     string   `json:"content"`
	ParseErrors []string `json:"parseErrors"`
}

type lintResponse struct {
	Problems    workflow.LintErrors `json:"problems"`
	ParseErrors []string            `json:"parseErrors"`
}

type graphResponse struct {
	Graph       flow.Graph `json:"graph"`
	Order       []string   `json:"order"`
	ParseErrors []string   `json:"parseErrors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

// readSource decodes the request body and parses its content. It writes
// the error response itself and reports false on failure.
func (s *Server) readSource(w http.ResponseWriter, r *http.Request) (workflow.Result, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		} else {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		}
		return workflow.Result{}, false
	}
	if err := workflow.CheckContent([]byte(req.Content)); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return workflow.Result{}, false
	}

	res := s.cache.Parse(req.Content)
	if res.SyntaxError {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid YAML", Errors: res.Errors})
		return res, false
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	return res, true
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	res, ok := s.readSource(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, parseResponse{
		Document:    workflow.DocumentValue(res.Workflow),
		ParseErrors: res.Errors,
	})
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	res, ok := s.readSource(w, r)
	if !ok {
		return
	}
	text, err := workflow.Serialize(res.Workflow)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, formatResponse{Content: text, ParseErrors: res.Errors})
}

func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	res, ok := s.readSource(w, r)
	if !ok {
		return
	}
	problems := workflow.Lint(res.Workflow)
	if problems == nil {
		problems = workflow.LintErrors{}
	}
	writeJSON(w, http.StatusOK, lintResponse{Problems: problems, ParseErrors: res.Errors})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	res, ok := s.readSource(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, graphResponse{
		Graph:       flow.Project(res.Workflow),
		Order:       flow.Order(res.Workflow),
		ParseErrors: res.Errors,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	id := uuid.NewString()
	log := s.log.With(zap.String("session", id))
	log.Info("editing session opened", zap.String("remote", r.RemoteAddr))

	h := NewHandler(s.newSession(), log)
	out := make(chan Message, outboxSize)
	done := make(chan struct{})
	go writeLoop(conn, out, done, log)

	conn.SetReadLimit(maxBodySize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	send := func(m Message) bool {
		select {
		case out <- m:
			return true
		case <-done:
			return false
		}
	}

read:
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("ws read failed", zap.Error(err))
			}
			break
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			if !send(errorMessage(fmt.Errorf("invalid message: %w", err))) {
				break
			}
			continue
		}
		for _, reply := range h.Handle(r.Context(), msg) {
			if !send(reply) {
				break read
			}
		}
	}

	close(out)
	<-done
	_ = conn.Close()
	log.Info("editing session closed")
}

// writeLoop owns all writes to conn: replies from out and keepalive pings.
func writeLoop(conn *websocket.Conn, out <-chan Message, done chan<- struct{}, log *zap.Logger) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Warn("ws write failed", zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
