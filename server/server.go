// Package server exposes the chat engine over HTTP using gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/emotibot/core"
	"github.com/hupe1980/emotibot/engine"
	"github.com/hupe1980/emotibot/face"
	"github.com/hupe1980/emotibot/logging"
	"github.com/hupe1980/emotibot/mood"
)

// InternalErrorText is the only detail a client sees for a 500.
const InternalErrorText = "Internal server error"

// ChatEngine is what the server needs from the engine.
type ChatEngine interface {
	Chat(ctx context.Context, message, conversationID string) (*engine.Result, error)
	Conversation(ctx context.Context, id string) (*core.Conversation, error)
	Render(m core.MoodVector) face.Image
}

// Options configures the Server.
type Options struct {
	// Addr is the listen address, e.g. ":5000".
	Addr string
	// CORS allows requests from any origin.
	CORS bool
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// ReadTimeout and WriteTimeout bound a single HTTP exchange.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
	Logger          logging.Logger
}

// Server serves the chat API.
type Server struct {
	engine     ChatEngine
	opts       Options
	router     *gin.Engine
	httpServer *http.Server
}

// New creates a Server for e.
func New(e ChatEngine, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:            ":5000",
		CORS:            true,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	s := &Server{
		engine: e,
		opts:   opts,
		router: gin.New(),
	}

	s.router.Use(gin.CustomRecovery(s.recoverPanic), requestLogger(opts.Logger))
	if opts.CORS {
		cfg := cors.DefaultConfig()
		cfg.AllowAllOrigins = true
		cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
		cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
		s.router.Use(cors.New(cfg))
	}

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.opts.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := s.router.Group("/api")
	{
		api.POST("/chat", s.handleChat)
		api.GET("/conversations/:id", s.handleConversation)
		api.GET("/face", s.handleFace)
	}
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	s.opts.Logger.Info("starting emotibot", "addr", s.opts.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()

	s.opts.Logger.Info("stopping emotibot")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// ChatResponse is the body of a successful POST /api/chat.
type ChatResponse struct {
	Response       string          `json:"response"`
	ConversationID string          `json:"conversation_id"`
	EmotionState   core.MoodVector `json:"emotion_state"`
	SVGFace        string          `json:"svg_face"`
	Face           face.Image      `json:"face"`
}

// ConversationResponse is the body of GET /api/conversations/:id.
type ConversationResponse struct {
	ConversationID string                    `json:"conversation_id"`
	EmotionState   core.MoodVector           `json:"emotion_state"`
	Levels         map[core.Field]mood.Level `json:"levels"`
	Dominant       core.Field                `json:"dominant"`
	Messages       []core.Turn               `json:"messages"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message is required"})
		return
	}

	res, err := s.engine.Chat(c.Request.Context(), req.Message, req.ConversationID)
	if err != nil {
		if errors.Is(err, core.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message is required"})
			return
		}
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		Response:       res.Response,
		ConversationID: res.ConversationID,
		EmotionState:   res.Mood,
		SVGFace:        res.Face.SVG(),
		Face:           res.Face,
	})
}

func (s *Server) handleConversation(c *gin.Context) {
	conv, err := s.engine.Conversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
			return
		}
		s.internalError(c, err)
		return
	}

	cl := mood.Classify(conv.Mood)
	messages := conv.History()
	if messages == nil {
		messages = []core.Turn{}
	}

	c.JSON(http.StatusOK, ConversationResponse{
		ConversationID: conv.ID,
		EmotionState:   conv.Mood,
		Levels:         cl.Levels,
		Dominant:       cl.Dominant,
		Messages:       messages,
	})
}

// handleFace renders the face for query-string mood values. Missing values
// read as neutral.
func (s *Server) handleFace(c *gin.Context) {
	m := core.NeutralMood()
	for _, f := range core.Fields {
		raw, ok := c.GetQuery(string(f))
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid %s: %q", f, raw)})
			return
		}
		m = m.With(f, v)
	}

	img := s.engine.Render(m)
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, img)
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", []byte(img.SVG()))
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.opts.Logger.Error("request failed", "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: InternalErrorText})
}

func (s *Server) recoverPanic(c *gin.Context, recovered any) {
	s.internalError(c, fmt.Errorf("panic: %v", recovered))
}

func requestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
