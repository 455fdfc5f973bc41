// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jeranaias/polychat/internal/chat"
	"github.com/jeranaias/polychat/internal/logger"
	"github.com/jeranaias/polychat/internal/mentor"
	"github.com/jeranaias/polychat/internal/metrics"
	"github.com/jeranaias/polychat/internal/model"
	"github.com/jeranaias/polychat/internal/store"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address for the HTTP server.
	DefaultAddr = "127.0.0.1:8787"

	// MaxRequestBodySize bounds JSON request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// Version is the server version.
	Version = "0.3.0"
)

// ============================================================================
// DEPENDENCIES
// ============================================================================

// ChatService is the orchestrator surface used by the chat and
// conversation routes.
type ChatService interface {
	Send(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error)
	Conversation(ctx context.Context, conversationID, userID string) (*chat.ConversationResult, error)
	Messages(ctx context.Context, conversationID, userID string, page model.MessagePage) ([]model.HistoryItem, error)
	ListConversations(ctx context.Context, userID string, opts model.ListOptions) ([]model.ConversationSummary, error)
	CreateConversation(ctx context.Context, userID, mentorID string) (*model.ConversationSummary, error)
	RenameConversation(ctx context.Context, userID, conversationID, title string) (*model.ConversationSummary, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error
}

// CatalogService manages per-user chat model lists.
type CatalogService interface {
	List(ctx context.Context, userID string) ([]model.ChatModel, error)
	Add(ctx context.Context, userID, modelID, label string) ([]model.ChatModel, error)
	Remove(ctx context.Context, userID, modelID string) ([]model.ChatModel, error)
	SystemDefaults(ctx context.Context) ([]model.ChatModel, error)
	ReplaceDefaults(ctx context.Context, models []model.ChatModel) ([]model.ChatModel, error)
}

// OverrideStore persists per-user mentor prompt overrides.
type OverrideStore interface {
	GetMentorOverride(ctx context.Context, userID, mentorID string) (string, bool, error)
	ListMentorOverrides(ctx context.Context, userID string) ([]store.MentorOverride, error)
	UpsertMentorOverride(ctx context.Context, userID, mentorID, prompt string) (*store.MentorOverride, error)
	DeleteMentorOverride(ctx context.Context, userID, mentorID string) error
}

// MentorConfigStore persists draft and published mentor configs.
type MentorConfigStore interface {
	GetMentorEnvelope(ctx context.Context, id string) (*store.MentorEnvelope, error)
	SaveMentorDraft(ctx context.Context, id string, cfg *mentor.Config, updatedBy string) (*store.MentorEnvelope, error)
	PublishMentor(ctx context.Context, id, updatedBy string) (*store.MentorEnvelope, error)
}

// MentorRegistry exposes the live mentor set.
type MentorRegistry interface {
	IDs() []mentor.ID
	Get(id mentor.ID) *mentor.Config
	Put(cfg *mentor.Config) error
}

// Deps wires the services behind the routes. Overrides, MentorConfigs and
// Mentors are optional; their routes answer 404 when unset.
type Deps struct {
	Chat          ChatService
	Catalog       CatalogService
	Overrides     OverrideStore
	MentorConfigs MentorConfigStore
	Mentors       MentorRegistry
	Log           *logger.Logger
	Metrics       *metrics.Metrics
}

// Config contains HTTP server settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	CORSOrigins     []string
	TrustedProxies  []string
	IPRatePerSecond float64
	IPBurst         int
	Admin           AdminConfig
	Debug           bool
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the polychat HTTP API.
type Server struct {
	cfg     Config
	deps    Deps
	log     *logger.Logger
	engine  *gin.Engine
	limiter *IPLimiter
	now     func() time.Time

	mu     sync.Mutex
	server *http.Server
}

// New builds the router and middleware chain. It does not listen.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Chat == nil || deps.Catalog == nil {
		return nil, errors.New("server: chat and catalog services are required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 120 * time.Second
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	cors := DefaultCORSConfig()
	if len(cfg.CORSOrigins) > 0 {
		cors.AllowedOrigins = cfg.CORSOrigins
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		log:     log.Component("http"),
		engine:  engine,
		limiter: NewIPLimiter(cfg.IPRatePerSecond, cfg.IPBurst),
		now:     time.Now,
	}

	engine.Use(
		RequestID(),
		AccessLog(s.log, deps.Metrics),
		Recovery(s.log),
		SecurityHeaders(),
		CORS(cors),
		s.limiter.Middleware(),
		bodyLimit(MaxRequestBodySize),
	)
	engine.NoRoute(func(c *gin.Context) {
		writeError(c, s.log, model.NewNotFound("Not found"))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, ErrorResponse{Error: true, Message: "Method not allowed"})
	})
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	r.POST("/chat", s.handleSend)
	r.GET("/chat", s.handleGetChat)

	conv := r.Group("/conversations")
	conv.GET("", s.handleListConversations)
	conv.POST("", s.handleCreateConversation)
	conv.PATCH("", s.handleRenameConversation)
	conv.DELETE("", s.handleDeleteConversation)
	conv.GET("/messages", s.handleMessages)

	models := r.Group("/chat-models")
	models.GET("", s.handleListChatModels)
	models.POST("", s.handleAddChatModel)
	models.DELETE("", s.handleRemoveChatModel)

	admin := AdminAuth(s.cfg.Admin, s.log, func() time.Time { return s.now() })
	defaults := models.Group("/defaults", admin)
	defaults.GET("", s.handleListChatModelDefaults)
	defaults.PUT("", s.handleReplaceChatModelDefaults)

	if s.deps.Overrides != nil {
		ov := r.Group("/mentor-overrides")
		ov.GET("", s.handleListOverrides)
		ov.POST("", s.handleUpsertOverride)
		ov.DELETE("", s.handleDeleteOverride)
	}

	if s.deps.Mentors != nil {
		r.GET("/mentors", s.handleListMentors)
	}
	if s.deps.MentorConfigs != nil {
		m := r.Group("/mentors/:id", admin)
		m.GET("", s.handleGetMentorConfig)
		m.PUT("/draft", s.handleSaveMentorDraft)
		m.POST("/publish", s.handlePublishMentor)
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.log.Info().Str("addr", s.cfg.Addr).Str("version", Version).Msg("http server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.log.Info().Msg("http server shutting down")
	return srv.Shutdown(ctx)
}

func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
