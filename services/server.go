package services

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prepwise/backend/repository"
	ws "github.com/prepwise/backend/websocket"
	"gorm.io/gorm"
)

// Server holds all server dependencies
type Server struct {
	config             *Config
	repo               *repository.GORMRepository
	rawDB              *gorm.DB
	gateway            *RequestGateway
	geminiService      *GeminiService
	engine             *InterviewEngine
	websocketHandler   *WebSocketHandler
	authService        *AuthService
	authEndpoints      *AuthEndpoints
	interviewEndpoints *InterviewEndpoints
	dashboardEndpoints *DashboardEndpoints
	wsHub              *ws.Hub
	upgrader           websocket.Upgrader
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
}

// SetDatabase sets the database connection
func (s *Server) SetDatabase(repo *repository.GORMRepository, rawDB *gorm.DB) {
	s.repo = repo
	s.rawDB = rawDB
}

// InitializeServices wires up the gateway, AI client, interview engine,
// websocket hub, and endpoint groups.
func (s *Server) InitializeServices() error {
	s.gateway = NewRequestGateway(s.config.Gateway)
	s.gateway.Start()

	var ai AIClient
	if s.config.AI.GeminiAPIKey != "" {
		if gemini := NewGeminiService(s.config.AI.GeminiAPIKey, s.config.AI.Model, s.gateway); gemini != nil {
			s.geminiService = gemini
			ai = gemini
			slog.Info("Gemini service initialized", "model", s.config.AI.Model)
		}
	}
	if ai == nil {
		ai = unavailableAI{}
		slog.Warn("Gemini API key not configured, interviews will use the fallback question bank")
	}

	s.wsHub = ws.NewHub()
	go s.wsHub.Run()

	s.engine = NewInterviewEngine(s.repo, ai, nil, s.config.Interview)
	s.websocketHandler = NewWebSocketHandler(s.wsHub, s.engine)
	s.engine.sink = s.websocketHandler

	s.interviewEndpoints = NewInterviewEndpoints(s.repo, s.engine, s.geminiOrNil())

	if s.config.JWT.Secret != "" {
		s.authService = NewAuthService(s.repo, s.config.JWT.Secret)
		s.authEndpoints = NewAuthEndpoints(s.authService)
		s.dashboardEndpoints = NewDashboardEndpoints(s.repo, s.authService)
		slog.Info("Authentication service initialized")
	} else {
		slog.Warn("JWT secret not configured, dashboard routes disabled")
	}

	return nil
}

// geminiOrNil returns the AI client for resume extraction, or nil so the
// endpoints fall back to pattern matching.
func (s *Server) geminiOrNil() AIClient {
	if s.geminiService == nil {
		return nil
	}
	return s.geminiService
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(s.config.WebSocket.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws", s.websocketHandlerFunc)

		s.interviewEndpoints.RegisterRoutes(r)

		if s.authEndpoints != nil {
			s.authEndpoints.RegisterRoutes(r)
		}
		if s.dashboardEndpoints != nil {
			s.dashboardEndpoints.RegisterRoutes(r)
		}
	})

	return r
}

// Start runs the HTTP server until interrupted, then shuts down gracefully,
// persisting active interview sessions.
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.engine != nil {
		s.engine.Shutdown(ctx)
	}
	if s.gateway != nil {
		s.gateway.Stop()
	}
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections to prevent
// cross-site hijacking. An empty allowlist denies everything.
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range splitOrigins(allowedOriginsStr) {
		if allowed == origin {
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func splitOrigins(s string) []string {
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.rawDB != nil {
		if sqlDB, err := s.rawDB.DB(); err == nil {
			if err := sqlDB.Ping(); err != nil {
				dbStatus = "down"
				status = "degraded"
			} else {
				dbStatus = "up"
			}
		} else {
			dbStatus = "down"
			status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"` + status + `","database":"` + dbStatus + `"}`))
}

// websocketHandlerFunc upgrades the connection for a candidate identified
// by ?candidate_id=. Candidates do not authenticate; the ID is the
// capability.
func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	candidateID := r.URL.Query().Get("candidate_id")
	if candidateID == "" {
		http.Error(w, "candidate_id is required", http.StatusBadRequest)
		return
	}

	candidate, err := s.repo.GetCandidateByID(r.Context(), candidateID)
	if err != nil || candidate == nil {
		http.Error(w, "Candidate not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("WebSocket connection established", "candidate_id", candidateID)

	client := s.wsHub.RegisterClient(conn, candidateID)
	client.MessageHandler = func(c *ws.Client, messageBytes []byte) {
		s.websocketHandler.HandleMessage(c, messageBytes)
	}

	go client.ReadPump()
	go client.WritePump()
	go s.websocketHandler.HandleConnection(client)
}
