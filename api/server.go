// Package api exposes the orchestrator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/conversation"
	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultMaxBodyBytes    = 64 << 10
	DefaultShutdownTimeout = 10 * time.Second
)

// Orchestrator is the query entry point the server calls.
type Orchestrator interface {
	Orchestrate(ctx context.Context, userID, query string, uc *domain.UserContext) domain.OrchestrationResult
}

type Config struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// RequestTimeout bounds one /api/query call, orchestration included.
	// A failed orchestration that ran out of time answers 504.
	RequestTimeout time.Duration
	// Store receives one record per successful query. Optional.
	Store conversation.Store
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

type Server struct {
	orchestrator Orchestrator
	config       Config
	validate     *validator.Validate
	logger       *slog.Logger
}

func NewServer(orch Orchestrator, config Config) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{
		orchestrator: orch,
		config:       config,
		validate:     validate,
		logger:       config.Logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(s.logRequests)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", s.health)
	if s.config.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", s.config.Metrics)
	}
	router.Route("/api", func(r chi.Router) {
		r.Post("/query", s.query)
	})
	return router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type userContextRequest struct {
	EnergyLevel         string                    `json:"energyLevel" validate:"omitempty,max=32"`
	EFChallenges        []string                  `json:"efChallenges" validate:"omitempty,max=20,dive,max=64"`
	Goals               []string                  `json:"goals" validate:"omitempty,max=20,dive,max=200"`
	CommunicationStyle  string                    `json:"communicationStyle" validate:"omitempty,max=64"`
	SessionID           string                    `json:"sessionId" validate:"omitempty,max=128"`
	SessionMessageCount int                       `json:"sessionMessageCount" validate:"min=0"`
	RecentHistory       []domain.ConversationTurn `json:"recentHistory" validate:"omitempty,max=50"`
}

type queryRequest struct {
	UserID      string              `json:"userId" validate:"required,max=128"`
	Query       string              `json:"query" validate:"required,max=4000"`
	UserContext *userContextRequest `json:"userContext"`
}

func (r *queryRequest) userContext() *domain.UserContext {
	if r.UserContext == nil {
		return nil
	}
	uc := r.UserContext
	return &domain.UserContext{
		EnergyLevel:         uc.EnergyLevel,
		EFChallenges:        uc.EFChallenges,
		Goals:               uc.Goals,
		CommunicationStyle:  uc.CommunicationStyle,
		SessionID:           uc.SessionID,
		SessionMessageCount: uc.SessionMessageCount,
		RecentHistory:       uc.RecentHistory,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	var req queryRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if err := s.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: formatValidationError(err)})
		return
	}

	ctx := r.Context()
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	uc := req.userContext()
	result := s.orchestrator.Orchestrate(ctx, req.UserID, req.Query, uc)

	status := http.StatusOK
	switch {
	case !result.Success && errors.Is(ctx.Err(), context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case !result.Success:
		status = http.StatusBadGateway
	default:
		s.remember(r.Context(), req, uc, &result)
	}
	writeJSON(w, status, result)
}

// remember appends the exchange to the conversation store. Storage
// problems never fail the request.
func (s *Server) remember(ctx context.Context, req queryRequest, uc *domain.UserContext, result *domain.OrchestrationResult) {
	if s.config.Store == nil {
		return
	}
	rec := conversation.Record{
		UserID:   req.UserID,
		Query:    req.Query,
		Response: result.Summary(),
		Domain:   primaryDomain(result.Metadata.DomainsInvolved),
	}
	if uc != nil {
		rec.SessionID = uc.SessionID
	}
	if err := s.config.Store.Append(ctx, rec); err != nil {
		s.logger.Warn("failed to store conversation turn", "user_id", req.UserID, "error", err)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// primaryDomain tags a stored exchange with the first domain that
// answered so per-domain history filters keep working.
func primaryDomain(domains []domain.Domain) string {
	if len(domains) == 0 {
		return ""
	}
	return domains[0].String()
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, e.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}
