package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/issue-router/internal/domain"
	"github.com/xela07ax/issue-router/internal/infra/auth"
	"github.com/xela07ax/issue-router/internal/lock"
)

const maxPayload = 1 << 20 // GitHub ограничивает payload 25MB, нам хватает мегабайта

type Options struct {
	Repository      string
	WebhookSecret   string
	PipelineTimeout time.Duration
	Gatherer        prometheus.Gatherer

	// Validator включает ручной роут /v1/issues/{number}/route. nil — роут не регистрируется.
	Validator auth.TokenValidator
}

type Server struct {
	router   *chi.Mux
	pipeline *Pipeline
	opts     Options
	logger   *zap.Logger

	// Фоновые прогоны по вебхукам, ждем их при остановке
	inflight sync.WaitGroup
}

func NewServer(p *Pipeline, opts Options, logger *zap.Logger) *Server {
	if opts.PipelineTimeout <= 0 {
		opts.PipelineTimeout = 45 * time.Second
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.NewRegistry()
	}
	s := &Server{
		router:   chi.NewRouter(),
		pipeline: p,
		opts:     opts,
		logger:   logger.Named("dispatcher-api"),
	}
	if opts.WebhookSecret == "" {
		s.logger.Warn("webhook secret is not set, signature verification is disabled")
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TracingMiddleware)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// --- 2. Публичные роуты ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	// Вебхук защищен подписью, а не токеном
	r.Post("/webhook/github", s.handleWebhook)

	// --- 3. Защищенный периметр (RS256 токен со scope route) ---
	if s.opts.Validator != nil {
		r.Group(func(r chi.Router) {
			r.Use(auth.NewMiddleware(s.opts.Validator, domain.ScopeRoute, s.logger))
			r.Post("/v1/issues/{number}/route", s.handleRoute)
		})
	}
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Wait ждет завершения фоновых прогонов (graceful shutdown).
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayload))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	if s.opts.WebhookSecret != "" && !verifySignature(s.opts.WebhookSecret, r.Header.Get("X-Hub-Signature-256"), body) {
		s.logger.Warn("webhook signature mismatch", zap.String("trace_id", TraceIDFromContext(r.Context())))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event := r.Header.Get("X-GitHub-Event")
	if event != "issues" {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored", "reason": "event " + event})
		return
	}

	var payload issuesEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if !payload.routable() {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored", "reason": "action " + payload.Action})
		return
	}
	if s.opts.Repository != "" && payload.Repository.FullName != s.opts.Repository {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored", "reason": "foreign repository"})
		return
	}

	// GitHub ждет ответ 10 секунд, поэтому прогоняем в фоне со своим таймаутом
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.PipelineTimeout)
	issue := payload.toIssue()
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if _, err := s.pipeline.Route(ctx, issue); err != nil && !errors.Is(err, lock.ErrLocked) {
			s.logger.Error("webhook routing failed", zap.Int("issue", issue.Number), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "issue": issue.Number})
}

type routeRequest struct {
	Title  string          `json:"title"`
	Body   string          `json:"body"`
	Labels domain.LabelSet `json:"labels"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		http.Error(w, "issue number must be a positive integer", http.StatusBadRequest)
		return
	}

	var req routeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPayload)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		s.logger.Info("manual re-route", zap.Int("issue", number), zap.String("user_id", claims.UserID))
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.PipelineTimeout)
	defer cancel()

	res, err := s.pipeline.Route(ctx, domain.Issue{Number: number, Title: req.Title, Body: req.Body, Labels: req.Labels})
	switch {
	case errors.Is(err, lock.ErrLocked):
		http.Error(w, "issue is being routed by another run", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, "routing failed", http.StatusServiceUnavailable)
		return
	}

	status := http.StatusOK
	if !res.Assignment.Success {
		// Решение принято, но трекер его не записал
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
