package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/issue-router/internal/domain"
	"github.com/xela07ax/issue-router/internal/metrics"
)

type ReliabilityConfig struct {
	RateLimit      float64 // запросов в секунду
	RateBurst      int
	RetryAttempts  uint
	RetryMaxDelay  time.Duration
	RequestTimeout time.Duration

	// Настройки Circuit Breaker
	CBMaxRequests         uint32
	CBInterval            time.Duration
	CBTimeout             time.Duration
	CBConsecutiveFailures uint32
}

func DefaultReliabilityConfig() ReliabilityConfig {
	return ReliabilityConfig{
		RateLimit:             10,
		RateBurst:             5,
		RetryAttempts:         3,
		RetryMaxDelay:         30 * time.Second,
		RequestTimeout:        10 * time.Second,
		CBMaxRequests:         3,
		CBInterval:            5 * time.Second,
		CBTimeout:             30 * time.Second,
		CBConsecutiveFailures: 5,
	}
}

// ReliableTracker оборачивает Tracker: лимитер и предохранитель на все вызовы,
// повторы только на чтение. Метки и комментарии не идемпотентны, поэтому запись
// выполняется ровно один раз.
type ReliableTracker struct {
	next    Tracker
	cfg     ReliabilityConfig
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewReliableTracker(next Tracker, cfg ReliabilityConfig, m *metrics.Metrics, logger *zap.Logger) *ReliableTracker {
	if m == nil {
		m = metrics.New(nil)
	}
	logger = logger.Named("reliability")

	// 0 попыток в retry-go означает бесконечный цикл
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "github",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.CBConsecutiveFailures
		},
		// 4xx — проблема запроса, а не доступности трекера
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.IsClientError() && !isThrottle(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &ReliableTracker{
		next:    next,
		cfg:     cfg,
		cb:      cb,
		limiter: rate.NewLimiter(limit, max(cfg.RateBurst, 1)),
		metrics: m,
		logger:  logger,
	}
}

func (w *ReliableTracker) ListIssues(ctx context.Context, q IssueQuery) ([]domain.Issue, error) {
	var issues []domain.Issue

	err := w.call(ctx, "list_issues", func() error {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.cfg.RetryAttempts),
			retry.LastErrorOnly(true),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если GitHub прислал Retry-After, ждем сколько сказали (но не дольше лимита)
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return min(tErr.RetryAfter, w.cfg.RetryMaxDelay)
				}
				return min(retry.BackOffDelay(n, err, config), w.cfg.RetryMaxDelay)
			}),
		)

		return r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
			defer cancel()

			res, err := w.next.ListIssues(tCtx, q)
			if err != nil {
				var apiErr *APIError
				if errors.As(err, &apiErr) && apiErr.IsClientError() && !isThrottle(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			issues = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return issues, nil
}

func (w *ReliableTracker) AddLabels(ctx context.Context, number int, labels []string) error {
	return w.call(ctx, "add_labels", func() error {
		tCtx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
		defer cancel()
		return w.next.AddLabels(tCtx, number, labels)
	})
}

func (w *ReliableTracker) CreateComment(ctx context.Context, number int, body string) error {
	return w.call(ctx, "create_comment", func() error {
		tCtx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
		defer cancel()
		return w.next.CreateComment(tCtx, number, body)
	})
}

// call: Rate Limiter -> Circuit Breaker -> fn, с метриками.
func (w *ReliableTracker) call(ctx context.Context, op string, fn func() error) error {
	start := time.Now()

	if err := w.limiter.Wait(ctx); err != nil {
		w.metrics.TrackerErrors.WithLabelValues(op, "rate_limit").Inc()
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	_, err := w.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	status := "ok"
	if err != nil {
		status = "error"
		errType := classify(err)
		w.metrics.TrackerErrors.WithLabelValues(op, errType).Inc()
		w.logger.Debug("tracker call failed", zap.String("op", op), zap.String("type", errType), zap.Error(err))
	}
	w.metrics.TrackerDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())

	return err
}

func isThrottle(err error) bool {
	var tErr *ThrottleError
	return errors.As(err, &tErr)
}

func classify(err error) string {
	var apiErr *APIError
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case isThrottle(err):
		return "throttled"
	case errors.As(err, &apiErr):
		if apiErr.Status >= http.StatusInternalServerError {
			return "server"
		}
		return "api"
	default:
		return "network"
	}
}
