package tracker

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/issue-router/internal/domain"
)

// scriptedTracker отдает ошибки из очереди, затем успех.
type scriptedTracker struct {
	mu       sync.Mutex
	errs     []error
	calls    map[string]int
	issues   []domain.Issue
	alwaysFn func() error
}

func newScripted(errs ...error) *scriptedTracker {
	return &scriptedTracker{errs: errs, calls: map[string]int{}}
}

func (s *scriptedTracker) next(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if s.alwaysFn != nil {
		return s.alwaysFn()
	}
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *scriptedTracker) ListIssues(ctx context.Context, q IssueQuery) ([]domain.Issue, error) {
	if err := s.next("list"); err != nil {
		return nil, err
	}
	return s.issues, nil
}

func (s *scriptedTracker) AddLabels(ctx context.Context, number int, labels []string) error {
	return s.next("labels")
}

func (s *scriptedTracker) CreateComment(ctx context.Context, number int, body string) error {
	return s.next("comment")
}

func testReliability() ReliabilityConfig {
	cfg := DefaultReliabilityConfig()
	cfg.RateLimit = 0 // без ограничения
	cfg.RetryMaxDelay = 5 * time.Millisecond
	cfg.RequestTimeout = time.Second
	return cfg
}

func TestReliableTracker_ListRetriesServerErrors(t *testing.T) {
	next := newScripted(&APIError{Status: 502}, &APIError{Status: 503})
	next.issues = []domain.Issue{{Number: 1}}
	rt := NewReliableTracker(next, testReliability(), nil, zap.NewNop())

	issues, err := rt.ListIssues(context.Background(), IssueQuery{})

	require.NoError(t, err)
	assert.Len(t, issues, 1)
	assert.Equal(t, 3, next.calls["list"])
}

func TestReliableTracker_ListHonorsThrottle(t *testing.T) {
	next := newScripted(&ThrottleError{RetryAfter: time.Hour, Cause: &APIError{Status: 429}})
	rt := NewReliableTracker(next, testReliability(), nil, zap.NewNop())

	start := time.Now()
	_, err := rt.ListIssues(context.Background(), IssueQuery{})

	require.NoError(t, err)
	assert.Equal(t, 2, next.calls["list"])
	assert.Less(t, time.Since(start), time.Second, "throttle delay must be capped")
}

func TestReliableTracker_ListDoesNotRetryClientErrors(t *testing.T) {
	next := newScripted(&APIError{Status: http.StatusNotFound, Message: "Not Found"})
	rt := NewReliableTracker(next, testReliability(), nil, zap.NewNop())

	_, err := rt.ListIssues(context.Background(), IssueQuery{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 1, next.calls["list"])
}

func TestReliableTracker_WritesAreSingleShot(t *testing.T) {
	next := newScripted(&APIError{Status: 502}, &APIError{Status: 502})
	rt := NewReliableTracker(next, testReliability(), nil, zap.NewNop())

	require.Error(t, rt.AddLabels(context.Background(), 1, []string{"a"}))
	require.Error(t, rt.CreateComment(context.Background(), 1, "body"))

	assert.Equal(t, 1, next.calls["labels"])
	assert.Equal(t, 1, next.calls["comment"])
}

func TestReliableTracker_BreakerOpens(t *testing.T) {
	next := newScripted()
	next.alwaysFn = func() error { return errors.New("connection refused") }
	cfg := testReliability()
	cfg.CBConsecutiveFailures = 2
	rt := NewReliableTracker(next, cfg, nil, zap.NewNop())

	require.Error(t, rt.AddLabels(context.Background(), 1, nil))
	require.Error(t, rt.AddLabels(context.Background(), 1, nil))

	err := rt.AddLabels(context.Background(), 1, nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls["labels"])
	assert.Equal(t, "breaker_open", classify(err))
}

func TestReliableTracker_ClientErrorsDoNotTripBreaker(t *testing.T) {
	next := newScripted()
	next.alwaysFn = func() error { return &APIError{Status: http.StatusUnprocessableEntity} }
	cfg := testReliability()
	cfg.CBConsecutiveFailures = 2
	rt := NewReliableTracker(next, cfg, nil, zap.NewNop())

	for i := 0; i < 4; i++ {
		err := rt.AddLabels(context.Background(), 1, nil)
		assert.Equal(t, "api", classify(err))
	}
	assert.Equal(t, 4, next.calls["labels"])
}
