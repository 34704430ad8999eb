package dispatcher

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/xela07ax/issue-router/internal/audit"
	"github.com/xela07ax/issue-router/internal/domain"
	"github.com/xela07ax/issue-router/internal/lock"
	"github.com/xela07ax/issue-router/internal/tracker"
)

type fakeTracker struct {
	mu        sync.Mutex
	labelsErr error
	labels    map[int][]string
	comments  map[int][]string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{labels: map[int][]string{}, comments: map[int][]string{}}
}

func (f *fakeTracker) ListIssues(context.Context, tracker.IssueQuery) ([]domain.Issue, error) {
	return nil, nil
}

func (f *fakeTracker) AddLabels(_ context.Context, number int, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.labelsErr != nil {
		return f.labelsErr
	}
	f.labels[number] = append(f.labels[number], labels...)
	return nil
}

func (f *fakeTracker) CreateComment(_ context.Context, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[number] = append(f.comments[number], body)
	return nil
}

func (f *fakeTracker) labelsOf(number int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.labels[number]...)
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, int) (func(context.Context) error, error) {
	return nil, lock.ErrLocked
}

type memAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memAuditor) Log(e audit.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// fakeValidator принимает "Bearer ok" со scope route и "Bearer reader" без него
type fakeValidator struct{}

func (fakeValidator) VerifyToken(tokenStr string) (*domain.CustomClaims, error) {
	switch strings.TrimPrefix(tokenStr, "Bearer ") {
	case "ok":
		return &domain.CustomClaims{UserID: "ops", Scopes: map[string]bool{domain.ScopeRoute: true}}, nil
	case "reader":
		return &domain.CustomClaims{UserID: "viewer", Scopes: map[string]bool{"read": true}}, nil
	}
	return nil, errors.New("invalid token")
}
