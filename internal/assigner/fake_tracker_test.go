package assigner

import (
	"context"
	"sync"

	"github.com/xela07ax/issue-router/internal/domain"
	"github.com/xela07ax/issue-router/internal/tracker"
)

type fakeTracker struct {
	mu sync.Mutex

	pages      [][]domain.Issue
	listErr    error
	listPanic  bool
	labelsErr  error
	commentErr error

	queries  []tracker.IssueQuery
	labels   map[int][]string
	comments map[int][]string
}

func newFakeTracker(pages ...[]domain.Issue) *fakeTracker {
	return &fakeTracker{
		pages:    pages,
		labels:   map[int][]string{},
		comments: map[int][]string{},
	}
}

func (f *fakeTracker) ListIssues(ctx context.Context, q tracker.IssueQuery) ([]domain.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.listPanic {
		panic("tracker exploded")
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	if q.Page < 1 || q.Page > len(f.pages) {
		return nil, nil
	}
	return f.pages[q.Page-1], nil
}

func (f *fakeTracker) AddLabels(ctx context.Context, number int, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.labelsErr != nil {
		return f.labelsErr
	}
	f.labels[number] = append(f.labels[number], labels...)
	return nil
}

func (f *fakeTracker) CreateComment(ctx context.Context, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commentErr != nil {
		return f.commentErr
	}
	f.comments[number] = append(f.comments[number], body)
	return nil
}

func assignedIssue(number int, labels ...string) domain.Issue {
	return domain.Issue{Number: number, Labels: append(domain.LabelSet{"agent-assigned"}, labels...)}
}
