package tracker

import (
	"context"

	"github.com/xela07ax/issue-router/internal/domain"
)

// Tracker — ровно те три операции трекера, которые нужны пайплайну.
type Tracker interface {
	ListIssues(ctx context.Context, q IssueQuery) ([]domain.Issue, error)
	AddLabels(ctx context.Context, number int, labels []string) error
	CreateComment(ctx context.Context, number int, body string) error
}

type IssueQuery struct {
	Labels  []string
	State   string // open, closed, all
	PerPage int
	Page    int
}
