package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/issue-router/internal/domain"
	"github.com/xela07ax/issue-router/internal/infra"
	"github.com/xela07ax/issue-router/internal/metrics"
	"github.com/xela07ax/issue-router/internal/tracker"
)

type stubTracker struct {
	mu        sync.Mutex
	labelsErr error
	labels    []string
}

func (s *stubTracker) ListIssues(context.Context, tracker.IssueQuery) ([]domain.Issue, error) {
	return nil, nil
}

func (s *stubTracker) AddLabels(_ context.Context, _ int, labels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.labelsErr != nil {
		return s.labelsErr
	}
	s.labels = append(s.labels, labels...)
	return nil
}

func (s *stubTracker) CreateComment(context.Context, int, string) error { return nil }

func withTracker(t *testing.T, st tracker.Tracker) {
	t.Helper()
	orig := newTracker
	newTracker = func(*infra.Config, *metrics.Metrics, *zap.Logger) (tracker.Tracker, error) {
		return st, nil
	}
	t.Cleanup(func() { newTracker = orig })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOGGER_LEVEL", "error")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AGENT_POOL_CONFIG", "")
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestAssignAgent_MissingFlags(t *testing.T) {
	withTracker(t, &stubTracker{})

	_, err := execute(t, "--issue-number", "1", "--agent-type", "qa")

	assert.Error(t, err)
}

func TestAssignAgent_Success(t *testing.T) {
	st := &stubTracker{}
	withTracker(t, st)

	out, err := execute(t, "--issue-number", "5", "--agent-type", "qa", "--priority", "high")

	require.NoError(t, err)
	var res domain.AssignmentResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, domain.AgentQA, res.Agent.Type)
	assert.Contains(t, st.labels, "priority:high")
}

func TestAssignAgent_WriteFailureExitsNonZero(t *testing.T) {
	withTracker(t, &stubTracker{labelsErr: errors.New("403 forbidden")})

	out, err := execute(t, "--issue-number", "6", "--agent-type", "qa", "--priority", "low")

	require.Error(t, err)
	assert.Contains(t, out, `"success":false`)
}

func TestAssignAgent_NoCredentials(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_APP_ID", "")
	t.Setenv("GITHUB_REPOSITORY", "acme/wedding")

	_, err := execute(t, "--issue-number", "6", "--agent-type", "qa", "--priority", "low")

	assert.Error(t, err)
}
