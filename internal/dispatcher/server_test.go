package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/issue-router/internal/analyzer"
	"github.com/xela07ax/issue-router/internal/assigner"
	"github.com/xela07ax/issue-router/internal/domain"
	"github.com/xela07ax/issue-router/internal/lock"
)

const (
	testRepo   = "acme/wedding"
	testSecret = "s3cret"
)

type fixture struct {
	srv     *Server
	tracker *fakeTracker
	auditor *memAuditor
}

func newFixture(t *testing.T, locker lock.Locker) *fixture {
	t.Helper()
	ft := newFakeTracker()
	au := &memAuditor{}
	logger := zap.NewNop()

	p := NewPipeline(
		analyzer.New(logger),
		assigner.New(assigner.Config{Pool: domain.DefaultAgentPool()}, ft, logger),
		locker, au, nil, testRepo, logger,
	)
	srv := NewServer(p, Options{
		Repository:    testRepo,
		WebhookSecret: testSecret,
		Validator:     fakeValidator{},
	}, logger)
	return &fixture{srv: srv, tracker: ft, auditor: au}
}

func webhookRequest(event string, payload any, secret string) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	req.Header.Set("X-Hub-Signature-256", Sign(secret, body))
	return req
}

func issuePayload(action string, number int, title string, labels ...string) map[string]any {
	ls := make([]map[string]string, 0, len(labels))
	for _, l := range labels {
		ls = append(ls, map[string]string{"name": l})
	}
	return map[string]any{
		"action":     action,
		"issue":      map[string]any{"number": number, "title": title, "body": "", "labels": ls},
		"repository": map[string]any{"full_name": testRepo},
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := httptest.NewRecorder()

	f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(TraceHeader))
}

func TestWebhook_RoutesOpenedIssue(t *testing.T) {
	f := newFixture(t, nil)
	rec := httptest.NewRecorder()

	f.srv.ServeHTTP(rec, webhookRequest("issues", issuePayload("opened", 12, "Button css broken"), testSecret))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "delivery-1", rec.Header().Get(TraceHeader))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.srv.Wait(ctx))

	labels := f.tracker.labelsOf(12)
	assert.Contains(t, labels, "agent:frontend")
	assert.Contains(t, labels, assigner.LabelAssigned)

	require.Len(t, f.auditor.events, 2)
	assert.Equal(t, "delivery-1", f.auditor.events[0].TraceID)
	assert.Equal(t, "direct", f.auditor.events[1].Outcome)
}

func TestWebhook_BadSignature(t *testing.T) {
	f := newFixture(t, nil)
	rec := httptest.NewRecorder()

	f.srv.ServeHTTP(rec, webhookRequest("issues", issuePayload("opened", 1, "x"), "wrong"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.tracker.labelsOf(1))
}

func TestWebhook_IgnoredDeliveries(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload map[string]any
	}{
		{"ping event", "ping", map[string]any{"zen": "hi"}},
		{"closed action", "issues", issuePayload("closed", 3, "Button css")},
		{"foreign repo", "issues", func() map[string]any {
			p := issuePayload("opened", 3, "Button css")
			p["repository"] = map[string]any{"full_name": "other/repo"}
			return p
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := httptest.NewRecorder()

			f.srv.ServeHTTP(rec, webhookRequest(tt.event, tt.payload, testSecret))
			require.NoError(t, f.srv.Wait(context.Background()))

			assert.Equal(t, http.StatusAccepted, rec.Code)
			assert.Contains(t, rec.Body.String(), "ignored")
			assert.Empty(t, f.tracker.labelsOf(3))
		})
	}
}

func newRouteRequest(number, token, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/issues/"+number+"/route", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRoute_Auth(t *testing.T) {
	f := newFixture(t, nil)

	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, newRouteRequest("5", "", `{}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	f.srv.ServeHTTP(rec, newRouteRequest("5", "reader", `{}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoute_Success(t *testing.T) {
	f := newFixture(t, nil)
	rec := httptest.NewRecorder()

	f.srv.ServeHTTP(rec, newRouteRequest("7", "ok", `{"title":"Login crash","body":"","labels":["security","critical"]}`))

	require.Equal(t, http.StatusOK, rec.Code)
	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, domain.AgentSecurity, res.Analysis.AgentType)
	assert.Equal(t, domain.PriorityCritical, res.Analysis.Priority)
	assert.True(t, res.Assignment.Success)
	assert.Equal(t, "critical", res.Assignment.Priority)
	assert.Contains(t, f.tracker.labelsOf(7), "priority:critical")
}

func TestRoute_BadNumber(t *testing.T) {
	f := newFixture(t, nil)
	rec := httptest.NewRecorder()

	f.srv.ServeHTTP(rec, newRouteRequest("abc", "ok", `{}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoute_Locked(t *testing.T) {
	f := newFixture(t, busyLocker{})
	rec := httptest.NewRecorder()

	f.srv.ServeHTTP(rec, newRouteRequest("8", "ok", `{"title":"Button css"}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, f.tracker.labelsOf(8))
	// анализ записан, назначения не было
	require.Len(t, f.auditor.events, 1)
}

func TestRoute_TrackerWriteFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.tracker.labelsErr = assert.AnError
	rec := httptest.NewRecorder()

	f.srv.ServeHTTP(rec, newRouteRequest("9", "ok", `{"title":"Button css"}`))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Assignment.Success)
	assert.Equal(t, "failed", f.auditor.events[1].Outcome)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"a":1}`)

	assert.True(t, verifySignature("k", Sign("k", body), body))
	assert.False(t, verifySignature("k", Sign("other", body), body))
	assert.False(t, verifySignature("k", "sha1=abc", body))
	assert.False(t, verifySignature("k", "sha256=zz", body))
}
