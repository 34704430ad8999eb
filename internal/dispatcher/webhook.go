package dispatcher

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/xela07ax/issue-router/internal/domain"
)

const signaturePrefix = "sha256="

// issuesEvent — часть payload события issues, которая нужна маршрутизации.
type issuesEvent struct {
	Action string `json:"action"`
	Issue  struct {
		Number      int             `json:"number"`
		Title       string          `json:"title"`
		Body        string          `json:"body"`
		Labels      domain.LabelSet `json:"labels"`
		PullRequest *struct{}       `json:"pull_request,omitempty"`
	} `json:"issue"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

func (e issuesEvent) routable() bool {
	if e.Issue.PullRequest != nil {
		return false
	}
	return e.Action == "opened" || e.Action == "reopened"
}

func (e issuesEvent) toIssue() domain.Issue {
	return domain.Issue{
		Number: e.Issue.Number,
		Title:  e.Issue.Title,
		Body:   e.Issue.Body,
		Labels: e.Issue.Labels,
	}
}

// verifySignature проверяет X-Hub-Signature-256 (HMAC-SHA256 тела запроса).
func verifySignature(secret, header string, body []byte) bool {
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign считает значение X-Hub-Signature-256 для тела.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
