package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xela07ax/issue-router/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"
	userAgent      = "issue-router"

	// defaultRetryAfter — если GitHub не сказал, сколько ждать.
	defaultRetryAfter = time.Minute
)

type ClientConfig struct {
	BaseURL    string
	Repository string // owner/repo
	Timeout    time.Duration
}

// GitHubClient реализует Tracker поверх REST API GitHub.
type GitHubClient struct {
	baseURL string
	owner   string
	repo    string
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
	now     func() time.Time
}

func NewGitHubClient(cfg ClientConfig, tokens TokenSource, logger *zap.Logger) (*GitHubClient, error) {
	owner, repo, err := ParseRepository(cfg.Repository)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &GitHubClient{
		baseURL: base,
		owner:   owner,
		repo:    repo,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger.Named("github"),
		now:     time.Now,
	}, nil
}

// ParseRepository делит "owner/repo" на части.
func ParseRepository(s string) (owner, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepository, s)
	}
	return parts[0], parts[1], nil
}

type ghIssue struct {
	Number int             `json:"number"`
	Title  string          `json:"title"`
	Body   *string         `json:"body"`
	Labels domain.LabelSet `json:"labels"`
}

func (c *GitHubClient) ListIssues(ctx context.Context, q IssueQuery) ([]domain.Issue, error) {
	params := url.Values{}
	if len(q.Labels) > 0 {
		params.Set("labels", strings.Join(q.Labels, ","))
	}
	if q.State != "" {
		params.Set("state", q.State)
	}
	if q.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}

	path := fmt.Sprintf("/repos/%s/%s/issues?%s", c.owner, c.repo, params.Encode())

	var raw []ghIssue
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	issues := make([]domain.Issue, 0, len(raw))
	for _, r := range raw {
		is := domain.Issue{Number: r.Number, Title: r.Title, Labels: r.Labels}
		if r.Body != nil {
			is.Body = *r.Body
		}
		issues = append(issues, is)
	}
	return issues, nil
}

func (c *GitHubClient) AddLabels(ctx context.Context, number int, labels []string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels", c.owner, c.repo, number)
	payload := map[string][]string{"labels": labels}
	if err := c.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("add labels to #%d: %w", number, err)
	}
	return nil
}

func (c *GitHubClient) CreateComment(ctx context.Context, number int, body string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", c.owner, c.repo, number)
	payload := map[string]string{"body": body}
	if err := c.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("comment on #%d: %w", number, err)
	}
	return nil
}

func (c *GitHubClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("obtain token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode, Message: readMessage(resp.Body)}

	if isThrottled(resp) {
		wait := retryAfter(resp.Header, c.now())
		c.logger.Warn("github throttled the request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Duration("retry_after", wait))
		return &ThrottleError{RetryAfter: wait, Cause: apiErr}
	}
	return apiErr
}

func isThrottled(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// retryAfter читает Retry-After (секунды), затем X-RateLimit-Reset (unix time).
func retryAfter(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(ts, 0).Sub(now); d > 0 {
				return d
			}
			return 0
		}
	}
	return defaultRetryAfter
}

func readMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(data))
}
