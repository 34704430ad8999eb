package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/issue-router/internal/audit"
)

const auditColumns = 13

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(connString string, maxConns int) (*AuditRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &AuditRepo{db: db}, nil
}

// NewAuditRepoFromDB нужен тестам и тем, кто уже держит пул соединений.
func NewAuditRepoFromDB(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *AuditRepo) Close() error {
	return r.db.Close()
}

func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	query, vals := buildInsert(events)
	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("insert routing_audit (%d rows): %w", len(events), err)
	}
	return nil
}

// buildInsert строит один multi-row INSERT на всю пачку
func buildInsert(events []audit.Event) (string, []any) {
	var sb strings.Builder
	vals := make([]any, 0, len(events)*auditColumns)

	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 1; j <= auditColumns; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*auditColumns+j)
		}
		sb.WriteString(")")

		vals = append(vals,
			e.ID, e.TraceID, e.Repository, e.IssueNumber, string(e.Stage),
			e.AgentType, e.AgentID, e.Priority, e.Confidence,
			e.Outcome, e.Error, e.DurationMs, e.Timestamp,
		)
	}

	query := "INSERT INTO routing_audit (id, trace_id, repository, issue_number, stage, " +
		"agent_type, agent_id, priority, confidence, outcome, error, duration_ms, created_at) VALUES " +
		sb.String()
	return query, vals
}
