package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/issue-router/internal/audit"
)

func TestBuildInsert_Placeholders(t *testing.T) {
	events := []audit.Event{
		{ID: "a", IssueNumber: 1, Stage: audit.StageAnalyze, Timestamp: time.Now()},
		{ID: "b", IssueNumber: 1, Stage: audit.StageAssign, Timestamp: time.Now()},
	}

	query, vals := buildInsert(events)

	assert.True(t, strings.HasPrefix(query, "INSERT INTO routing_audit"))
	assert.Contains(t, query, "($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13), ($14,")
	assert.Contains(t, query, "$26)")
	require.Len(t, vals, 2*auditColumns)
	assert.Equal(t, "b", vals[auditColumns])
	assert.Equal(t, "assign", vals[auditColumns+4])
}

func TestWriteBatch_EmptyIsNoop(t *testing.T) {
	repo := NewAuditRepoFromDB(nil)
	assert.NoError(t, repo.WriteBatch(context.Background(), nil))
}
