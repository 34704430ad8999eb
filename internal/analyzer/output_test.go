package analyzer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/issue-router/internal/domain"
)

func sampleResult() domain.AnalysisResult {
	return domain.AnalysisResult{
		IssueNumber:     7,
		AgentType:       domain.AgentQA,
		Priority:        domain.PriorityHigh,
		Confidence:      2.0 / 3.0,
		Reasoning:       []string{"first", "second"},
		EstimatedEffort: domain.EffortSmall,
	}
}

func TestWriteOutputs(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteOutputs(&buf, sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "::set-output name=agent_type::qa\n")
	assert.Contains(t, out, "::set-output name=priority::high\n")
	assert.Contains(t, out, "::set-output name=confidence::0.67\n")
	assert.Contains(t, out, "::set-output name=estimated_effort::small\n")
	assert.Contains(t, out, "::set-output name=reasoning::first; second\n")
	assert.Contains(t, out, "Issue #7 analysis")
}

func TestWriteGitHubOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")
	require.NoError(t, os.WriteFile(path, []byte("existing=1\n"), 0o644))

	require.NoError(t, WriteGitHubOutput(path, sampleResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"existing=1\nagent_type=qa\npriority=high\nconfidence=0.67\nestimated_effort=small\nreasoning=first; second\n",
		string(data))
}

func TestEscapeAnnotation(t *testing.T) {
	assert.Equal(t, "a%0Ab%25", escapeAnnotation("a\nb%"))
}
