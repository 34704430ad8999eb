package analyzer

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xela07ax/issue-router/internal/domain"
)

// outputs — пары ключ/значение, которые забирает следующий шаг CI.
func outputs(res domain.AnalysisResult) [][2]string {
	return [][2]string{
		{"agent_type", string(res.AgentType)},
		{"priority", string(res.Priority)},
		{"confidence", strconv.FormatFloat(res.Confidence, 'f', 2, 64)},
		{"estimated_effort", string(res.EstimatedEffort)},
		{"reasoning", strings.Join(res.Reasoning, "; ")},
	}
}

// WriteOutputs печатает legacy-аннотации ::set-output и читаемую сводку.
func WriteOutputs(w io.Writer, res domain.AnalysisResult) error {
	var b strings.Builder
	for _, kv := range outputs(res) {
		fmt.Fprintf(&b, "::set-output name=%s::%s\n", kv[0], escapeAnnotation(kv[1]))
	}

	fmt.Fprintf(&b, "\nIssue #%d analysis\n", res.IssueNumber)
	fmt.Fprintf(&b, "  Agent type:  %s\n", res.AgentType)
	fmt.Fprintf(&b, "  Priority:    %s\n", res.Priority)
	fmt.Fprintf(&b, "  Confidence:  %.0f%%\n", res.Confidence*100)
	fmt.Fprintf(&b, "  Effort:      %s\n", res.EstimatedEffort)
	b.WriteString("  Reasoning:\n")
	for _, r := range res.Reasoning {
		fmt.Fprintf(&b, "    - %s\n", r)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteGitHubOutput дописывает те же ключи в файл $GITHUB_OUTPUT (актуальный формат Actions).
func WriteGitHubOutput(path string, res domain.AnalysisResult) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open github output: %w", err)
	}
	defer f.Close()

	for _, kv := range outputs(res) {
		if _, err := fmt.Fprintf(f, "%s=%s\n", kv[0], strings.ReplaceAll(kv[1], "\n", " ")); err != nil {
			return fmt.Errorf("write github output: %w", err)
		}
	}
	return nil
}

// escapeAnnotation экранирует значение по правилам workflow-команд.
func escapeAnnotation(v string) string {
	r := strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
	return r.Replace(v)
}
