package analyzer

import "github.com/xela07ax/issue-router/internal/domain"

// categoryKeywords — подстроки, по которым набирается балл категории.
// Порядок категорий задается domain.AgentTypes, а не этой мапой.
var categoryKeywords = map[domain.AgentType][]string{
	domain.AgentFrontend: {
		"frontend", "front-end", "user interface", "component", "css", "react",
		"layout", "button", "page", "responsive", "browser", "style", "mobile",
	},
	domain.AgentBackend: {
		"backend", "back-end", "api", "endpoint", "server", "database",
		"query", "schema", "graphql", "webhook",
	},
	domain.AgentFullstack: {
		"fullstack", "full-stack", "full stack", "end-to-end", "frontend and backend",
		"integration",
	},
	domain.AgentSecurity: {
		"security", "vulnerability", "xss", "csrf", "injection", "password",
		"exploit", "permission", "authentication", "authorization", "cve",
	},
	domain.AgentPerformance: {
		"performance", "slow", "latency", "memory leak", "optimize", "optimization",
		"speed", "bottleneck", "cache", "timeout",
	},
	domain.AgentQA: {
		"test", "bug", "regression", "flaky", "reproduce", "coverage", "assertion",
	},
	domain.AgentDevOps: {
		"deploy", "deployment", "ci/cd", "pipeline", "docker", "kubernetes",
		"github actions", "infrastructure", "terraform", "monitoring",
	},
	domain.AgentRefactorer: {
		"refactor", "cleanup", "clean up", "technical debt", "tech debt",
		"code smell", "duplicate code", "simplify", "restructure",
	},
	domain.AgentScribe: {
		"documentation", "docs", "readme", "tutorial", "changelog", "typo",
		"guide", "jsdoc", "godoc",
	},
}

// labelCategories — метки трекера, дающие +2 к категории.
var labelCategories = map[string]domain.AgentType{
	"frontend":       domain.AgentFrontend,
	"ui":             domain.AgentFrontend,
	"ux":             domain.AgentFrontend,
	"backend":        domain.AgentBackend,
	"api":            domain.AgentBackend,
	"database":       domain.AgentBackend,
	"fullstack":      domain.AgentFullstack,
	"security":       domain.AgentSecurity,
	"performance":    domain.AgentPerformance,
	"bug":            domain.AgentQA,
	"test":           domain.AgentQA,
	"testing":        domain.AgentQA,
	"qa":             domain.AgentQA,
	"devops":         domain.AgentDevOps,
	"ci":             domain.AgentDevOps,
	"infrastructure": domain.AgentDevOps,
	"refactor":       domain.AgentRefactorer,
	"refactoring":    domain.AgentRefactorer,
	"tech-debt":      domain.AgentRefactorer,
	"documentation":  domain.AgentScribe,
	"docs":           domain.AgentScribe,
}

const labelWeight = 2

// priorityLabels — метки, которые задают приоритет напрямую, без скоринга.
var priorityLabels = map[string]domain.Priority{
	"critical":  domain.PriorityCritical,
	"urgent":    domain.PriorityCritical,
	"high":      domain.PriorityHigh,
	"important": domain.PriorityHigh,
	"medium":    domain.PriorityMedium,
	"low":       domain.PriorityLow,
}

type priorityTier struct {
	priority   domain.Priority
	indicators []string
}

// priorityIndicators обходятся по порядку, и каждое срабатывание перезаписывает
// приоритет (last write wins, без раннего выхода).
var priorityIndicators = []priorityTier{
	{domain.PriorityLow, []string{"minor", "cosmetic", "nice to have", "low priority", "when possible", "someday"}},
	{domain.PriorityMedium, []string{"should be", "would be nice", "improvement", "medium priority"}},
	{domain.PriorityHigh, []string{"blocking", "blocker", "asap", "high priority", "important", "major"}},
	{domain.PriorityCritical, []string{"critical", "urgent", "outage", "data loss", "production down", "emergency"}},
}

type effortTier struct {
	effort   domain.Effort
	keywords []string
}

var effortTiers = []effortTier{
	{domain.EffortSmall, []string{"typo", "small", "quick", "simple", "one-line", "tweak", "rename"}},
	{domain.EffortMedium, []string{"feature", "enhance", "extend", "new option", "support for"}},
	{domain.EffortLarge, []string{"refactor", "redesign", "migration", "architecture", "overhaul", "multiple"}},
	{domain.EffortXL, []string{"rewrite", "from scratch", "epic", "platform", "entire system"}},
}
