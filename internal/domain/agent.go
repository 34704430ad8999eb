package domain

// AgentType — категория (условная команда/очередь), на которую маршрутизируется задача.
type AgentType string

const (
	AgentFrontend    AgentType = "frontend"
	AgentBackend     AgentType = "backend"
	AgentFullstack   AgentType = "fullstack"
	AgentSecurity    AgentType = "security"
	AgentPerformance AgentType = "performance"
	AgentQA          AgentType = "qa"
	AgentDevOps      AgentType = "devops"
	AgentRefactorer  AgentType = "refactorer"
	AgentScribe      AgentType = "scribe"
)

// AgentTypes — порядок объявления категорий. На нем держится tie-break при скоринге,
// поэтому это срез, а не мапа.
var AgentTypes = []AgentType{
	AgentFrontend,
	AgentBackend,
	AgentFullstack,
	AgentSecurity,
	AgentPerformance,
	AgentQA,
	AgentDevOps,
	AgentRefactorer,
	AgentScribe,
}

// FallbackOrder — порядок обхода категорий, когда предпочтительная заполнена.
var FallbackOrder = []AgentType{
	AgentFullstack,
	AgentFrontend,
	AgentBackend,
	AgentQA,
	AgentDevOps,
	AgentSecurity,
	AgentPerformance,
	AgentRefactorer,
	AgentScribe,
}

// IsKnown сообщает, входит ли тип в закрытый набор категорий.
func (t AgentType) IsKnown() bool {
	for _, known := range AgentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// PoolEntry — емкость одной категории.
type PoolEntry struct {
	Type     AgentType
	Capacity int
}

// AgentPool — упорядоченная таблица емкостей по категориям.
// Неизменяема в рамках одного запуска.
type AgentPool struct {
	entries []PoolEntry
}

func NewAgentPool(entries ...PoolEntry) AgentPool {
	cp := make([]PoolEntry, len(entries))
	copy(cp, entries)
	return AgentPool{entries: cp}
}

// DefaultAgentPool — пул, с которым работает Assigner, если конфиг не задан или битый.
func DefaultAgentPool() AgentPool {
	return NewAgentPool(
		PoolEntry{AgentFrontend, 2},
		PoolEntry{AgentBackend, 2},
		PoolEntry{AgentFullstack, 1},
		PoolEntry{AgentSecurity, 1},
		PoolEntry{AgentPerformance, 1},
		PoolEntry{AgentQA, 1},
		PoolEntry{AgentDevOps, 1},
		PoolEntry{AgentRefactorer, 1},
		PoolEntry{AgentScribe, 1},
	)
}

// Capacity возвращает емкость категории; неизвестная категория имеет емкость 0.
func (p AgentPool) Capacity(t AgentType) int {
	for _, e := range p.entries {
		if e.Type == t {
			return e.Capacity
		}
	}
	return 0
}

func (p AgentPool) Entries() []PoolEntry {
	cp := make([]PoolEntry, len(p.entries))
	copy(cp, p.entries)
	return cp
}

func (p AgentPool) Len() int { return len(p.entries) }
