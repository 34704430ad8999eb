package domain

// WorkloadSnapshot — текущее число назначений по категориям.
// Ключи пула идут первыми (в порядке пула), затем категории, замеченные только в трекере,
// в порядке первого появления. Порядок ключей определяет tie-break при перегрузке.
type WorkloadSnapshot struct {
	order  []AgentType
	counts map[AgentType]int
}

// NewWorkloadSnapshot заводит нулевые счетчики для всех категорий пула.
func NewWorkloadSnapshot(pool AgentPool) WorkloadSnapshot {
	w := WorkloadSnapshot{counts: make(map[AgentType]int, pool.Len())}
	for _, e := range pool.entries {
		w.ensure(e.Type)
	}
	return w
}

func (w *WorkloadSnapshot) ensure(t AgentType) {
	if w.counts == nil {
		w.counts = make(map[AgentType]int)
	}
	if _, ok := w.counts[t]; !ok {
		w.order = append(w.order, t)
		w.counts[t] = 0
	}
}

// Inc увеличивает счетчик категории на единицу.
func (w *WorkloadSnapshot) Inc(t AgentType) {
	w.ensure(t)
	w.counts[t]++
}

// Set выставляет счетчик категории.
func (w *WorkloadSnapshot) Set(t AgentType, n int) {
	w.ensure(t)
	w.counts[t] = n
}

// Load возвращает нагрузку категории; незнакомая категория — 0.
func (w WorkloadSnapshot) Load(t AgentType) int {
	return w.counts[t]
}

// Types возвращает категории снимка в детерминированном порядке.
func (w WorkloadSnapshot) Types() []AgentType {
	cp := make([]AgentType, len(w.order))
	copy(cp, w.order)
	return cp
}

// AsMap нужен для логов и JSON-ответов.
func (w WorkloadSnapshot) AsMap() map[string]int {
	m := make(map[string]int, len(w.counts))
	for t, n := range w.counts {
		m[string(t)] = n
	}
	return m
}
