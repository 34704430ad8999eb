package assigner

import (
	"fmt"

	"github.com/xela07ax/issue-router/internal/domain"
)

const (
	emergencyWorkload = 999
	emergencyID       = "fullstack-emergency"
)

// Decide выбирает слот без побочных эффектов:
//  1. предпочтительная категория, если есть место;
//  2. первая категория из fallbackOrder со свободной емкостью;
//  3. категория с минимальной нагрузкой (при равенстве — первая по порядку снимка).
func Decide(pool domain.AgentPool, workload domain.WorkloadSnapshot, preferred domain.AgentType, fallbackOrder []domain.AgentType) (domain.AssignedAgent, error) {
	if pool.Len() == 0 {
		return domain.AssignedAgent{}, ErrEmptyPool
	}

	if load := workload.Load(preferred); load < pool.Capacity(preferred) {
		return domain.AssignedAgent{
			Type:     preferred,
			ID:       slotID(preferred, load),
			Workload: load,
		}, nil
	}

	for _, t := range fallbackOrder {
		if load := workload.Load(t); load < pool.Capacity(t) {
			return domain.AssignedAgent{
				Type:       t,
				ID:         slotID(t, load),
				Workload:   load,
				IsFallback: true,
			}, nil
		}
	}

	types := workload.Types()
	if len(types) == 0 {
		return domain.AssignedAgent{}, fmt.Errorf("no categories to overload: %w", ErrEmptyPool)
	}
	least := types[0]
	for _, t := range types[1:] {
		if workload.Load(t) < workload.Load(least) {
			least = t
		}
	}

	return domain.AssignedAgent{
		Type:       least,
		ID:         fmt.Sprintf("%s-overload", least),
		Workload:   workload.Load(least),
		IsOverload: true,
	}, nil
}

func slotID(t domain.AgentType, load int) string {
	return fmt.Sprintf("%s-%d", t, load+1)
}

func emergencyAgent() domain.AssignedAgent {
	return domain.AssignedAgent{
		Type:       domain.AgentFullstack,
		ID:         emergencyID,
		Workload:   emergencyWorkload,
		IsOverload: true,
	}
}
