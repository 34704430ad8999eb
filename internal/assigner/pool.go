package assigner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xela07ax/issue-router/internal/domain"
)

var (
	ErrEmptyPool = errors.New("agent pool is empty")
	ErrPoolParse = errors.New("invalid agent pool config")
)

// ParsePool разбирает JSON-объект category -> capacity.
// Порядок ключей сохраняется: от него зависит tie-break при перегрузке.
func ParsePool(raw string) (domain.AgentPool, error) {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return domain.AgentPool{}, fmt.Errorf("%w: %v", ErrPoolParse, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return domain.AgentPool{}, fmt.Errorf("%w: expected JSON object", ErrPoolParse)
	}

	var entries []domain.PoolEntry
	seen := make(map[domain.AgentType]struct{})

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return domain.AgentPool{}, fmt.Errorf("%w: %v", ErrPoolParse, err)
		}
		key, _ := tok.(string)
		t := domain.AgentType(strings.TrimSpace(key))
		if t == "" {
			return domain.AgentPool{}, fmt.Errorf("%w: empty category name", ErrPoolParse)
		}
		if _, dup := seen[t]; dup {
			return domain.AgentPool{}, fmt.Errorf("%w: duplicate category %q", ErrPoolParse, t)
		}

		var capacity int
		if err := dec.Decode(&capacity); err != nil {
			return domain.AgentPool{}, fmt.Errorf("%w: capacity of %q: %v", ErrPoolParse, t, err)
		}
		if capacity <= 0 {
			return domain.AgentPool{}, fmt.Errorf("%w: capacity of %q must be positive, got %d", ErrPoolParse, t, capacity)
		}

		seen[t] = struct{}{}
		entries = append(entries, domain.PoolEntry{Type: t, Capacity: capacity})
	}

	if _, err := dec.Token(); err != nil {
		return domain.AgentPool{}, fmt.Errorf("%w: %v", ErrPoolParse, err)
	}
	if dec.More() {
		return domain.AgentPool{}, fmt.Errorf("%w: trailing data after object", ErrPoolParse)
	}
	if len(entries) == 0 {
		return domain.AgentPool{}, fmt.Errorf("%w: %w", ErrPoolParse, ErrEmptyPool)
	}

	return domain.NewAgentPool(entries...), nil
}

// PoolOrDefault — явная ветка "разобрать или взять дефолтный пул".
func PoolOrDefault(raw string, logger *zap.Logger) domain.AgentPool {
	if strings.TrimSpace(raw) == "" {
		return domain.DefaultAgentPool()
	}
	pool, err := ParsePool(raw)
	if err != nil {
		logger.Warn("agent pool config rejected, using default pool", zap.Error(err))
		return domain.DefaultAgentPool()
	}
	return pool
}
