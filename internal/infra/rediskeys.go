package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "router"
)

// GetIssueLockKey — ключ блокировки маршрутизации конкретной задачи.
func GetIssueLockKey(repository string, issue int) string {
	return fmt.Sprintf("%s:lock:issue:%s:%d", RedisNamespace, repository, issue)
}
