package cache

import (
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory — кеш в памяти процесса на go-cache. Значения хранятся в виде JSON,
// чтобы вызывающий никогда не получал общую ссылку на закешированный объект.
type Memory struct {
	c *gocache.Cache
}

// NewMemory создает кеш с временем жизни по умолчанию ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{c: gocache.New(ttl, 2*ttl)}
}

// Get читает значение по ключу в result.
func (m *Memory) Get(key string, result any) (bool, error) {
	const op = "cache.Memory.Get"
	raw, ok := m.c.Get(key)
	if !ok {
		return false, nil
	}
	data, ok := raw.([]byte)
	if !ok {
		return false, fmt.Errorf("%s: unexpected value type %T", op, raw)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение. Нулевое expiration означает время жизни по умолчанию.
func (m *Memory) Set(key string, value any, expiration time.Duration) error {
	const op = "cache.Memory.Set"
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if expiration == 0 {
		expiration = gocache.DefaultExpiration
	}
	m.c.Set(key, data, expiration)
	return nil
}

// Invalidate удаляет ключ.
func (m *Memory) Invalidate(key string) error {
	m.c.Delete(key)
	return nil
}
