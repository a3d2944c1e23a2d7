package statestore

import (
	"fmt"
	"strings"

	"github.com/juju/clock"
)

// StoreType represents the type of store backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// String returns the string representation of the store type.
func (s StoreType) String() string {
	return string(s)
}

// ParseStoreType parses a string into a StoreType, defaulting to memory.
func ParseStoreType(s string) StoreType {
	switch strings.ToLower(s) {
	case "redis":
		return StoreTypeRedis
	default:
		return StoreTypeMemory
	}
}

// Config contains configuration for creating a store.
type Config struct {
	Type  StoreType
	Redis RedisOptions
	Clock clock.Clock
}

// New creates a Store for cfg.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(cfg.Clock), nil
	case StoreTypeRedis:
		return NewRedisStoreFromOptions(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
