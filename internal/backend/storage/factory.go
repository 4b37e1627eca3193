package storage

import (
	"errors"
	"fmt"
	"log/slog"
)

const (
	TypeJSON   = "json"
	TypeSQLite = "sqlite"
	TypeRedis  = "redis"
)

var ErrUnsupportedStore = errors.New("unsupported timeline store")

// IsSupportedType reports whether storeType can be passed to NewTimelineStore.
func IsSupportedType(storeType string) bool {
	switch storeType {
	case TypeJSON, TypeSQLite, TypeRedis:
		return true
	}
	return false
}

func NewTimelineStore(storeType, connectionString string) (store TimelineStore, err error) {
	switch storeType {
	case TypeJSON:
		store, err = NewJSONFileStore(connectionString)
	case TypeSQLite:
		store, err = NewSQLiteStore(connectionString)
	case TypeRedis:
		store, err = NewRedisStore(connectionString)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStore, storeType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s timeline store: %w", storeType, err)
	}

	slog.Info("timeline store initialized", "type", storeType)
	return store, nil
}
