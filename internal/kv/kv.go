// Package kv is the flat key-value snapshot storage the agenda persists to.
// Every collection is stored whole under a fixed key and overwritten on
// every change; backends do not need to support anything richer.
package kv

import (
	"errors"
	"fmt"
	"strings"
)

// Snapshot keys.
const (
	KeyTasks      = "tasks"
	KeyTodos      = "todos"
	KeyCategories = "customCategories"
	KeyTheme      = "theme"
	KeyLastTime   = "lastUsedTime"
)

// ErrNotFound is returned by Get for keys that were never written.
var ErrNotFound = errors.New("kv: key not found")

// Backend reads and writes raw snapshots.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Open returns the backend for driver. path is a directory for "file" and a
// database file for "sqlite"; it is ignored for "memory".
func Open(driver, path string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverFile:
		return NewFileBackend(path)
	case DriverSQLite:
		return NewSQLiteBackend(path)
	default:
		return nil, fmt.Errorf("kv: unknown driver %q", driver)
	}
}

func validKey(key string) error {
	if key == "" {
		return errors.New("kv: empty key")
	}
	for _, r := range key {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-' || r == '.') {
			return fmt.Errorf("kv: invalid key %q", key)
		}
	}
	return nil
}
