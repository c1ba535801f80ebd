// Package category keeps the built-in and user-defined categories used to
// tag and color schedule items.
package category

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"agenda/internal/model"
)

// FallbackColor is used for keys that do not resolve.
const FallbackColor = "#94a3b8"

// CustomPrefix marks user-defined keys.
const CustomPrefix = "custom_"

var (
	ErrBuiltin      = errors.New("category: built-in categories cannot be removed")
	ErrNotFound     = errors.New("category: not found")
	ErrInvalidLabel = errors.New("category: label is required")
	ErrInvalidColor = errors.New("category: color must be #rgb or #rrggbb")
)

var builtins = []model.Category{
	{Key: "work", Label: "工作", Color: "#4f46e5"},
	{Key: "study", Label: "學習", Color: "#16a34a"},
	{Key: "project", Label: "專案", Color: "#ea580c"},
	{Key: "life", Label: "生活", Color: "#0891b2"},
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Builtins returns a copy of the fixed category set.
func Builtins() []model.Category {
	out := make([]model.Category, len(builtins))
	copy(out, builtins)
	return out
}

// IsBuiltin reports whether key names a built-in category.
func IsBuiltin(key string) bool {
	for _, c := range builtins {
		if c.Key == key {
			return true
		}
	}
	return false
}

// Fallback is what unresolved keys render as.
func Fallback(key string) model.Category {
	return model.Category{Key: key, Label: "", Color: FallbackColor}
}

// Registry resolves category keys. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	custom  []model.Category
	now     func() time.Time
	lastKey int64
}

// NewRegistry builds a registry from previously saved custom categories.
// Entries that collide with a built-in key, repeat an earlier key or have
// no key are skipped.
func NewRegistry(custom []model.Category, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	r := &Registry{now: now}
	seen := make(map[string]bool)
	for _, c := range custom {
		if c.Key == "" || IsBuiltin(c.Key) || seen[c.Key] {
			continue
		}
		seen[c.Key] = true
		r.custom = append(r.custom, c)
		if n, ok := keyStamp(c.Key); ok && n > r.lastKey {
			r.lastKey = n
		}
	}
	return r
}

// All returns built-ins followed by custom categories in creation order.
func (r *Registry) All() []model.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Category, 0, len(builtins)+len(r.custom))
	out = append(out, builtins...)
	out = append(out, r.custom...)
	return out
}

// Custom returns only user-defined categories; this is what gets persisted.
func (r *Registry) Custom() []model.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Category, len(r.custom))
	copy(out, r.custom)
	return out
}

// Lookup returns the category for key and whether it exists.
func (r *Registry) Lookup(key string) (model.Category, bool) {
	for _, c := range builtins {
		if c.Key == key {
			return c, true
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.custom {
		if c.Key == key {
			return c, true
		}
	}
	return model.Category{}, false
}

// Resolve returns the category for key, or the gray fallback.
func (r *Registry) Resolve(key string) model.Category {
	if c, ok := r.Lookup(key); ok {
		return c
	}
	return Fallback(key)
}

// Add appends a custom category with a fresh timestamp-derived key.
func (r *Registry) Add(label, color string) (model.Category, error) {
	label = strings.TrimSpace(label)
	color = strings.TrimSpace(color)
	if label == "" {
		return model.Category{}, ErrInvalidLabel
	}
	if !hexColor.MatchString(color) {
		return model.Category{}, fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stamp := r.now().UnixMilli()
	if stamp <= r.lastKey {
		stamp = r.lastKey + 1
	}
	r.lastKey = stamp

	c := model.Category{
		Key:   CustomPrefix + strconv.FormatInt(stamp, 10),
		Label: label,
		Color: strings.ToLower(color),
	}
	r.custom = append(r.custom, c)
	return c, nil
}

// Remove deletes a custom category. Built-ins are rejected and unknown
// keys report ErrNotFound; items referencing the key are not touched.
func (r *Registry) Remove(key string) error {
	if IsBuiltin(key) {
		return ErrBuiltin
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.custom {
		if c.Key == key {
			r.custom = append(r.custom[:i], r.custom[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrNotFound, key)
}

func keyStamp(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, CustomPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
