// Package store owns the authoritative collections of the agenda: schedule
// items, to-dos, custom categories and the two scalar settings. Every
// mutation rewrites the affected snapshot through a kv.Backend; write
// failures are logged and reported, and the in-memory state stays
// authoritative until the next successful write.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"agenda/internal/calendar"
	"agenda/internal/category"
	"agenda/internal/kv"
	appLog "agenda/internal/log"
	"agenda/internal/model"
	"agenda/internal/timetext"
)

var (
	ErrNotFound         = errors.New("store: not found")
	ErrAlreadyScheduled = errors.New("store: to-do is already scheduled")
	ErrInvalidTheme     = errors.New("store: theme must be \"dark\" or \"light\"")
	// ErrPersist wraps snapshot write failures. The mutation it accompanies
	// has already been applied in memory.
	ErrPersist = errors.New("store: snapshot write failed")
)

// Themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Options configures a Store.
type Options struct {
	// Now is the clock used for ids, timestamps and the seed date.
	Now func() time.Time
	// Seed fills an empty first run with a few example items.
	Seed bool
}

// Store is the process-wide agenda state. It is constructed once at startup
// and is safe for concurrent use; the state after any sequence of calls is
// the fold of those calls in lock order.
type Store struct {
	mu      sync.Mutex
	backend kv.Backend
	now     func() time.Time
	seed    bool

	items      []model.ScheduleItem
	todos      []model.TodoItem
	categories *category.Registry
	theme      string
	lastTime   string

	lastID      int64
	lastSaveErr error
}

// New builds an empty store on top of backend. Call Load to read the
// persisted snapshots.
func New(backend kv.Backend, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		backend:    backend,
		now:        opts.Now,
		seed:       opts.Seed,
		categories: category.NewRegistry(nil, opts.Now),
		theme:      ThemeLight,
	}
}

// Load reads every snapshot. Missing or corrupted snapshots fall back to
// empty collections (or the seed set for tasks); the returned error only
// describes what was skipped and never leaves the store unusable.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	items, err := s.loadItems()
	if err != nil {
		errs = append(errs, err)
	}
	s.items = items

	todos, err := s.loadTodos()
	if err != nil {
		errs = append(errs, err)
	}
	s.todos = todos

	var custom []model.Category
	if err := s.readJSON(kv.KeyCategories, &custom); err != nil && !errors.Is(err, kv.ErrNotFound) {
		errs = append(errs, fmt.Errorf("load categories: %w", err))
		custom = nil
	}
	s.categories = category.NewRegistry(custom, s.now)

	var theme string
	if err := s.readJSON(kv.KeyTheme, &theme); err != nil && !errors.Is(err, kv.ErrNotFound) {
		errs = append(errs, fmt.Errorf("load theme: %w", err))
	}
	if theme == ThemeDark || theme == ThemeLight {
		s.theme = theme
	}

	var last string
	if err := s.readJSON(kv.KeyLastTime, &last); err != nil && !errors.Is(err, kv.ErrNotFound) {
		errs = append(errs, fmt.Errorf("load last time: %w", err))
	}
	if _, perr := timetext.ParseClock(last); perr == nil {
		s.lastTime = timetext.ToTimeString(timetext.ToMinutes(last))
	}

	for _, it := range s.items {
		s.observeID(it.ID)
	}
	for _, td := range s.todos {
		s.observeID(td.ID)
	}

	joined := errors.Join(errs...)
	if joined != nil {
		appLog.Warn("store: some snapshots could not be loaded; using fallbacks", "err", joined)
	}
	appLog.Info("store loaded",
		"items", len(s.items),
		"todos", len(s.todos),
		"custom_categories", len(custom),
		"theme", s.theme,
	)
	return joined
}

func (s *Store) loadItems() ([]model.ScheduleItem, error) {
	data, err := s.backend.Get(kv.KeyTasks)
	if errors.Is(err, kv.ErrNotFound) {
		return s.seedItems(), nil
	}
	if err != nil {
		return s.seedItems(), fmt.Errorf("load tasks: %w", err)
	}
	decoded, err := decodeItems(data)
	if err != nil {
		return s.seedItems(), fmt.Errorf("load tasks: %w", err)
	}

	out := make([]model.ScheduleItem, 0, len(decoded))
	seen := make(map[string]bool, len(decoded))
	skipped := 0
	for _, it := range decoded {
		if it.ID == "" || seen[it.ID] || !calendar.ValidDateKey(it.Date) {
			skipped++
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	if skipped > 0 {
		return out, fmt.Errorf("load tasks: skipped %d invalid records", skipped)
	}
	return out, nil
}

func (s *Store) loadTodos() ([]model.TodoItem, error) {
	data, err := s.backend.Get(kv.KeyTodos)
	if errors.Is(err, kv.ErrNotFound) {
		return []model.TodoItem{}, nil
	}
	if err != nil {
		return []model.TodoItem{}, fmt.Errorf("load todos: %w", err)
	}
	todos, err := decodeTodos(data)
	if err != nil {
		return []model.TodoItem{}, fmt.Errorf("load todos: %w", err)
	}
	out := todos[:0]
	for _, td := range todos {
		if td.ID == "" {
			continue
		}
		out = append(out, td)
	}
	return out, nil
}

func (s *Store) seedItems() []model.ScheduleItem {
	if !s.seed {
		return []model.ScheduleItem{}
	}
	now := s.now()
	today := calendar.DateKey(now)
	nine, half := 9*60, 12*60+30
	seed := []model.ScheduleItem{
		{Date: today, Category: "work", Text: "stand-up", Time: &nine, Duration: 15},
		{Date: today, Category: "life", Text: "lunch", Time: &half, Duration: 60},
		{Date: today, Category: "study", Text: "review notes"},
	}
	for i := range seed {
		seed[i].ID = s.nextID()
		seed[i].CreatedAt = now
		seed[i].UpdatedAt = now
	}
	return seed
}

func (s *Store) readJSON(key string, v any) error {
	data, err := s.backend.Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSON snapshots v under key. Failures are logged and remembered.
func (s *Store) writeJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err == nil {
		err = s.backend.Set(key, data)
	}
	if err != nil {
		s.lastSaveErr = err
		appLog.Error("store: snapshot write failed", err, "key", key)
		return fmt.Errorf("%w: %s: %v", ErrPersist, key, err)
	}
	s.lastSaveErr = nil
	return nil
}

func (s *Store) saveItems() error      { return s.writeJSON(kv.KeyTasks, s.items) }
func (s *Store) saveTodos() error      { return s.writeJSON(kv.KeyTodos, s.todos) }
func (s *Store) saveCategories() error { return s.writeJSON(kv.KeyCategories, s.categories.Custom()) }

// LastSaveError returns the error of the most recent failed write, or nil
// once a later write succeeded.
func (s *Store) LastSaveError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaveErr
}

// nextID returns a creation-timestamp-derived id (unix milliseconds),
// bumped so ids stay strictly increasing within the process.
func (s *Store) nextID() string {
	stamp := s.now().UnixMilli()
	if stamp <= s.lastID {
		stamp = s.lastID + 1
	}
	s.lastID = stamp
	return strconv.FormatInt(stamp, 10)
}

func (s *Store) observeID(id string) {
	if n, ok := idStamp(id); ok && n > s.lastID {
		s.lastID = n
	}
}

func (s *Store) indexOfItem(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) indexOfTodo(id string) int {
	for i := range s.todos {
		if s.todos[i].ID == id {
			return i
		}
	}
	return -1
}

// Create appends item with a fresh id and persists the collection. The only
// rejected input is a date that is not a calendar day; text emptiness is
// the caller's job. A non-nil error wrapping ErrPersist means the item was
// created but not saved.
func (s *Store) Create(item model.ScheduleItem) (string, error) {
	if !calendar.ValidDateKey(item.Date) {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidDate, item.Date)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	created := s.createLocked(item)
	err := s.saveItems()
	if created.Time != nil && !created.Imported() {
		if lerr := s.setLastTimeLocked(timetext.ToTimeString(*created.Time)); lerr != nil && err == nil {
			err = lerr
		}
	}
	return created.ID, err
}

func (s *Store) createLocked(item model.ScheduleItem) model.ScheduleItem {
	now := s.now()
	item = model.NormalizeItem(item.Clone())
	item.ID = s.nextID()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.items = append(s.items, item)
	return item.Clone()
}

// Update merges patch into the item with the given id. Unknown ids return
// ErrNotFound and change nothing, as does a patch whose End does not fit
// the resulting start time.
func (s *Store) Update(id string, patch model.ItemPatch) error {
	if patch.Date != nil && !calendar.ValidDateKey(*patch.Date) {
		return fmt.Errorf("%w: %q", model.ErrInvalidDate, *patch.Date)
	}
	if patch.Text != nil && strings.TrimSpace(*patch.Text) == "" {
		return model.ErrEmptyTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfItem(id)
	if i < 0 {
		return fmt.Errorf("%w: item %q", ErrNotFound, id)
	}
	if patch.Empty() {
		return nil
	}
	it := s.items[i].Clone()
	if patch.Date != nil {
		it.Date = *patch.Date
	}
	if patch.Category != nil {
		it.Category = *patch.Category
	}
	if patch.Text != nil {
		it.Text = strings.TrimSpace(*patch.Text)
	}
	if patch.ClearTime {
		it.Time = nil
		it.Duration = 0
	}
	if patch.Time != nil {
		m := *patch.Time
		it.Time = &m
	}
	if patch.Duration != nil {
		it.Duration = max(*patch.Duration, 0)
	}
	if patch.Notes != nil {
		it.Notes = strings.TrimSpace(*patch.Notes)
	}
	it = model.NormalizeItem(it)
	if patch.End != nil {
		switch {
		case it.Time == nil:
			return model.ErrEndWithoutStart
		case *patch.End <= *it.Time:
			return model.ErrEndNotAfterStart
		}
		it.Duration = *patch.End - *it.Time
	}
	it.UpdatedAt = s.now()
	s.items[i] = it
	return s.saveItems()
}

// Delete removes the item. Absent ids are a no-op. To-dos that were
// scheduled into the removed item go back to unscheduled.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfItem(id)
	if i < 0 {
		return nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	err := s.saveItems()

	released := false
	for j := range s.todos {
		if s.todos[j].ScheduledItemID == id {
			s.todos[j].Status = model.TodoUnscheduled
			s.todos[j].ScheduledDate = ""
			s.todos[j].ScheduledItemID = ""
			released = true
		}
	}
	if released {
		if terr := s.saveTodos(); terr != nil && err == nil {
			err = terr
		}
	}
	return err
}

// Get returns a copy of the item.
func (s *Store) Get(id string) (model.ScheduleItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfItem(id)
	if i < 0 {
		return model.ScheduleItem{}, false
	}
	return s.items[i].Clone(), true
}

// Items returns copies of every schedule item in insertion order.
func (s *Store) Items() []model.ScheduleItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScheduleItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it.Clone())
	}
	return out
}

// QueryByDate returns the items on dateKey, optionally restricted to one
// category. The result keeps insertion order; sorting is the day view's job.
func (s *Store) QueryByDate(dateKey, categoryKey string) []model.ScheduleItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScheduleItem, 0)
	for _, it := range s.items {
		if it.Date != dateKey {
			continue
		}
		if categoryKey != "" && it.Category != categoryKey {
			continue
		}
		out = append(out, it.Clone())
	}
	return out
}

// QueryByCategory counts the items tagged with key.
func (s *Store) QueryByCategory(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		if it.Category == key {
			n++
		}
	}
	return n
}

// CategoryCounts returns item counts per category key.
func (s *Store) CategoryCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, it := range s.items {
		out[it.Category]++
	}
	return out
}

// ReplaceSource swaps every item imported from source for items. Items
// whose ExternalID was already present keep their id, so links to them
// survive a refresh. The whole swap is one snapshot write.
func (s *Store) ReplaceSource(source string, items []model.ScheduleItem) (added, removed int, err error) {
	if source == "" {
		return 0, 0, errors.New("store: empty source")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Previous items without a usable ExternalID cannot be matched; they
	// are dropped and counted as removed.
	existing := make(map[string]model.ScheduleItem)
	unmatched := 0
	kept := s.items[:0]
	for _, it := range s.items {
		if it.Source != source {
			kept = append(kept, it)
			continue
		}
		if _, dup := existing[it.ExternalID]; it.ExternalID == "" || dup {
			unmatched++
			continue
		}
		existing[it.ExternalID] = it
	}
	s.items = kept

	now := s.now()
	for _, it := range items {
		if !calendar.ValidDateKey(it.Date) {
			continue
		}
		it = it.Clone()
		it.Source = source
		if prev, ok := existing[it.ExternalID]; ok && it.ExternalID != "" {
			it.ID = prev.ID
			it.CreatedAt = prev.CreatedAt
			delete(existing, it.ExternalID)
		} else {
			it.ID = s.nextID()
			it.CreatedAt = now
			added++
		}
		it.UpdatedAt = now
		s.items = append(s.items, it)
	}
	removed = len(existing) + unmatched
	return added, removed, s.saveItems()
}

// ResolveCategory resolves key through the category registry.
func (s *Store) ResolveCategory(key string) model.Category {
	return s.Categories().Resolve(key)
}

// Categories returns the registry loaded by Load.
func (s *Store) Categories() *category.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories
}

// AddCategory adds a custom category and persists the custom set.
func (s *Store) AddCategory(label, color string) (model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.categories.Add(label, color)
	if err != nil {
		return model.Category{}, err
	}
	return c, s.saveCategories()
}

// RemoveCategory removes a custom category. Items that still reference it
// are kept and render with the fallback.
func (s *Store) RemoveCategory(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.categories.Remove(key); err != nil {
		return err
	}
	return s.saveCategories()
}

// Theme returns "dark" or "light".
func (s *Store) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetTheme stores the theme flag.
func (s *Store) SetTheme(theme string) error {
	theme, err := cleanTheme(theme)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = theme
	return s.writeJSON(kv.KeyTheme, theme)
}

// UpdateSettings validates every non-nil field before applying any of
// them, so a bad value leaves the settings untouched.
func (s *Store) UpdateSettings(theme, lastTime *string) error {
	var th, lt string
	var err error
	if theme != nil {
		if th, err = cleanTheme(*theme); err != nil {
			return err
		}
	}
	if lastTime != nil {
		if lt, err = cleanLastTime(*lastTime); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if theme != nil {
		s.theme = th
		errs = append(errs, s.writeJSON(kv.KeyTheme, th))
	}
	if lastTime != nil {
		s.lastTime = lt
		errs = append(errs, s.writeJSON(kv.KeyLastTime, lt))
	}
	return errors.Join(errs...)
}

func cleanTheme(theme string) (string, error) {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if theme != ThemeDark && theme != ThemeLight {
		return "", fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	return theme, nil
}

// LastTime returns the last "HH:MM" used on create, or "".
func (s *Store) LastTime() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTime
}

// SetLastTime stores hhmm ("" clears it).
func (s *Store) SetLastTime(hhmm string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLastTimeLocked(hhmm)
}

func (s *Store) setLastTimeLocked(hhmm string) error {
	hhmm, err := cleanLastTime(hhmm)
	if err != nil {
		return err
	}
	s.lastTime = hhmm
	return s.writeJSON(kv.KeyLastTime, hhmm)
}

// cleanLastTime canonicalizes "H:MM" to "HH:MM"; "" stays empty.
func cleanLastTime(hhmm string) (string, error) {
	hhmm = strings.TrimSpace(hhmm)
	if hhmm == "" {
		return "", nil
	}
	m, err := timetext.ParseClock(hhmm)
	if err != nil {
		return "", err
	}
	return timetext.ToTimeString(m), nil
}
