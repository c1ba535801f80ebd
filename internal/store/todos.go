package store

import (
	"errors"
	"fmt"
	"strings"

	"agenda/internal/calendar"
	"agenda/internal/model"
)

// CreateTodo adds an unscheduled to-do. Text carries no time token.
func (s *Store) CreateTodo(text, categoryKey string) (model.TodoItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.TodoItem{}, model.ErrEmptyTitle
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	td := model.TodoItem{
		ID:        s.nextID(),
		Text:      text,
		Category:  strings.TrimSpace(categoryKey),
		Status:    model.TodoUnscheduled,
		CreatedAt: s.now(),
	}
	s.todos = append(s.todos, td)
	return td, s.saveTodos()
}

// UpdateTodo edits text and/or category.
func (s *Store) UpdateTodo(id string, patch model.TodoPatch) error {
	if patch.Text != nil && strings.TrimSpace(*patch.Text) == "" {
		return model.ErrEmptyTitle
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfTodo(id)
	if i < 0 {
		return fmt.Errorf("%w: todo %q", ErrNotFound, id)
	}
	if patch.Text != nil {
		s.todos[i].Text = strings.TrimSpace(*patch.Text)
	}
	if patch.Category != nil {
		s.todos[i].Category = strings.TrimSpace(*patch.Category)
	}
	return s.saveTodos()
}

// DeleteTodo removes a to-do. The schedule item it spawned, if any, stays.
func (s *Store) DeleteTodo(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfTodo(id)
	if i < 0 {
		return nil
	}
	s.todos = append(s.todos[:i], s.todos[i+1:]...)
	return s.saveTodos()
}

// GetTodo returns a copy of the to-do.
func (s *Store) GetTodo(id string) (model.TodoItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfTodo(id)
	if i < 0 {
		return model.TodoItem{}, false
	}
	return s.todos[i], true
}

// Todos lists to-dos in creation order; an empty status lists all.
func (s *Store) Todos(status model.TodoStatus) []model.TodoItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TodoItem, 0, len(s.todos))
	for _, td := range s.todos {
		if status != "" && td.Status != status {
			continue
		}
		out = append(out, td)
	}
	return out
}

// TodoStats counts to-dos by status.
func (s *Store) TodoStats() model.TodoStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := model.TodoStats{Total: len(s.todos)}
	for _, td := range s.todos {
		if td.Status == model.TodoScheduled {
			st.Scheduled++
		} else {
			st.Unscheduled++
		}
	}
	return st
}

// ScheduleTodo pins a to-do to dateKey: it creates the schedule item and
// flips the to-do to scheduled in one call, then writes both snapshots.
// minutes may be nil for an untimed item.
//
// A to-do that still points at a live schedule item is rejected with
// ErrAlreadyScheduled instead of producing a duplicate.
func (s *Store) ScheduleTodo(id, dateKey string, minutes *int) (model.ScheduleItem, error) {
	if !calendar.ValidDateKey(dateKey) {
		return model.ScheduleItem{}, fmt.Errorf("%w: %q", model.ErrInvalidDate, dateKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfTodo(id)
	if i < 0 {
		return model.ScheduleItem{}, fmt.Errorf("%w: todo %q", ErrNotFound, id)
	}
	td := &s.todos[i]
	if td.Status == model.TodoScheduled && s.indexOfItem(td.ScheduledItemID) >= 0 {
		return model.ScheduleItem{}, fmt.Errorf("%w: todo %q on %s", ErrAlreadyScheduled, id, td.ScheduledDate)
	}

	created := s.createLocked(model.ScheduleItem{
		Date:     dateKey,
		Category: td.Category,
		Text:     td.Text,
		Time:     minutes,
	})
	td.Status = model.TodoScheduled
	td.ScheduledDate = dateKey
	td.ScheduledItemID = created.ID

	return created, errors.Join(s.saveItems(), s.saveTodos())
}

// Drop applies a drag-and-drop handoff onto dateKey. Payloads from the
// to-do list schedule that to-do; payloads from the calendar move the
// existing item (and retime it when the payload carries a time).
func (s *Store) Drop(p model.DropPayload, dateKey string) (model.ScheduleItem, error) {
	if err := p.Validate(); err != nil {
		return model.ScheduleItem{}, err
	}
	if !calendar.ValidDateKey(dateKey) {
		return model.ScheduleItem{}, fmt.Errorf("%w: %q", model.ErrInvalidDate, dateKey)
	}

	switch p.Source {
	case model.SourceTodoList:
		return s.ScheduleTodo(p.ID, dateKey, p.Minutes())
	default:
		patch := model.ItemPatch{Date: &dateKey, Time: p.Minutes()}
		err := s.Update(p.ID, patch)
		if err != nil && !errors.Is(err, ErrPersist) {
			return model.ScheduleItem{}, err
		}
		it, _ := s.Get(p.ID)
		return it, err
	}
}
