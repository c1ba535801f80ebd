package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"agenda/internal/model"
	"agenda/internal/timetext"
)

// Snapshots written by older versions of the app stored ids as numbers
// and times as "HH:MM" strings. The record types below accept both shapes
// and convert into the current model.

type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type flexMinutes struct {
	v *int
}

func (f *flexMinutes) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		f.v = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			f.v = nil
			return nil
		}
		m := timetext.ToMinutes(s)
		f.v = &m
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("time: %w", err)
	}
	if n < 0 {
		n = 0
	}
	if n > timetext.MinutesPerDay {
		n = timetext.MinutesPerDay
	}
	f.v = &n
	return nil
}

type itemRecord struct {
	ID         flexID      `json:"id"`
	Date       string      `json:"date"`
	Category   string      `json:"category"`
	Text       string      `json:"text"`
	Time       flexMinutes `json:"time"`
	Duration   int         `json:"duration"`
	Notes      string      `json:"notes"`
	Source     string      `json:"source"`
	ExternalID string      `json:"external_id"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (r itemRecord) toModel() model.ScheduleItem {
	return model.NormalizeItem(model.ScheduleItem{
		ID:         string(r.ID),
		Date:       r.Date,
		Category:   r.Category,
		Text:       r.Text,
		Time:       r.Time.v,
		Duration:   r.Duration,
		Notes:      r.Notes,
		Source:     r.Source,
		ExternalID: r.ExternalID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	})
}

type todoRecord struct {
	ID              flexID           `json:"id"`
	Text            string           `json:"text"`
	Category        string           `json:"category"`
	Status          model.TodoStatus `json:"status"`
	ScheduledDate   string           `json:"scheduled_date"`
	ScheduledItemID flexID           `json:"scheduled_item_id"`
	CreatedAt       time.Time        `json:"created_at"`
}

func (r todoRecord) toModel() model.TodoItem {
	status := r.Status
	if status != model.TodoScheduled {
		status = model.TodoUnscheduled
	}
	return model.TodoItem{
		ID:              string(r.ID),
		Text:            r.Text,
		Category:        r.Category,
		Status:          status,
		ScheduledDate:   r.ScheduledDate,
		ScheduledItemID: string(r.ScheduledItemID),
		CreatedAt:       r.CreatedAt,
	}
}

func decodeItems(data []byte) ([]model.ScheduleItem, error) {
	var recs []itemRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	out := make([]model.ScheduleItem, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func decodeTodos(data []byte) ([]model.TodoItem, error) {
	var recs []todoRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	out := make([]model.TodoItem, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

// idStamp extracts the numeric part of a timestamp-derived id.
func idStamp(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
