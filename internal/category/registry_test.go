package category

import (
	"errors"
	"testing"
	"time"

	"agenda/internal/model"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestAllOrdersBuiltinsFirst(t *testing.T) {
	r := NewRegistry([]model.Category{
		{Key: "custom_5", Label: "Gym", Color: "#ff0000"},
		{Key: "work", Label: "shadow", Color: "#000000"},
		{Key: "custom_5", Label: "dup", Color: "#000000"},
		{Key: "", Label: "no key", Color: "#000000"},
	}, nil)

	all := r.All()
	if len(all) != len(builtins)+1 {
		t.Fatalf("len(All)=%d, want %d", len(all), len(builtins)+1)
	}
	for i, c := range builtins {
		if all[i] != c {
			t.Fatalf("All()[%d]=%+v, want %+v", i, all[i], c)
		}
	}
	if all[len(all)-1].Label != "Gym" {
		t.Fatalf("last=%+v, want Gym", all[len(all)-1])
	}
}

func TestAddAssignsIncreasingKeys(t *testing.T) {
	r := NewRegistry(nil, fixedClock(1000))
	a, err := r.Add("Reading", "#ABC")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	b, err := r.Add("Music", "#112233")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if a.Key != "custom_1000" || b.Key != "custom_1001" {
		t.Fatalf("keys=%q,%q", a.Key, b.Key)
	}
	if a.Color != "#abc" {
		t.Fatalf("color=%q, want lower-cased", a.Color)
	}
	if got := r.Custom(); len(got) != 2 || got[0].Key != a.Key || got[1].Key != b.Key {
		t.Fatalf("Custom()=%+v", got)
	}
}

func TestAddKeysContinueAfterLoadedKeys(t *testing.T) {
	r := NewRegistry([]model.Category{{Key: "custom_5000", Label: "x", Color: "#fff"}}, fixedClock(10))
	c, err := r.Add("y", "#000")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if c.Key != "custom_5001" {
		t.Fatalf("key=%q, want custom_5001", c.Key)
	}
}

func TestAddValidation(t *testing.T) {
	r := NewRegistry(nil, nil)
	if _, err := r.Add("  ", "#fff"); !errors.Is(err, ErrInvalidLabel) {
		t.Fatalf("err=%v, want ErrInvalidLabel", err)
	}
	if _, err := r.Add("x", "red"); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("err=%v, want ErrInvalidColor", err)
	}
}

func TestRemove(t *testing.T) {
	r := NewRegistry([]model.Category{{Key: "custom_123", Label: "Side", Color: "#123456"}}, nil)

	if err := r.Remove("work"); !errors.Is(err, ErrBuiltin) {
		t.Fatalf("Remove(work)=%v, want ErrBuiltin", err)
	}
	if _, ok := r.Lookup("work"); !ok {
		t.Fatalf("built-in removed")
	}
	if err := r.Remove("custom_999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Remove(unknown)=%v, want ErrNotFound", err)
	}
	if err := r.Remove("custom_123"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got := r.Resolve("custom_123")
	if got.Label != "" || got.Color != FallbackColor || got.Key != "custom_123" {
		t.Fatalf("Resolve after remove=%+v", got)
	}
}

func TestResolveBuiltin(t *testing.T) {
	r := NewRegistry(nil, nil)
	if got := r.Resolve("study"); got.Label != "學習" || got.Color != "#16a34a" {
		t.Fatalf("Resolve(study)=%+v", got)
	}
	if !IsBuiltin("life") || IsBuiltin("custom_1") {
		t.Fatalf("IsBuiltin mismatch")
	}
}
