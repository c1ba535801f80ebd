package timetext

import (
	"errors"
	"testing"
)

func TestExtractTime(t *testing.T) {
	cases := []struct {
		in      string
		time    string
		content string
	}{
		{"09:00 stand-up", "09:00", "stand-up"},
		{"9:05 coffee", "09:05", "coffee"},
		{"  23:59   late call  ", "23:59", "late call"},
		{"0:00\tmidnight", "00:00", "midnight"},
		{"09:00 stand-up\nbring notes", "09:00", "stand-up\nbring notes"},
		{"14:30\nreview\n- agenda", "14:30", "review\n- agenda"},
		{"no-time item", "", "no-time item"},
		{"24:00 invalid hour", "", "24:00 invalid hour"},
		{"12:60 invalid minute", "", "12:60 invalid minute"},
		{"12:5 short minute", "", "12:5 short minute"},
		{"09:00", "", "09:00"},
		{"at 09:00 later", "", "at 09:00 later"},
		{"", "", ""},
	}
	for _, tc := range cases {
		got := ExtractTime(tc.in)
		if got.Time != tc.time || got.Content != tc.content {
			t.Fatalf("ExtractTime(%q)=%+v, want time=%q content=%q", tc.in, got, tc.time, tc.content)
		}
	}
}

func TestExtractRoundTrip(t *testing.T) {
	inputs := []string{"09:00 stand-up", "7:30 gym", "18:15  dinner with  friends "}
	for _, in := range inputs {
		e := ExtractTime(in)
		if !e.HasTime() {
			t.Fatalf("ExtractTime(%q) found no time", in)
		}
		if got, want := e.Time+" "+e.Content, Normalize(in); got != want {
			t.Fatalf("round trip %q: got %q, want %q", in, got, want)
		}
	}
	if got := Normalize("7:30 gym"); got != "07:30 gym" {
		t.Fatalf("Normalize=%q, want %q", got, "07:30 gym")
	}
}

func TestToMinutes(t *testing.T) {
	cases := map[string]int{
		"00:00": 0,
		"09:30": 570,
		"23:59": 1439,
		"24:00": 1440,
		"25:00": 1440,
		"-1:00": 0,
		"ab:cd": 0,
		"10":    600,
		"10:xx": 600,
		"":      0,
	}
	for in, want := range cases {
		if got := ToMinutes(in); got != want {
			t.Fatalf("ToMinutes(%q)=%d, want %d", in, got, want)
		}
	}
}

func TestMinutesRoundTrip(t *testing.T) {
	for m := 0; m < MinutesPerDay; m++ {
		if got := ToMinutes(ToTimeString(m)); got != m {
			t.Fatalf("ToMinutes(ToTimeString(%d))=%d", m, got)
		}
	}
	if got := ToTimeString(-5); got != "00:00" {
		t.Fatalf("ToTimeString(-5)=%q", got)
	}
	if got := ToTimeString(5000); got != "24:00" {
		t.Fatalf("ToTimeString(5000)=%q", got)
	}
}

func TestSortKey(t *testing.T) {
	if got := SortKey(""); got != EndOfDay {
		t.Fatalf("SortKey(\"\")=%d, want %d", got, EndOfDay)
	}
	if got := SortKey("08:15"); got != 495 {
		t.Fatalf("SortKey(08:15)=%d, want 495", got)
	}
}

func TestParseClock(t *testing.T) {
	good := map[string]int{"9:00": 540, "09:00": 540, "23:59": 1439, "24:00": 1440}
	for in, want := range good {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Fatalf("ParseClock(%q)=%d,%v want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"", "9", "9:0", "24:01", "25:00", "-1:00", "aa:bb", "123:00"} {
		if _, err := ParseClock(in); !errors.Is(err, ErrInvalidTime) {
			t.Fatalf("ParseClock(%q) err=%v, want ErrInvalidTime", in, err)
		}
	}
}
