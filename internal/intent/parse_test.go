package intent

import (
	"reflect"
	"testing"
	"time"
)

var parseNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func TestParsePriority(t *testing.T) {
	cases := map[string]string{
		"urgent":    "critical",
		"ASAP":      "critical",
		"high":      "high",
		"important": "high",
		"normal":    "medium",
		"someday":   "low",
	}
	for in, want := range cases {
		got, ok := ParsePriority(in)
		if !ok || got != want {
			t.Fatalf("ParsePriority(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParsePriority("banana"); ok {
		t.Fatal("unknown word must not parse")
	}
}

func TestParseDueDate(t *testing.T) {
	cases := map[string]string{
		"today":      "2026-03-10T23:59:59Z",
		"Tomorrow":   "2026-03-11T23:59:59Z",
		"next week":  "2026-03-17T23:59:59Z",
		"next month": "2026-04-10T23:59:59Z",
		"in 3 days":  "2026-03-13T23:59:59Z",
		"in 2 weeks": "2026-03-24T23:59:59Z",
		"2026-12-01": "2026-12-01T23:59:59Z",
	}
	for in, want := range cases {
		got, ok := ParseDueDate(in, parseNow)
		if !ok || got != want {
			t.Fatalf("ParseDueDate(%q) = %q, %v", in, got, ok)
		}
	}
	for _, in := range []string{"whenever", "in zero days", "13/01/2026"} {
		if _, ok := ParseDueDate(in, parseNow); ok {
			t.Fatalf("ParseDueDate(%q) should fail", in)
		}
	}
}

func TestParseRecurrence(t *testing.T) {
	pattern, interval, ok := ParseRecurrence("every 2 weeks")
	if !ok || pattern != "weekly" || interval != 2 {
		t.Fatalf("got %q %d %v", pattern, interval, ok)
	}
	pattern, interval, ok = ParseRecurrence("daily")
	if !ok || pattern != "daily" || interval != 1 {
		t.Fatalf("got %q %d %v", pattern, interval, ok)
	}
	if _, _, ok := ParseRecurrence("sometimes"); ok {
		t.Fatal("unknown phrase must not parse")
	}
}

func TestParseTags(t *testing.T) {
	got := ParseTags("Home, #errands, home,  ")
	want := []string{"home", "errands"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	long := make([]byte, 40)
	for i := range long {
		long[i] = 'x'
	}
	if tags := ParseTags(string(long)); tags != nil {
		t.Fatalf("overlong tag should be dropped, got %v", tags)
	}
}
