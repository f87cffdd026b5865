package intent

import (
	"reflect"
	"testing"
	"time"
)

func testMatcher() Matcher {
	return Matcher{Now: func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }}
}

func TestMatchCreateWithTitle(t *testing.T) {
	m := testMatcher()
	a, ok := m.Match("Add a task to buy groceries")
	if !ok {
		t.Fatal("expected match")
	}
	create, ok := a.(CreateTask)
	if !ok {
		t.Fatalf("expected CreateTask, got %T", a)
	}
	if create.Title != "buy groceries" {
		t.Fatalf("title = %q", create.Title)
	}
	if create.Priority != "" {
		t.Fatalf("priority should be unset, got %q", create.Priority)
	}
}

func TestMatchCreateBareConnectiveAsksForTitle(t *testing.T) {
	m := testMatcher()
	for _, s := range []string{"add task to", "add a task to", "create a task called", "make a task named"} {
		a, ok := m.Match(s)
		if !ok {
			t.Fatalf("%q: expected match", s)
		}
		c, isClarify := a.(Clarify)
		if !isClarify {
			t.Fatalf("%q: expected Clarify, got %#v", s, a)
		}
		if c.Reason != "What should the task be called?" {
			t.Fatalf("%q: reason = %q", s, c.Reason)
		}
	}
}

func TestMatchCreateWithPriorityAndDue(t *testing.T) {
	m := testMatcher()
	a, ok := m.Match("add task pay rent due tomorrow with high priority")
	if !ok {
		t.Fatal("expected match")
	}
	create := a.(CreateTask)
	if create.Title != "pay rent" {
		t.Fatalf("title = %q", create.Title)
	}
	if create.Priority != "high" {
		t.Fatalf("priority = %q", create.Priority)
	}
	if create.DueDate != "2026-03-11T23:59:59Z" {
		t.Fatalf("due = %q", create.DueDate)
	}
}

func TestMatchCreateQualifiersInAnyOrder(t *testing.T) {
	m := testMatcher()
	for _, s := range []string{
		"add task pay rent with high priority due tomorrow",
		"add task pay rent due tomorrow with high priority",
	} {
		a, ok := m.Match(s)
		if !ok {
			t.Fatalf("%q: expected match", s)
		}
		create := a.(CreateTask)
		if create.Title != "pay rent" {
			t.Fatalf("%q: title = %q", s, create.Title)
		}
		if create.Priority != "high" {
			t.Fatalf("%q: priority = %q", s, create.Priority)
		}
		if create.DueDate != "2026-03-11T23:59:59Z" {
			t.Fatalf("%q: due = %q", s, create.DueDate)
		}
	}
}

func TestMatchBareAddTaskStartsWizard(t *testing.T) {
	m := testMatcher()
	for _, s := range []string{"add task", "Add a task", "create a new task", "new task", "ٹاسک بنائیں"} {
		a, ok := m.Match(s)
		if !ok {
			t.Fatalf("%q: expected match", s)
		}
		if _, isStart := a.(StartGuidedCreate); !isStart {
			t.Fatalf("%q: expected StartGuidedCreate, got %T", s, a)
		}
	}
}

func TestMatchCompleteDeleteForms(t *testing.T) {
	m := testMatcher()
	cases := []struct {
		in string
		id int64
	}{
		{"complete task 3", 3},
		{"mark task #12 as done", 12},
		{"finish task 7", 7},
		{"ٹاسک 5 مکمل کریں", 5},
	}
	for _, tc := range cases {
		a, ok := m.Match(tc.in)
		if !ok {
			t.Fatalf("%q: expected match", tc.in)
		}
		c, isComplete := a.(CompleteTask)
		if !isComplete || c.TaskID != tc.id {
			t.Fatalf("%q: got %#v", tc.in, a)
		}
	}
	a, ok := m.Match("delete task #9")
	if !ok {
		t.Fatal("expected match")
	}
	if d := a.(DeleteTask); d.TaskID != 9 {
		t.Fatalf("delete id = %d", d.TaskID)
	}
}

func TestMatchSetPriority(t *testing.T) {
	m := testMatcher()
	a, ok := m.Match("set priority of task 4 to urgent")
	if !ok {
		t.Fatal("expected match")
	}
	sp := a.(SetPriority)
	if sp.TaskID != 4 || sp.Priority != "critical" {
		t.Fatalf("got %#v", sp)
	}

	a, _ = m.Match("set task 4 to whatever priority")
	if _, isClarify := a.(Clarify); !isClarify {
		t.Fatalf("unknown priority should clarify, got %T", a)
	}
}

func TestMatchTagOperations(t *testing.T) {
	m := testMatcher()
	a, ok := m.Match("tag task 8 with Shopping")
	if !ok {
		t.Fatal("expected match")
	}
	add := a.(AddTag)
	if add.TaskID != 8 || add.Tag != "shopping" {
		t.Fatalf("got %#v", add)
	}

	a, ok = m.Match("remove tag shopping from task 8")
	if !ok {
		t.Fatal("expected match")
	}
	rm := a.(RemoveTag)
	if rm.TaskID != 8 || rm.Tag != "shopping" {
		t.Fatalf("got %#v", rm)
	}
}

func TestMatchUpdateForms(t *testing.T) {
	m := testMatcher()
	a, ok := m.Match("rename task 2 to Walk the dog")
	if !ok {
		t.Fatal("expected match")
	}
	up := a.(UpdateTask)
	if up.TaskID != 2 || up.Title == nil || *up.Title != "Walk the dog" {
		t.Fatalf("got %#v", up)
	}

	a, _ = m.Match("change the description of task 2 to feed him too")
	up = a.(UpdateTask)
	if up.Description == nil || *up.Description != "feed him too" {
		t.Fatalf("got %#v", up)
	}

	a, _ = m.Match("set the due date of task 2 to next week")
	up = a.(UpdateTask)
	if up.DueDate == nil || *up.DueDate != "2026-03-17T23:59:59Z" {
		t.Fatalf("got %#v", up)
	}
}

func TestMatchListDelegatesToTranslator(t *testing.T) {
	m := testMatcher()
	a, ok := m.Match("Show me all high priority tasks")
	if !ok {
		t.Fatal("expected match")
	}
	list := a.(ListTasks)
	if list.Query.Priority != "high" {
		t.Fatalf("priority = %q", list.Query.Priority)
	}

	// Contradictory filters become a question, not a query.
	a, ok = m.Match("Show completed tasks that are pending")
	if !ok {
		t.Fatal("expected match")
	}
	if _, isClarify := a.(Clarify); !isClarify {
		t.Fatalf("expected Clarify, got %T", a)
	}
}

func TestMatchUnresolvableFallsThrough(t *testing.T) {
	m := testMatcher()
	for _, s := range []string{"milk", "what's the weather", ""} {
		if a, ok := m.Match(s); ok {
			t.Fatalf("%q: expected no match, got %T", s, a)
		}
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	m := testMatcher()
	first, _ := m.Match("add a task to water the plants")
	for i := 0; i < 5; i++ {
		again, _ := m.Match("add a task to water the plants")
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("resolution changed between runs: %#v vs %#v", first, again)
		}
	}
}
