package grading

import (
	"reflect"
	"testing"
	"time"

	"github.com/CMPEQ0/lab-mark-api/apperr"
	"github.com/CMPEQ0/lab-mark-api/models"
)

func intPtr(n int) *int { return &n }

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("bad time %q: %v", s, err)
	}
	return v
}

func TestParseDeadline(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}

	tests := []struct {
		input string
		loc   *time.Location
		want  time.Time
	}{
		{"01.01.2024", time.UTC, time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC)},
		{" 01.01.2024 ", time.UTC, time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC)},
		{"01.01.2024", moscow, time.Date(2024, 1, 1, 20, 59, 59, 0, time.UTC)},
		{"15.03.2024 18:00", moscow, time.Date(2024, 3, 15, 15, 0, 0, 0, time.UTC)},
		{"15.03.2024 18:00:30", time.UTC, time.Date(2024, 3, 15, 18, 0, 30, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseDeadline(tt.input, tt.loc)
		if err != nil {
			t.Errorf("ParseDeadline(%q) failed: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseDeadline(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	for _, bad := range []string{"2024-01-01", "32.01.2024", "", "tomorrow"} {
		if _, err := ParseDeadline(bad, time.UTC); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("expected validation failure for %q, got %v", bad, err)
		}
	}
}

func TestPenalty(t *testing.T) {
	deadline, err := ParseDeadline("01.01.2024", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name      string
		completed string
		max       *int
		want      int
	}{
		{"before deadline", "2024-01-01T10:00:00Z", intPtr(3), 0},
		{"exactly at deadline", "2024-01-01T23:59:59Z", intPtr(3), 0},
		{"one second late", "2024-01-02T00:00:00Z", intPtr(3), 0},
		{"six days late", "2024-01-07T23:59:59Z", intPtr(3), 0},
		{"seven days late", "2024-01-08T23:59:59Z", intPtr(3), 1},
		{"thirteen days and change", "2024-01-15T00:00:00Z", intPtr(3), 1},
		{"fourteen days late", "2024-01-15T23:59:59Z", intPtr(3), 2},
		{"fourteen days late capped", "2024-01-15T23:59:59Z", intPtr(1), 1},
		{"long overdue uncapped", "2024-03-01T00:00:00Z", nil, 8},
		{"cap of zero", "2024-03-01T00:00:00Z", intPtr(0), 0},
	}
	for _, tt := range tests {
		got := Penalty(mustTime(t, tt.completed), deadline, tt.max)
		if got != tt.want {
			t.Errorf("%s: Penalty = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestMark(t *testing.T) {
	if Mark(0) != "vv" || Mark(2) != "vv-2" {
		t.Errorf("unexpected marks %q %q", Mark(0), Mark(2))
	}
}

func TestMissingJobs(t *testing.T) {
	runs := []models.CheckRun{{Name: "build"}, {Name: "test"}}

	missing := MissingJobs(runs, []string{"build", "test", "Autograding"})
	if !reflect.DeepEqual(missing, []string{"Autograding"}) {
		t.Errorf("expected only Autograding missing, got %v", missing)
	}
	if missing := MissingJobs(runs, []string{"test", "build"}); len(missing) != 0 {
		t.Errorf("expected nothing missing, got %v", missing)
	}
	if missing := MissingJobs(nil, models.DefaultWorkflows); !reflect.DeepEqual(missing, models.DefaultWorkflows) {
		t.Errorf("expected all defaults missing, got %v", missing)
	}
}

func TestCompletionTime(t *testing.T) {
	early := mustTime(t, "2024-01-01T10:00:00Z")
	late := mustTime(t, "2024-01-03T10:00:00Z")
	failed := mustTime(t, "2024-01-05T10:00:00Z")

	runs := []models.CheckRun{
		{Name: "build", Status: "completed", Conclusion: "success", CompletedAt: &early},
		{Name: "test", Status: "completed", Conclusion: "success", CompletedAt: &late},
		{Name: "lint", Status: "completed", Conclusion: "failure", CompletedAt: &failed},
		{Name: "deploy", Status: "in_progress"},
	}
	got, ok := CompletionTime(runs)
	if !ok || !got.Equal(late) {
		t.Errorf("expected %v, got %v (ok=%v)", late, got, ok)
	}

	if _, ok := CompletionTime(runs[2:]); ok {
		t.Errorf("expected no completion time without successful runs")
	}
}
