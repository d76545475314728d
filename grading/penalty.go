package grading

import (
	"strconv"
	"strings"
	"time"

	"github.com/CMPEQ0/lab-mark-api/apperr"
	"github.com/CMPEQ0/lab-mark-api/models"
)

const (
	dateLayout = "02.01.2006"
	week       = 7
	day        = 24 * time.Hour
)

var timeLayouts = []string{"02.01.2006 15:04:05", "02.01.2006 15:04"}

// ParseDeadline parses a DD.MM.YYYY deadline in loc. A bare date means the
// last second of that day; an explicit HH:MM[:SS] is used as given.
func ParseDeadline(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, loc), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("deadline %q is not a DD.MM.YYYY date", s)
}

// Penalty is one point per full week past the deadline, counted in whole
// days, capped at penaltyMax when it is set. Completion at the deadline is on time.
func Penalty(completed, deadline time.Time, penaltyMax *int) int {
	if !completed.After(deadline) {
		return 0
	}
	daysLate := int(completed.Sub(deadline) / day)
	points := daysLate / week
	if penaltyMax != nil && points > *penaltyMax {
		points = *penaltyMax
	}
	return points
}

// Mark renders the spreadsheet token for a penalty.
func Mark(penalty int) string {
	if penalty == 0 {
		return "vv"
	}
	return "vv-" + strconv.Itoa(penalty)
}

// MissingJobs returns the required names, in order, that no check run carries.
func MissingJobs(runs []models.CheckRun, required []string) []string {
	present := make(map[string]bool, len(runs))
	for _, r := range runs {
		present[r.Name] = true
	}
	var missing []string
	for _, name := range required {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// CompletionTime is the latest completion among successful check runs.
// It reports false when no run completed successfully.
func CompletionTime(runs []models.CheckRun) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, r := range runs {
		if !r.Succeeded() || r.CompletedAt == nil {
			continue
		}
		if !found || r.CompletedAt.After(latest) {
			latest = *r.CompletedAt
			found = true
		}
	}
	return latest, found
}
