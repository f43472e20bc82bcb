package planner

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidDays is returned for an empty day list or a day outside 1..7.
	ErrInvalidDays = errors.New("days must be a non-empty list of 1..7")
	// ErrDuplicateDays is returned when a day is requested twice.
	ErrDuplicateDays = errors.New("days must be unique")
)

// DayLabels are the short German weekday names, indexed by day number.
var DayLabels = [DaysPerWeek + 1]string{"", "Mo", "Di", "Mi", "Do", "Fr", "Sa", "So"}

var dayAliases = map[string]int{
	"mo": 1, "montag": 1,
	"di": 2, "dienstag": 2,
	"mi": 3, "mittwoch": 3,
	"do": 4, "donnerstag": 4,
	"fr": 5, "freitag": 5,
	"sa": 6, "samstag": 6,
	"so": 7, "sonntag": 7,
}

// ValidateDays checks a swap request and returns the days sorted. Nothing
// is deduplicated: a repeated day is an error.
func ValidateDays(days []int) ([]int, error) {
	if len(days) == 0 {
		return nil, ErrInvalidDays
	}
	seen := make(map[int]bool, len(days))
	for _, d := range days {
		if d < 1 || d > DaysPerWeek {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidDays, d)
		}
		if seen[d] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateDays, d)
		}
		seen[d] = true
	}
	out := append([]int(nil), days...)
	sort.Ints(out)
	return out, nil
}

var swapPrefixRe = regexp.MustCompile(`(?i)^swap\s*`)

// ParseSwapDays reads chat input such as "swap 2 5 7", "swap di fr so" or
// "swap 2,5,7". Repeated days are merged and the result is sorted.
func ParseSwapDays(text string) ([]int, error) {
	raw := swapPrefixRe.ReplaceAllString(strings.TrimSpace(text), "")
	parts := strings.Fields(strings.ReplaceAll(raw, ",", " "))
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: swap needs days (e.g. swap 2 5 7 or swap di fr so)", ErrInvalidDays)
	}

	seen := make(map[int]bool)
	var days []int
	for _, p := range parts {
		p = strings.ToLower(p)
		var d int
		if n, err := strconv.Atoi(p); err == nil {
			if n < 1 || n > DaysPerWeek {
				return nil, fmt.Errorf("%w: day numbers must be 1..7", ErrInvalidDays)
			}
			d = n
		} else if alias, ok := dayAliases[p]; ok {
			d = alias
		} else {
			return nil, fmt.Errorf("%w: unknown day: %s", ErrInvalidDays, p)
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Ints(days)
	return days, nil
}

// WeekStart returns the Monday (00:00) of the week containing t in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// WeekKey formats a week start as YYYY-MM-DD.
func WeekKey(weekStart time.Time) string {
	return weekStart.Format("2006-01-02")
}
