package matchup

import (
	"math"
	"regexp"
	"strconv"
)

var filenameWeekPattern = regexp.MustCompile(`(?i)\b(?:week|wk)\s*(\d{1,2})\b`)

// ResolveWeek reconciles the competing week signals. Filename beats
// image provenance beats manual hint; a bare numeric week field without
// an explicit image provenance marker is never trusted. When nothing
// resolves, the week is nil and the source is "unknown".
func ResolveWeek(filename string, c Candidate, manualHint *int) (*int, string) {
	if week, ok := weekFromFilename(filename); ok {
		return &week, WeekSourceFilename
	}

	if c.WeekSource == WeekSourceImage {
		if week, ok := coerceWeek(c.Week); ok {
			return &week, WeekSourceImage
		}
	}

	if manualHint != nil && *manualHint >= 1 {
		week := *manualHint
		return &week, WeekSourceManual
	}

	return nil, WeekSourceUnknown
}

func weekFromFilename(filename string) (int, bool) {
	if filename == "" {
		return 0, false
	}
	m := filenameWeekPattern.FindStringSubmatch(filename)
	if m == nil {
		return 0, false
	}
	week, err := strconv.Atoi(m[1])
	if err != nil || week < 1 {
		return 0, false
	}
	return week, true
}

func coerceWeek(v any) (int, bool) {
	switch week := v.(type) {
	case float64:
		if week < 1 || week != math.Trunc(week) {
			return 0, false
		}
		return int(week), true
	case string:
		parsed, err := strconv.Atoi(week)
		if err != nil || parsed < 1 {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
