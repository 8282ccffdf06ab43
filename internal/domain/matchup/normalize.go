package matchup

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NormalizeOptions controls batch failure policy. Strict mode (the
// default) rejects the whole batch on the first bad record; a partially
// wrong scoreboard is worse than an explicit error. SkipBadRecords
// drops offending records and keeps the rest.
type NormalizeOptions struct {
	SkipBadRecords bool
}

// Normalize validates a loosely-typed candidate and coerces it into
// well-formed records. Winner and Diff are recomputed unconditionally.
func Normalize(c Candidate, opts NormalizeOptions) ([]MatchupRecord, error) {
	if c.Matchups == nil {
		return nil, fmt.Errorf("%w: matchups field missing", ErrSchemaInvalid)
	}

	items, ok := c.Matchups.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: matchups is not a list", ErrSchemaInvalid)
	}

	records := make([]MatchupRecord, 0, len(items))
	for i, item := range items {
		record, err := normalizeRecord(item)
		if err != nil {
			if opts.SkipBadRecords {
				continue
			}
			return nil, fmt.Errorf("matchup %d: %w", i, err)
		}
		records = append(records, record)
	}

	return records, nil
}

func normalizeRecord(item any) (MatchupRecord, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return MatchupRecord{}, fmt.Errorf("%w: record is not an object", ErrSchemaInvalid)
	}

	homeScore, err := coerceScore(obj["homeScore"])
	if err != nil {
		return MatchupRecord{}, fmt.Errorf("homeScore: %w", err)
	}
	awayScore, err := coerceScore(obj["awayScore"])
	if err != nil {
		return MatchupRecord{}, fmt.Errorf("awayScore: %w", err)
	}

	record := MatchupRecord{
		HomeTeam:  coerceName(obj["homeTeam"]),
		HomeScore: homeScore,
		AwayTeam:  coerceName(obj["awayTeam"]),
		AwayScore: awayScore,
	}

	// Exact tie leaves Winner empty.
	switch {
	case homeScore > awayScore:
		record.Winner = record.HomeTeam
	case awayScore > homeScore:
		record.Winner = record.AwayTeam
	}
	record.Diff = round2(math.Abs(homeScore - awayScore))

	return record, nil
}

func coerceName(v any) string {
	switch name := v.(type) {
	case string:
		return strings.TrimSpace(name)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(name))
	}
}

func coerceScore(v any) (float64, error) {
	switch score := v.(type) {
	case float64:
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return 0, fmt.Errorf("%w: %v", ErrNonNumericScore, score)
		}
		return score, nil
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				return r
			}
			return -1
		}, score)
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0, fmt.Errorf("%w: %q", ErrNonNumericScore, score)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrNonNumericScore, v)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
