package matchup

import (
	"regexp"
	"strings"

	sonic "github.com/bytedance/sonic"
)

var (
	fencedBlockPattern  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingCommaRepair = regexp.MustCompile(`,\s*([}\]])`)
)

const matchupsKeyMarker = `"matchups"`

// Extract locates a JSON object inside free-form model output and parses
// it into a Candidate. Attempts run in order: fenced code block, slice
// around the matchups key marker, first-to-last brace slice. Each
// attempt first repairs trailing commas. Failure carries the raw text.
func Extract(raw string) (Candidate, error) {
	for _, slice := range candidateSlices(raw) {
		repaired := trailingCommaRepair.ReplaceAllString(slice, "$1")

		var c Candidate
		if err := sonic.Unmarshal([]byte(repaired), &c); err == nil {
			return c, nil
		}
	}

	return Candidate{}, WithRawText(ErrExtractionFailed, raw)
}

func candidateSlices(raw string) []string {
	var slices []string

	if m := fencedBlockPattern.FindStringSubmatch(raw); m != nil {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			slices = append(slices, inner)
		}
	}

	if idx := strings.Index(raw, matchupsKeyMarker); idx >= 0 {
		start := strings.LastIndex(raw[:idx], "{")
		end := strings.LastIndex(raw, "}")
		if start >= 0 && end > start {
			slices = append(slices, raw[start:end+1])
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		slices = append(slices, raw[start:end+1])
	}

	return slices
}
