package matchup

import (
	"errors"
	"reflect"
	"testing"

	sonic "github.com/bytedance/sonic"
)

func TestExtract_FencedBlockRoundTrip(t *testing.T) {
	inner := `{"matchups":[{"homeTeam":"Alpha","homeScore":100,"awayTeam":"Beta","awayScore":85}]}`
	raw := "Sure, here are the results:\n```json\n" + inner + "\n```\nLet me know if you need anything else."

	got, err := Extract(raw)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	var want Candidate
	if err := sonic.Unmarshal([]byte(inner), &want); err != nil {
		t.Fatalf("unmarshal reference: %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("extracted candidate differs from direct parse:\ngot  %#v\nwant %#v", got, want)
	}
}

func TestExtract_RepairsTrailingComma(t *testing.T) {
	raw := `{"matchups":[{"homeTeam":"Alpha","homeScore":1,"awayTeam":"Beta","awayScore":2,},]}`

	got, err := Extract(raw)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	items, ok := got.Matchups.([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one matchup, got %#v", got.Matchups)
	}
}

func TestExtract_KeyMarkerSkipsLeadingJunk(t *testing.T) {
	raw := `notes {not json at all} final answer: {"matchups":[],"week":3}`

	got, err := Extract(raw)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got.Week != float64(3) {
		t.Fatalf("expected week 3, got %v", got.Week)
	}
}

func TestExtract_BraceSliceFallback(t *testing.T) {
	raw := `The scoreboard shows: {"matchups":[]} hope that helps`

	if _, err := Extract(raw); err != nil {
		t.Fatalf("extract: %v", err)
	}
}

func TestExtract_NoJSONFails(t *testing.T) {
	raw := "I could not read the image, sorry."

	_, err := Extract(raw)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}

	attached, ok := RawText(err)
	if !ok || attached != raw {
		t.Fatalf("expected raw text attached, got %q ok=%v", attached, ok)
	}
}

func TestExtract_EmptyInputFails(t *testing.T) {
	if _, err := Extract(""); !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}
