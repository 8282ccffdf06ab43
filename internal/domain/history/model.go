package history

import (
	"fmt"
	"time"

	"github.com/riskibarqy/matchup-parser/internal/domain/matchup"
)

// Entry is one stored version of a week's extraction result. Entries
// are immutable once written; a re-parse of the same week appends a new
// entry instead of mutating an old one.
type Entry struct {
	ID         string               `json:"id"`
	Week       int                  `json:"week"`
	Label      string               `json:"label"`
	PreviousID string               `json:"previousId,omitempty"`
	SavedAt    time.Time            `json:"savedAt"`
	Snapshot   matchup.WeekSnapshot `json:"snapshot"`
}

// Summary is the listing projection of an entry, without the snapshot
// payload.
type Summary struct {
	ID      string    `json:"id"`
	Week    int       `json:"week"`
	Label   string    `json:"label"`
	SavedAt time.Time `json:"savedAt"`
}

func (e Entry) Summary() Summary {
	return Summary{ID: e.ID, Week: e.Week, Label: e.Label, SavedAt: e.SavedAt}
}

// NewLabel builds the human-readable recency label shown in history
// listings.
func NewLabel(week int, savedAt time.Time) string {
	return fmt.Sprintf("Week %d — %s", week, savedAt.Format(time.RFC3339))
}
