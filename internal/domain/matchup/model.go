package matchup

import "time"

// Week provenance values, ordered here from highest to lowest priority.
const (
	WeekSourceFilename = "filename"
	WeekSourceImage    = "image"
	WeekSourceManual   = "manual"
	WeekSourceUnknown  = "unknown"
)

// MatchupRecord is one head-to-head pairing read off a scoreboard
// screenshot. Winner and Diff are always recomputed from the scores and
// never taken from upstream output.
type MatchupRecord struct {
	HomeTeam  string  `json:"homeTeam"`
	HomeScore float64 `json:"homeScore"`
	AwayTeam  string  `json:"awayTeam"`
	AwayScore float64 `json:"awayScore"`
	Winner    string  `json:"winner"`
	Diff      float64 `json:"diff"`
}

type Meta struct {
	WeekSource string `json:"weekSource"`
}

// WeekSnapshot is one immutable extraction result. Week is nil when no
// trusted source resolved it.
type WeekSnapshot struct {
	Week     *int            `json:"week"`
	Matchups []MatchupRecord `json:"matchups"`
	SavedAt  time.Time       `json:"savedAt"`
	Meta     Meta            `json:"meta"`
}

// Candidate is the loosely-typed object pulled out of model text before
// normalization. Fields stay untyped on purpose: the upstream model may
// emit numbers as strings, omit fields, or add noise.
type Candidate struct {
	Matchups   any    `json:"matchups"`
	Week       any    `json:"week"`
	WeekSource string `json:"weekSource"`
}
