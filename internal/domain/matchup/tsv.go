package matchup

import (
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// RenderTSV renders matchups as paste-ready tab-separated text: one line
// per team with its score at two decimals, a blank line between
// matchups.
func RenderTSV(matchups []MatchupRecord) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for i, m := range matchups {
		if i > 0 {
			_, _ = buf.WriteString("\n\n")
		}
		writeTeamLine(buf, m.HomeTeam, m.HomeScore)
		_ = buf.WriteByte('\n')
		writeTeamLine(buf, m.AwayTeam, m.AwayScore)
	}

	return buf.String()
}

func writeTeamLine(buf *bytebufferpool.ByteBuffer, team string, score float64) {
	_, _ = buf.WriteString(team)
	_ = buf.WriteByte('\t')
	buf.B = strconv.AppendFloat(buf.B, score, 'f', 2, 64)
}
