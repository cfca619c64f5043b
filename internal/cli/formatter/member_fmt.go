package formatter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/noise/internal/domain"
)

// recentShown is how many history entries FormatMember prints.
const recentShown = 5

// FormatMember renders one member record for "noise member show".
func FormatMember(id string, rec *domain.MemberRecord, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", Dim("channel"), orDash(rec.ChannelID))
	fmt.Fprintf(&b, "%s %s\n", Dim("points "), Bold(strconv.Itoa(rec.Points)))
	fmt.Fprintf(&b, "%s %s\n", Dim("connect"), Switch(rec.ConnectionEnabled))
	fmt.Fprintf(&b, "%s %s\n", Dim("recs   "), schedule(rec.Recommendation, now))

	if len(rec.KeywordStats) > 0 {
		b.WriteString("\n" + Header("Keywords") + "\n")
		b.WriteString(RenderTable([]string{"Keyword", "Count"}, keywordRows(rec.KeywordStats)))
	}

	b.WriteString("\n" + Header(fmt.Sprintf("History (%d)", len(rec.History))) + "\n")
	if len(rec.History) == 0 {
		b.WriteString(Dim("nothing recorded yet") + "\n")
	}
	for _, h := range rec.RecentHistory(recentShown) {
		vec := StyleOn.Render("vec")
		if !h.HasVector() {
			vec = StyleFailed.Render("---")
		}
		fmt.Fprintf(&b, "%s %s %s\n", vec, Dim(RelativeDateFrom(h.Timestamp, now)), Truncate(h.Content, 70))
	}

	return RenderBox("member "+id, strings.TrimRight(b.String(), "\n"))
}

// FormatMemberList renders one row per member, ids ascending.
func FormatMemberList(ids []string, snap *domain.Snapshot) string {
	if len(ids) == 0 {
		return Dim("no members yet") + "\n"
	}
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		rec := snap.Members[id]
		if rec == nil {
			continue
		}
		recs := "off"
		if rec.Recommendation.Enabled {
			recs = fmt.Sprintf("every %dd", rec.Recommendation.IntervalDays)
		}
		rows = append(rows, []string{
			id,
			strconv.Itoa(rec.Points),
			strconv.Itoa(len(rec.History)),
			Switch(rec.ConnectionEnabled),
			recs,
		})
	}
	return RenderTable([]string{"Member", "Points", "Thoughts", "Connect", "Recs"}, rows)
}

func schedule(s domain.RecommendationSchedule, now time.Time) string {
	if !s.Enabled {
		return Switch(false)
	}
	out := Switch(true) + fmt.Sprintf(" every %dd", s.IntervalDays)
	if s.LastRun != nil {
		out += Dim(", last " + RelativeDateFrom(*s.LastRun, now))
	} else {
		out += Dim(", never run")
	}
	return out
}

func keywordRows(stats map[string]int) [][]string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	// Most used first, then alphabetical.
	sort.Slice(keys, func(i, j int) bool {
		if stats[keys[i]] != stats[keys[j]] {
			return stats[keys[i]] > stats[keys[j]]
		}
		return keys[i] < keys[j]
	})
	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, strconv.Itoa(stats[k])}
	}
	return rows
}

func orDash(s string) string {
	if s == "" {
		return Dim("--")
	}
	return s
}
