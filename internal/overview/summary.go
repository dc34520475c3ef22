package overview

import (
	"math"

	"github.com/dyluth/rollcall/pkg/attendance"
)

// Dedupe keeps one session per canonical identifier, preferring the remote copy
// over a locally queued one. Order of first appearance is preserved.
func Dedupe(sessions []*attendance.Session) []*attendance.Session {
	index := make(map[string]int, len(sessions))
	out := make([]*attendance.Session, 0, len(sessions))

	for _, s := range sessions {
		id, err := s.CanonicalID()
		if err != nil {
			id = s.ID
		}

		i, seen := index[id]
		if !seen {
			index[id] = len(out)
			out = append(out, s)
			continue
		}
		if isQueued(out[i]) && !isQueued(s) {
			out[i] = s
		}
	}
	return out
}

func isQueued(s *attendance.Session) bool {
	return s.SyncStatus == attendance.SyncPending || s.Status == attendance.StatusOffline
}

// Summary aggregates attendance across sessions.
type Summary struct {
	Sessions int              `json:"sessions"`
	Pending  int              `json:"pending"` // sessions not yet in the remote store
	Totals   attendance.Stats `json:"totals"`
}

// Summarize adds up the stats of every session. Stats are recomputed from records.
func Summarize(sessions []*attendance.Session) Summary {
	sum := Summary{Totals: attendance.Stats{ByGender: map[attendance.Gender]attendance.GenderStats{}}}

	for _, s := range sessions {
		sum.Sessions++
		if isQueued(s) {
			sum.Pending++
		}

		st := attendance.ComputeStats(s.Records)
		sum.Totals.Total += st.Total
		sum.Totals.Present += st.Present
		sum.Totals.Absent += st.Absent
		sum.Totals.Late += st.Late
		sum.Totals.Excused += st.Excused
		for g, gs := range st.ByGender {
			acc := sum.Totals.ByGender[g]
			acc.Total += gs.Total
			acc.Present += gs.Present
			sum.Totals.ByGender[g] = acc
		}
	}

	if sum.Totals.Total > 0 {
		sum.Totals.AttendanceRate = int(math.Round(float64(sum.Totals.Present) * 100 / float64(sum.Totals.Total)))
	}
	return sum
}
