package filter

import (
	"path/filepath"
	"strings"

	"github.com/dyluth/rollcall/pkg/attendance"
)

// Criteria defines filtering criteria for sessions.
// All filters are ANDed together - a session must match ALL criteria to pass.
type Criteria struct {
	ClassGlob string // Glob pattern matched against class ID and class name, empty = no filter
	TeacherID string // Exact, case-insensitive match on teacher ID, empty = no filter
	MinRate   int    // Minimum attendance rate in percent, 0 = no filter
	MaxRate   int    // Maximum attendance rate in percent, 0 = no filter
}

// Matches returns true if the session matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(s *attendance.Session) bool {
	if c.ClassGlob != "" && !globMatch(c.ClassGlob, s.ClassID) && !globMatch(c.ClassGlob, s.ClassName) {
		return false
	}

	if c.TeacherID != "" && !strings.EqualFold(c.TeacherID, s.TeacherID) {
		return false
	}

	if c.MinRate > 0 && s.Stats.AttendanceRate < c.MinRate {
		return false
	}
	if c.MaxRate > 0 && s.Stats.AttendanceRate > c.MaxRate {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.ClassGlob != "" || c.TeacherID != "" || c.MinRate > 0 || c.MaxRate > 0
}

// Apply returns the sessions matching c, preserving order.
func (c *Criteria) Apply(sessions []*attendance.Session) []*attendance.Session {
	if !c.HasFilters() {
		return sessions
	}
	out := make([]*attendance.Session, 0, len(sessions))
	for _, s := range sessions {
		if c.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}

func globMatch(pattern, value string) bool {
	if value == "" {
		return false
	}
	matched, err := filepath.Match(strings.ToLower(pattern), strings.ToLower(value))
	return err == nil && matched
}
