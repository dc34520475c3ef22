package attendance

import (
	"fmt"
	"time"
)

// Gender is the gender category used in the stats breakdown.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Validate checks if the Gender is a valid enum value.
func (g Gender) Validate() error {
	switch g {
	case GenderMale, GenderFemale:
		return nil
	default:
		return fmt.Errorf("unknown gender: %q", g)
	}
}

// MarkStatus is the attendance status of one learner within a session.
type MarkStatus string

const (
	MarkPresent MarkStatus = "present"
	MarkAbsent  MarkStatus = "absent"
	MarkLate    MarkStatus = "late"
	MarkExcused MarkStatus = "excused"
	MarkUnset   MarkStatus = "unset"
)

// Validate checks if the MarkStatus is a valid enum value.
func (m MarkStatus) Validate() error {
	switch m {
	case MarkPresent, MarkAbsent, MarkLate, MarkExcused, MarkUnset:
		return nil
	default:
		return fmt.Errorf("unknown mark status: %q", m)
	}
}

// Status is the lifecycle status of a session.
type Status string

const (
	// StatusDraft is a saved but editable session
	StatusDraft Status = "draft"

	// StatusSubmitted is a finalized session; it is never downgraded to draft
	StatusSubmitted Status = "submitted"

	// StatusLocked is an archived session, set outside this module
	StatusLocked Status = "locked"

	// StatusOffline marks a session held in the local pending queue
	StatusOffline Status = "offline"
)

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusDraft, StatusSubmitted, StatusLocked, StatusOffline:
		return nil
	default:
		return fmt.Errorf("unknown session status: %q", s)
	}
}

// IsTerminalIntent reports whether s is a status a writer may ask a session to end
// up in once it reaches the remote store.
func (s Status) IsTerminalIntent() bool {
	return s == StatusDraft || s == StatusSubmitted
}

// IsFinal reports whether a stored session with this status must not be
// downgraded back to a draft.
func (s Status) IsFinal() bool {
	return s == StatusSubmitted || s == StatusLocked
}

// SyncStatus tracks whether a session has reached the remote store.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// Validate checks if the SyncStatus is a valid enum value.
func (s SyncStatus) Validate() error {
	switch s {
	case SyncPending, SyncSynced, SyncFailed:
		return nil
	default:
		return fmt.Errorf("unknown sync status: %q", s)
	}
}

// Record is one learner's mark within a session.
type Record struct {
	LearnerID     string     `json:"learnerId"`
	LearnerName   string     `json:"learnerName"`
	Gender        Gender     `json:"gender"`
	Status        MarkStatus `json:"status"`
	ExcusedReason string     `json:"excusedReason,omitempty"` // only when Status is excused
	Note          string     `json:"note,omitempty"`
	MarkedAt      time.Time  `json:"markedAt"`
	LocalID       string     `json:"localId,omitempty"` // provisional id assigned by the recording device
}

// GenderStats is the per-gender slice of a session's stats.
type GenderStats struct {
	Total   int `json:"total"`
	Present int `json:"present"`
}

// Stats are derived from a session's records and recomputed on every write.
type Stats struct {
	Total          int                    `json:"total"`
	Present        int                    `json:"present"`
	Absent         int                    `json:"absent"`
	Late           int                    `json:"late"`
	Excused        int                    `json:"excused"`
	AttendanceRate int                    `json:"attendanceRate"` // percent, 0-100
	ByGender       map[Gender]GenderStats `json:"byGender"`
}

// Session is the unit of synchronization.
type Session struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Date           string     `json:"date"` // ISO day, timezone-naive
	ClassID        string     `json:"classId"`
	ClassName      string     `json:"className"`
	TeacherID      string     `json:"teacherId"`
	TeacherName    string     `json:"teacherName"`
	Status         Status     `json:"status"`
	Records        []Record   `json:"records"`
	Stats          Stats      `json:"stats"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	SubmittedAt    *time.Time `json:"submittedAt,omitempty"`
	SyncStatus     SyncStatus `json:"syncStatus"`
	SearchableDate string     `json:"searchableDate"`
}

// Validate checks the excuse reason is consistent with the mark status.
func (r *Record) Validate() error {
	if r.LearnerID == "" {
		return fmt.Errorf("learner ID cannot be empty")
	}

	if err := r.Status.Validate(); err != nil {
		return fmt.Errorf("learner %s: %w", r.LearnerID, err)
	}

	if err := r.Gender.Validate(); err != nil {
		return fmt.Errorf("learner %s: %w", r.LearnerID, err)
	}

	if r.ExcusedReason != "" && r.Status != MarkExcused {
		return fmt.Errorf("learner %s: excused reason present but status is %q", r.LearnerID, r.Status)
	}

	return nil
}

// Validate checks the session carries its identity fields and consistent records.
func (s *Session) Validate() error {
	if s.ClassID == "" {
		return fmt.Errorf("class ID cannot be empty")
	}

	if s.TeacherID == "" {
		return fmt.Errorf("teacher ID cannot be empty")
	}

	if _, err := NormalizeDay(s.Date); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}

	if s.Status != "" {
		if err := s.Status.Validate(); err != nil {
			return err
		}
	}

	if s.SyncStatus != "" {
		if err := s.SyncStatus.Validate(); err != nil {
			return err
		}
	}

	for i := range s.Records {
		if err := s.Records[i].Validate(); err != nil {
			return fmt.Errorf("invalid record at index %d: %w", i, err)
		}
	}

	return nil
}

// CanonicalID recomputes the identifier from the natural key, ignoring s.ID.
// Queued copies carry a provisional ID, so this is how they are matched to
// their remote document.
func (s *Session) CanonicalID() (string, error) {
	return IdentifierFor(s.ClassID, s.TeacherID, s.Date)
}

// Refresh normalizes the date and record timestamps and recomputes stats.
// Call it before every write.
func (s *Session) Refresh() error {
	day, err := NormalizeDay(s.Date)
	if err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	s.Date = day
	s.SearchableDate = day

	for i := range s.Records {
		s.Records[i].MarkedAt = WireTime(s.Records[i].MarkedAt)
		if s.Records[i].Status == "" {
			s.Records[i].Status = MarkUnset
		}
	}

	s.Stats = ComputeStats(s.Records)

	if s.Title == "" {
		s.Title = fmt.Sprintf("%s %s", s.ClassName, day)
		if s.ClassName == "" {
			s.Title = fmt.Sprintf("Attendance %s", day)
		}
	}

	return nil
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	if s.Records != nil {
		c.Records = make([]Record, len(s.Records))
		copy(c.Records, s.Records)
	}
	if s.Stats.ByGender != nil {
		c.Stats.ByGender = make(map[Gender]GenderStats, len(s.Stats.ByGender))
		for g, gs := range s.Stats.ByGender {
			c.Stats.ByGender[g] = gs
		}
	}
	if s.SubmittedAt != nil {
		t := *s.SubmittedAt
		c.SubmittedAt = &t
	}
	return &c
}

// WireTime converts t to the representation stored remotely: UTC with
// millisecond precision. The zero time is left as is.
func WireTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Millisecond)
}
