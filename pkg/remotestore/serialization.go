package remotestore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dyluth/rollcall/pkg/attendance"
)

// Serialization helpers for converting between sessions and Redis hashes
//
// Scalar fields are stored as individual hash fields so they can be read and
// merged one by one. Records and stats are JSON-encoded into single fields.
// The timestamp fields are not produced here: Client.UpsertSession assigns
// them from the server clock.

// TimeLayout is the ISO datetime layout of every stored timestamp.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Hash field names that are assigned by the server on write.
const (
	fieldCreatedAt   = "createdAt"
	fieldUpdatedAt   = "updatedAt"
	fieldSubmittedAt = "submittedAt"
	fieldStatus      = "status"
)

// SessionToHash converts a session to the Redis hash written by a merge-upsert.
func SessionToHash(s *attendance.Session) (map[string]interface{}, error) {
	records := s.Records
	if records == nil {
		records = []attendance.Record{}
	}

	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}

	statsJSON, err := json.Marshal(s.Stats)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stats: %w", err)
	}

	hash := map[string]interface{}{
		"id":             s.ID,
		"title":          s.Title,
		"date":           s.Date,
		"classId":        s.ClassID,
		"className":      s.ClassName,
		"teacherId":      s.TeacherID,
		"teacherName":    s.TeacherName,
		fieldStatus:      string(s.Status),
		"records":        string(recordsJSON),
		"stats":          string(statsJSON),
		"syncStatus":     string(s.SyncStatus),
		"searchableDate": s.SearchableDate,
	}

	return hash, nil
}

// HashToSession converts a Redis hash back into a session.
// Documents missing an identity field are rejected; optional fields are
// filled with defaults.
func HashToSession(hash map[string]string) (*attendance.Session, error) {
	for _, field := range []string{"id", "classId", "teacherId", "date"} {
		if hash[field] == "" {
			return nil, fmt.Errorf("document missing required field %q", field)
		}
	}

	day, err := attendance.NormalizeDay(hash["date"])
	if err != nil {
		return nil, fmt.Errorf("invalid date field: %w", err)
	}

	var records []attendance.Record
	if recordsJSON := hash["records"]; recordsJSON != "" {
		if err := json.Unmarshal([]byte(recordsJSON), &records); err != nil {
			return nil, fmt.Errorf("failed to unmarshal records: %w", err)
		}
	}
	if records == nil {
		records = []attendance.Record{}
	}

	var stats attendance.Stats
	if statsJSON := hash["stats"]; statsJSON != "" {
		if err := json.Unmarshal([]byte(statsJSON), &stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
		}
	} else {
		stats = attendance.ComputeStats(records)
	}
	if stats.ByGender == nil {
		stats.ByGender = map[attendance.Gender]attendance.GenderStats{}
	}

	createdAt, err := parseTime(hash[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt field: %w", err)
	}
	updatedAt, err := parseTime(hash[fieldUpdatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid updatedAt field: %w", err)
	}

	var submittedAt *time.Time
	if raw := hash[fieldSubmittedAt]; raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid submittedAt field: %w", err)
		}
		submittedAt = &t
	}

	status := attendance.Status(hash[fieldStatus])
	if status == "" {
		status = attendance.StatusDraft
	}
	syncStatus := attendance.SyncStatus(hash["syncStatus"])
	if syncStatus == "" {
		syncStatus = attendance.SyncSynced
	}
	searchable := hash["searchableDate"]
	if searchable == "" {
		searchable = day
	}

	session := &attendance.Session{
		ID:             hash["id"],
		Title:          hash["title"],
		Date:           day,
		ClassID:        hash["classId"],
		ClassName:      hash["className"],
		TeacherID:      hash["teacherId"],
		TeacherName:    hash["teacherName"],
		Status:         status,
		Records:        records,
		Stats:          stats,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		SubmittedAt:    submittedAt,
		SyncStatus:     syncStatus,
		SearchableDate: searchable,
	}

	return session, nil
}

func formatTime(t time.Time) string {
	return attendance.WireTime(t).Format(TimeLayout)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, raw)
	if err != nil {
		// Documents written by other clients may use full RFC3339 precision
		t, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}
