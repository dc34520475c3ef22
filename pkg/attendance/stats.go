package attendance

import "math"

// ComputeStats derives session stats from its records.
// The attendance rate is present/total as a rounded percentage, 0 for no records.
func ComputeStats(records []Record) Stats {
	stats := Stats{
		Total:    len(records),
		ByGender: make(map[Gender]GenderStats),
	}

	for _, r := range records {
		switch r.Status {
		case MarkPresent:
			stats.Present++
		case MarkAbsent:
			stats.Absent++
		case MarkLate:
			stats.Late++
		case MarkExcused:
			stats.Excused++
		}

		if r.Gender != "" {
			gs := stats.ByGender[r.Gender]
			gs.Total++
			if r.Status == MarkPresent {
				gs.Present++
			}
			stats.ByGender[r.Gender] = gs
		}
	}

	if stats.Total > 0 {
		stats.AttendanceRate = int(math.Round(float64(stats.Present) * 100 / float64(stats.Total)))
	}

	return stats
}
