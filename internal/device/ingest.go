package device

import (
	"fmt"
	"time"

	"zkbridge/internal/terminal"
)

// PunchRecord is one attendance event after identity enrichment.
type PunchRecord struct {
	UserID int       `json:"user_id"`
	Name   string    `json:"name"`
	Card   *string   `json:"card"`
	Role   *int      `json:"role"`
	Time   time.Time `json:"time"`
	Type   int       `json:"punch_type"`
	Status string    `json:"check_status"`
}

// fetchRecent pulls the full punch history from the session, reverses it so
// newest comes first (terminals return oldest-first), drops everything older
// than the retention window, and enriches what remains. The cutoff is strict:
// a punch exactly at now-retention is kept.
func fetchRecent(sess terminal.Session, dir Directory, retention time.Duration, now time.Time) ([]PunchRecord, error) {
	punches, err := sess.GetAttendance()
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}

	cutoff := now.Add(-retention)
	out := make([]PunchRecord, 0, len(punches))
	for i := len(punches) - 1; i >= 0; i-- {
		p := punches[i]
		if p.Time.Before(cutoff) {
			continue
		}
		out = append(out, dir.Enrich(p))
	}
	return out, nil
}
