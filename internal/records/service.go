package records

import (
	"context"
	"fmt"
	"sort"
	"time"

	"zkbridge/internal/device"
	"zkbridge/internal/terminal"
)

// deviceClient is the slice of the device service the sync layer needs.
type deviceClient interface {
	Users(ctx context.Context, addr string) ([]terminal.User, error)
	RecentAttendance(ctx context.Context, addr string, retention time.Duration) ([]device.PunchRecord, error)
}

// Store is the persistence surface used by the sync service.
type Store interface {
	UpsertUser(ctx context.Context, u DirectoryUser) error
	InsertPunches(ctx context.Context, entries []LogEntry) (int, error)
	ListDay(ctx context.Context, terminalAddr string, day time.Time) ([]LogEntry, error)
}

// Service moves data between live terminals and the store.
type Service struct {
	store     Store
	dev       deviceClient
	retention time.Duration
}

// NewService creates the sync service. Retention bounds how far back
// ingestion pulls punches from a terminal.
func NewService(store Store, dev deviceClient, retention time.Duration) *Service {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Service{store: store, dev: dev, retention: retention}
}

// SyncUsers reads the terminal directory and upserts every identity under
// its composite key. Returns the number of users seen.
func (s *Service) SyncUsers(ctx context.Context, addr string) (int, error) {
	users, err := s.dev.Users(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("sync users %s: %w", addr, err)
	}
	for _, u := range users {
		row := DirectoryUser{
			TerminalAddr: addr,
			DeviceUserID: u.ID,
			Name:         u.Name,
			Card:         u.Card,
			Role:         u.Privilege,
			Password:     u.Password,
		}
		if err := s.store.UpsertUser(ctx, row); err != nil {
			return 0, fmt.Errorf("upsert user %d on %s: %w", u.ID, addr, err)
		}
	}
	return len(users), nil
}

// IngestTerminal pulls recent punches from one terminal and hands them to
// the store as candidate rows; the store's uniqueness constraint drops the
// ones already on file. Returns punches fetched and rows actually stored.
func (s *Service) IngestTerminal(ctx context.Context, addr string) (fetched, stored int, err error) {
	punches, err := s.dev.RecentAttendance(ctx, addr, s.retention)
	if err != nil {
		return 0, 0, fmt.Errorf("ingest %s: %w", addr, err)
	}
	entries := make([]LogEntry, 0, len(punches))
	for _, p := range punches {
		entries = append(entries, LogEntry{
			TerminalAddr: addr,
			DeviceUserID: p.UserID,
			Name:         p.Name,
			Card:         p.Card,
			Role:         p.Role,
			PunchedAt:    p.Time,
			PunchType:    p.Type,
			CheckStatus:  p.Status,
		})
	}
	stored, err = s.store.InsertPunches(ctx, entries)
	if err != nil {
		return len(punches), stored, fmt.Errorf("store punches %s: %w", addr, err)
	}
	return len(punches), stored, nil
}

// LateEntry is one person arriving after the cutoff on a given day.
type LateEntry struct {
	TerminalAddr string    `json:"terminal_addr"`
	DeviceUserID int       `json:"device_user_id"`
	Name         string    `json:"name"`
	FirstPunch   time.Time `json:"first_punch"`
	LateMinutes  int       `json:"late_minutes"`
}

// LateReport lists identities whose first punch of the day came after the
// cutoff (duration since midnight), sorted most-late first.
func (s *Service) LateReport(ctx context.Context, addr string, day time.Time, cutoff time.Duration) ([]LateEntry, error) {
	entries, err := s.store.ListDay(ctx, addr, day)
	if err != nil {
		return nil, err
	}

	type key struct {
		addr string
		id   int
	}
	first := make(map[key]LogEntry)
	for _, e := range entries {
		k := key{e.TerminalAddr, e.DeviceUserID}
		if cur, ok := first[k]; !ok || e.PunchedAt.Before(cur.PunchedAt) {
			first[k] = e
		}
	}

	var late []LateEntry
	for _, e := range first {
		midnight := time.Date(e.PunchedAt.Year(), e.PunchedAt.Month(), e.PunchedAt.Day(), 0, 0, 0, 0, e.PunchedAt.Location())
		sinceMidnight := e.PunchedAt.Sub(midnight)
		if sinceMidnight <= cutoff {
			continue
		}
		late = append(late, LateEntry{
			TerminalAddr: e.TerminalAddr,
			DeviceUserID: e.DeviceUserID,
			Name:         e.Name,
			FirstPunch:   e.PunchedAt,
			LateMinutes:  int((sinceMidnight - cutoff).Minutes()),
		})
	}
	sort.Slice(late, func(i, j int) bool { return late[i].LateMinutes > late[j].LateMinutes })
	return late, nil
}

// LateDay groups one day's late arrivals.
type LateDay struct {
	Day     string      `json:"day"`
	Entries []LateEntry `json:"entries"`
}

// WeeklyLateReport runs the late report for each of the seven days ending on
// weekEnd. Days with nobody late are omitted.
func (s *Service) WeeklyLateReport(ctx context.Context, addr string, weekEnd time.Time, cutoff time.Duration) ([]LateDay, error) {
	var out []LateDay
	for i := 6; i >= 0; i-- {
		day := weekEnd.AddDate(0, 0, -i)
		entries, err := s.LateReport(ctx, addr, day, cutoff)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			continue
		}
		out = append(out, LateDay{Day: day.Format("2006-01-02"), Entries: entries})
	}
	return out, nil
}

// WorkHoursEntry is one identity's first-to-last punch span for a day.
type WorkHoursEntry struct {
	TerminalAddr  string    `json:"terminal_addr"`
	DeviceUserID  int       `json:"device_user_id"`
	Name          string    `json:"name"`
	FirstPunch    time.Time `json:"first_punch"`
	LastPunch     time.Time `json:"last_punch"`
	WorkedMinutes int       `json:"worked_minutes"`
	Punches       int       `json:"punches"`
}

// WorkHours reports time on site per identity for one day, measured from the
// first punch to the last. A single punch counts as zero minutes.
func (s *Service) WorkHours(ctx context.Context, addr string, day time.Time) ([]WorkHoursEntry, error) {
	entries, err := s.store.ListDay(ctx, addr, day)
	if err != nil {
		return nil, err
	}

	type key struct {
		addr string
		id   int
	}
	agg := make(map[key]*WorkHoursEntry)
	for _, e := range entries {
		k := key{e.TerminalAddr, e.DeviceUserID}
		cur, ok := agg[k]
		if !ok {
			agg[k] = &WorkHoursEntry{
				TerminalAddr: e.TerminalAddr,
				DeviceUserID: e.DeviceUserID,
				Name:         e.Name,
				FirstPunch:   e.PunchedAt,
				LastPunch:    e.PunchedAt,
				Punches:      1,
			}
			continue
		}
		if e.PunchedAt.Before(cur.FirstPunch) {
			cur.FirstPunch = e.PunchedAt
		}
		if e.PunchedAt.After(cur.LastPunch) {
			cur.LastPunch = e.PunchedAt
		}
		cur.Punches++
	}

	out := make([]WorkHoursEntry, 0, len(agg))
	for _, v := range agg {
		v.WorkedMinutes = int(v.LastPunch.Sub(v.FirstPunch).Minutes())
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TerminalAddr != out[j].TerminalAddr {
			return out[i].TerminalAddr < out[j].TerminalAddr
		}
		return out[i].DeviceUserID < out[j].DeviceUserID
	})
	return out, nil
}
