package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkbridge/internal/terminal"
)

func TestFetchRecent_WindowAndOrder(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	retention := 30 * 24 * time.Hour
	cutoff := now.Add(-retention)

	sess := &fakeSession{punches: []terminal.Punch{
		{UserID: 1, Time: cutoff.Add(-time.Second), Type: 0}, // too old
		{UserID: 1, Time: cutoff, Type: 0},                   // exactly at boundary: kept
		{UserID: 1, Time: now.Add(-time.Hour), Type: 1},
		{UserID: 1, Time: now.Add(-time.Minute), Type: 0},
	}}

	records, err := fetchRecent(sess, dirOf(), retention, now)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first.
	assert.Equal(t, now.Add(-time.Minute), records[0].Time)
	assert.Equal(t, now.Add(-time.Hour), records[1].Time)
	assert.Equal(t, cutoff, records[2].Time)

	for _, rec := range records {
		assert.False(t, rec.Time.Before(cutoff), "punch %v outside window", rec.Time)
	}
}

func TestFetchRecent_EnrichmentScenario(t *testing.T) {
	// Terminal holds {(1,"Ali"), (2,"Sara")}; punches land for both plus an
	// id that is no longer enrolled.
	t0 := time.Now().Add(-48 * time.Hour)
	sess := &fakeSession{punches: []terminal.Punch{
		{UserID: 1, Time: t0, Type: 0},
		{UserID: 2, Time: t0.Add(time.Hour), Type: 1},
		{UserID: 9, Time: t0.Add(2 * time.Hour), Type: 7},
	}}
	dir := dirOf(
		terminal.User{ID: 1, Name: "Ali"},
		terminal.User{ID: 2, Name: "Sara"},
	)

	records, err := fetchRecent(sess, dir, 30*24*time.Hour, time.Now())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "Unknown", records[0].Name)
	assert.Equal(t, "Unknown (7)", records[0].Status)
	assert.Equal(t, "Sara", records[1].Name)
	assert.Equal(t, "Check Out", records[1].Status)
	assert.Equal(t, "Ali", records[2].Name)
	assert.Equal(t, "Check In", records[2].Status)
}

func TestFetchRecent_EmptyHistory(t *testing.T) {
	records, err := fetchRecent(&fakeSession{}, dirOf(), time.Hour, time.Now())
	require.NoError(t, err)
	assert.Empty(t, records)
}
