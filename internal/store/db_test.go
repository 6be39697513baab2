package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_MalformedDSN(t *testing.T) {
	db, err := NewDB("://not-a-dsn")
	require.Error(t, err)
	assert.Nil(t, db, "callers must get a nil pool they can check, not a half-open one")
}

func TestDB_HealthyNilSafe(t *testing.T) {
	var db *DB
	assert.False(t, db.Healthy(context.Background()))
	assert.NoError(t, db.Close())
}
