package db

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrationFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	return fsys
}

func TestLoadMigrations_SortsByVersion(t *testing.T) {
	m := NewMigrator(nil, migrationFS(map[string]string{
		"010_billing.sql":   "SELECT 10;",
		"002_visits.sql":    "SELECT 2;",
		"001_patients.sql":  "CREATE TABLE patients (id UUID PRIMARY KEY);",
		"005_inpatient.sql": "SELECT 5;",
	}))

	migrations, err := m.LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 4)

	var versions []int
	for _, mig := range migrations {
		versions = append(versions, mig.Version)
	}
	assert.Equal(t, []int{1, 2, 5, 10}, versions)
	assert.Equal(t, "001_patients.sql", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE patients (id UUID PRIMARY KEY);", migrations[0].SQL)
}

func TestLoadMigrations_SkipsUnnumberedFiles(t *testing.T) {
	m := NewMigrator(nil, migrationFS(map[string]string{
		"001_valid.sql":      "SELECT 1;",
		"readme.sql":         "-- no prefix",
		"notes.txt":          "not sql",
		"abc_invalid.sql":    "-- non-numeric prefix",
		"002_also_valid.sql": "SELECT 2;",
	}))

	migrations, err := m.LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, 2, migrations[1].Version)
}

func TestLoadMigrations_Empty(t *testing.T) {
	migrations, err := NewMigrator(nil, fstest.MapFS{}).LoadMigrations()
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestPending_RespectsTargetAndApplied(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}, {Version: 4}}
	done := map[int]time.Time{1: time.Now()}

	got := pending(all, done, 3)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Version)
	assert.Equal(t, 3, got[1].Version)

	assert.Len(t, pending(all, done, 0), 3)
}

func TestStatusOf(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	all := []Migration{{Version: 1, Name: "001_patients.sql"}, {Version: 2, Name: "002_visits.sql"}}

	st := statusOf(all, map[int]time.Time{1: at})
	require.Len(t, st, 2)
	assert.True(t, st[0].Applied)
	require.NotNil(t, st[0].AppliedAt)
	assert.Equal(t, at, *st[0].AppliedAt)
	assert.False(t, st[1].Applied)
	assert.Nil(t, st[1].AppliedAt)
}
