// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/internal/store"
	"github.com/holomush/accountd/pkg/errutil"
)

type fakeMigrator struct {
	calls   []string
	steps   int
	forced  int
	version uint
	dirty   bool
	status  *store.MigrationStatus
	err     error
	closed  bool
}

func (m *fakeMigrator) Up() error   { m.calls = append(m.calls, "up"); return m.err }
func (m *fakeMigrator) Down() error { m.calls = append(m.calls, "down"); return m.err }
func (m *fakeMigrator) Steps(n int) error {
	m.calls = append(m.calls, "steps")
	m.steps = n
	return m.err
}

func (m *fakeMigrator) Version() (uint, bool, error) {
	m.calls = append(m.calls, "version")
	return m.version, m.dirty, m.err
}

func (m *fakeMigrator) Force(v int) error {
	m.calls = append(m.calls, "force")
	m.forced = v
	return m.err
}

func (m *fakeMigrator) Status() (*store.MigrationStatus, error) {
	m.calls = append(m.calls, "status")
	return m.status, m.err
}

func (m *fakeMigrator) Close() error {
	m.closed = true
	return nil
}

// useFakeMigrator swaps newMigrator for the duration of the test.
func useFakeMigrator(t *testing.T, m *fakeMigrator) *string {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/accountd")

	var gotURL string
	orig := newMigrator
	newMigrator = func(url string) (Migrator, error) {
		gotURL = url
		return m, nil
	}
	t.Cleanup(func() { newMigrator = orig })
	return &gotURL
}

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "leading whitespace is handled", input: "  42", wantVersion: 42},
		{name: "trailing chars are ignored", input: "3abc", wantVersion: 3},
		{name: "negative parses", input: "-1", wantVersion: -1},
		{name: "non-numeric returns error", input: "abc", wantErr: true},
		{name: "empty string returns error", input: "", wantErr: true},
		{name: "whitespace only returns error", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				assert.Equal(t, 0, version)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}

func TestMigrateCommands(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		migrator  *fakeMigrator
		wantCalls []string
		wantOut   string
	}{
		{
			name:      "up",
			args:      []string{"migrate", "up"},
			migrator:  &fakeMigrator{},
			wantCalls: []string{"up"},
			wantOut:   "Migrations completed successfully",
		},
		{
			name:      "down defaults to one step",
			args:      []string{"migrate", "down"},
			migrator:  &fakeMigrator{},
			wantCalls: []string{"steps"},
			wantOut:   "Rolling back 1 migration(s)",
		},
		{
			name:      "down all",
			args:      []string{"migrate", "down", "--all"},
			migrator:  &fakeMigrator{},
			wantCalls: []string{"down"},
			wantOut:   "Rollback completed successfully",
		},
		{
			name:      "version",
			args:      []string{"migrate", "version"},
			migrator:  &fakeMigrator{version: 2},
			wantCalls: []string{"version"},
			wantOut:   "2\n",
		},
		{
			name:      "dirty version",
			args:      []string{"migrate", "version"},
			migrator:  &fakeMigrator{version: 2, dirty: true},
			wantCalls: []string{"version"},
			wantOut:   "2 (dirty)",
		},
		{
			name:      "force",
			args:      []string{"migrate", "force", "1"},
			migrator:  &fakeMigrator{},
			wantCalls: []string{"force"},
			wantOut:   "Forced schema version to 1",
		},
		{
			name: "status",
			args: []string{"migrate", "status"},
			migrator: &fakeMigrator{status: &store.MigrationStatus{
				Current: 1,
				Applied: []store.Migration{{Version: 1, Name: "000001_create_accounts"}},
				Pending: []store.Migration{{Version: 2, Name: "000002_create_session_cache"}},
			}},
			wantCalls: []string{"status"},
			wantOut:   "000002_create_session_cache  pending",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotURL := useFakeMigrator(t, tt.migrator)

			stdout, _, err := execute(t, tt.args...)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCalls, tt.migrator.calls)
			assert.True(t, tt.migrator.closed)
			assert.Equal(t, "postgres://localhost/accountd", *gotURL)
			assert.Contains(t, stdout, tt.wantOut)
		})
	}
}

func TestMigrateDown_Steps(t *testing.T) {
	m := &fakeMigrator{}
	useFakeMigrator(t, m)

	_, _, err := execute(t, "migrate", "down", "--steps", "3")
	require.NoError(t, err)
	assert.Equal(t, -3, m.steps)

	_, _, err = execute(t, "migrate", "down", "--steps", "0")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_STEPS")
}

func TestMigrate_PropagatesErrors(t *testing.T) {
	m := &fakeMigrator{err: oops.Code("MIGRATION_UP_FAILED").Wrap(errors.New("boom"))}
	useFakeMigrator(t, m)

	_, _, err := execute(t, "migrate", "up")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
	assert.True(t, m.closed)
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, _, err := execute(t, "migrate", "up")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}
