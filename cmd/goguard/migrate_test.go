package main

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	calls   []string
	version uint
	dirty   bool
	upErr   error
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.upErr
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return f.version, f.dirty, nil
}

func (f *fakeMigrator) Close() error {
	f.calls = append(f.calls, "close")
	return nil
}

func withFakeMigrator(t *testing.T, fake *fakeMigrator) *string {
	t.Helper()
	var gotURL string
	prev := newMigrator
	newMigrator = func(url string) (migrator, error) {
		gotURL = url
		return fake, nil
	}
	t.Cleanup(func() { newMigrator = prev })
	return &gotURL
}

func runMigrateCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewMigrateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateSubcommands(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")

	tests := []struct {
		args  []string
		calls []string
		out   string
	}{
		{[]string{"up"}, []string{"up", "close"}, "Migrations applied"},
		{[]string{"down"}, []string{"down", "close"}, "Migrations rolled back"},
		{[]string{"version"}, []string{"version", "close"}, "version 3"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			fake := &fakeMigrator{version: 3}
			url := withFakeMigrator(t, fake)

			out, err := runMigrateCmd(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.out)
			assert.Equal(t, tt.calls, fake.calls)
			assert.Equal(t, "postgres://env/db", *url)
		})
	}
}

func TestMigrateFlagOverridesEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	fake := &fakeMigrator{dirty: true, version: 2}
	url := withFakeMigrator(t, fake)

	out, err := runMigrateCmd(t, "version", "--database-url", "postgres://flag/db")
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag/db", *url)
	assert.Contains(t, out, "(dirty)")
}

func TestMigrateRequiresURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	withFakeMigrator(t, &fakeMigrator{})

	_, err := runMigrateCmd(t, "up")
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestMigrateUpHelper(t *testing.T) {
	fake := &fakeMigrator{version: 1}
	withFakeMigrator(t, fake)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	require.NoError(t, migrateUp("postgres://x/y", logger))
	assert.Equal(t, []string{"up", "version", "close"}, fake.calls)

	failing := &fakeMigrator{upErr: errors.New("boom")}
	withFakeMigrator(t, failing)
	assert.Error(t, migrateUp("postgres://x/y", logger))
	assert.Equal(t, []string{"up", "close"}, failing.calls)
}
