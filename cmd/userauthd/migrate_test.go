package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	calls   []string
	version uint
	err     error
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.err
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return f.err
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return f.version, false, f.err
}

func (f *fakeMigrator) Close() error {
	f.calls = append(f.calls, "close")
	return nil
}

func useFakeMigrator(t *testing.T, fake *fakeMigrator) *string {
	t.Helper()
	var gotURL string
	prev := newMigrator
	newMigrator = func(databaseURL string) (migrator, error) {
		gotURL = databaseURL
		return fake, nil
	}
	t.Cleanup(func() { newMigrator = prev })
	return &gotURL
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	configFile = ""
	return out.String(), err
}

func TestMigrateCommands(t *testing.T) {
	tests := []struct {
		sub  string
		want string
	}{
		{"up", "Migrations applied"},
		{"down", "Migrations rolled back"},
		{"version", "version 3 (dirty: false)"},
	}
	for _, tt := range tests {
		t.Run(tt.sub, func(t *testing.T) {
			fake := &fakeMigrator{version: 3}
			gotURL := useFakeMigrator(t, fake)

			out, err := runRoot(t, "migrate", tt.sub, "--store.database_url", "postgres://u:p@db/users")
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			assert.Equal(t, "postgres://u:p@db/users", *gotURL)
			assert.Equal(t, []string{tt.sub, "close"}, fake.calls)
		})
	}
}

func TestMigrateReadsURLFromEnv(t *testing.T) {
	fake := &fakeMigrator{}
	gotURL := useFakeMigrator(t, fake)
	t.Setenv("USERAUTH_STORE__DATABASE_URL", "postgres://env/users")

	_, err := runRoot(t, "migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/users", *gotURL)
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	useFakeMigrator(t, &fakeMigrator{})

	_, err := runRoot(t, "migrate", "up")
	requireCode(t, err, "CONFIG_INVALID")
}

func TestMigrateFailureIsWrapped(t *testing.T) {
	fake := &fakeMigrator{err: errors.New("boom")}
	useFakeMigrator(t, fake)

	_, err := runRoot(t, "migrate", "down", "--store.database_url", "postgres://db/users")
	requireCode(t, err, "MIGRATION_FAILED")
	assert.Contains(t, fake.calls, "close")
}
