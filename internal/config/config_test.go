package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "env: dev\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, 60*time.Second, cfg.Attendance.Window)
	assert.Equal(t, 4, cfg.Attendance.CodeLength)
	assert.Equal(t, "token", cfg.Auth.CookieName)
	assert.False(t, cfg.Attendance.ExposeCode)
	assert.Zero(t, cfg.Attendance.MaxSubmitAttempts, "attempt cap is opt-in")
	assert.Equal(t, time.UTC, cfg.Attendance.Location())
}

func TestLoadReadsAttendanceSection(t *testing.T) {
	path := writeConfig(t, `
env: prod
storage:
  driver: postgres
  dsn: postgres://u:p@localhost/db
auth:
  jwt_secret: s3cret
attendance:
  window: 90s
  code_length: 6
  expose_code: true
  timezone: Europe/Moscow
  max_submit_attempts: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Attendance.Window)
	assert.Equal(t, 6, cfg.Attendance.CodeLength)
	assert.True(t, cfg.Attendance.ExposeCode)
	assert.Equal(t, "Europe/Moscow", cfg.Attendance.Location().String())
	assert.Equal(t, 3, cfg.Attendance.MaxSubmitAttempts)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "memory without secret", body: "storage:\n  driver: memory\n"},
		{name: "postgres without dsn", body: "storage:\n  driver: postgres\nauth:\n  jwt_secret: x\n", wantErr: true},
		{name: "mongo without uri", body: "storage:\n  driver: mongo\nauth:\n  jwt_secret: x\n", wantErr: true},
		{name: "postgres without secret", body: "storage:\n  driver: postgres\n  dsn: x\n", wantErr: true},
		{name: "unknown driver", body: "storage:\n  driver: redis\n", wantErr: true},
		{name: "code too long", body: "attendance:\n  code_length: 12\n", wantErr: true},
		{name: "bad timezone", body: "attendance:\n  timezone: Mars/Base\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMustLoadPathPanicsOnMissingFile(t *testing.T) {
	assert.Panics(t, func() {
		MustLoadPath(filepath.Join(t.TempDir(), "missing.yaml"))
	})
}
