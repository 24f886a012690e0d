package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coordinate-system/meeting-system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting_config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFeatureConfig(t *testing.T) {
	path := writeConfig(t, `
[reservation]
timezone = "Asia/Shanghai"
usage_tolerance_minutes = 30
approve_rechecks_pending = true

[[rooms]]
id = 1
name = "Aurora"
room_no = "A-101"
capacity = 10
usage = "meetings"
photo = "rooms/aurora.jpg"

[[rooms]]
id = 2
name = "Cellar"
capacity = 40
available = false

[[users]]
username = "admin"
password_hash = "$2a$10$abcdefghijklmnopqrstuv"
role = "admin"
`)

	cfg, err := LoadFeatureConfig(path)
	require.NoError(t, err)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Shanghai", loc.String())
	assert.Equal(t, 30*time.Minute, cfg.UsageTolerance())
	assert.True(t, cfg.Reservation.ApproveRechecksPending)

	rooms := cfg.SeedRooms()
	require.Len(t, rooms, 2)
	assert.True(t, rooms[0].Available, "availability defaults to true")
	assert.Equal(t, "A-101", rooms[0].RoomNo)
	assert.False(t, rooms[1].Available)

	users := cfg.SeedUsers()
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleAdmin, users[0].Role)
}

func TestLoadFeatureConfig_Defaults(t *testing.T) {
	cfg, err := LoadFeatureConfig(writeConfig(t, ""))
	require.NoError(t, err)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
	assert.Equal(t, time.Hour, cfg.UsageTolerance())
	assert.False(t, cfg.Reservation.ApproveRechecksPending)
	assert.Empty(t, cfg.SeedRooms())
}

func TestLoadFeatureConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad toml", "[reservation\n", "failed to load feature config"},
		{"bad timezone", "[reservation]\ntimezone = \"Mars/Olympus\"\n", "reservation.timezone"},
		{"negative tolerance", "[reservation]\nusage_tolerance_minutes = -5\n", "cannot be negative"},
		{"zero capacity", "[[rooms]]\nid = 1\nname = \"A\"\ncapacity = 0\n", "capacity must be positive"},
		{"duplicate room", "[[rooms]]\nid = 1\nname = \"A\"\ncapacity = 2\n[[rooms]]\nid = 1\nname = \"B\"\ncapacity = 2\n", "duplicated"},
		{"room without name", "[[rooms]]\nid = 3\ncapacity = 2\n", "name is required"},
		{"room without id", "[[rooms]]\nname = \"A\"\ncapacity = 2\n", "id must be positive"},
		{"unknown role", "[[users]]\nusername = \"x\"\npassword_hash = \"h\"\nrole = \"root\"\n", "unknown role"},
		{"missing hash", "[[users]]\nusername = \"x\"\nrole = \"user\"\n", "password_hash is required"},
		{"duplicate user", "[[users]]\nusername = \"x\"\npassword_hash = \"h\"\nrole = \"user\"\n[[users]]\nusername = \"x\"\npassword_hash = \"h\"\nrole = \"user\"\n", "duplicated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFeatureConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFeatureConfigOrDefault(t *testing.T) {
	cfg, err := LoadFeatureConfigOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Reservation.Timezone)

	_, err = LoadFeatureConfigOrDefault(writeConfig(t, "[[rooms]]\nid = 1\n"))
	assert.Error(t, err)
}
