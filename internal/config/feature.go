package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/coordinate-system/meeting-system/internal/models"
)

// ReservationConfig tunes the lifecycle engine.
type ReservationConfig struct {
	Timezone               string `toml:"timezone"`
	UsageToleranceMinutes  int    `toml:"usage_tolerance_minutes"`
	ApproveRechecksPending bool   `toml:"approve_rechecks_pending"`
}

// RoomSeed is one catalog entry. Available defaults to true when omitted.
type RoomSeed struct {
	ID        int64   `toml:"id"`
	Name      string  `toml:"name"`
	RoomNo    string  `toml:"room_no"`
	Capacity  int     `toml:"capacity"`
	Area      float64 `toml:"area"`
	Usage     string  `toml:"usage"`
	Photo     string  `toml:"photo"`
	Available *bool   `toml:"available"`
}

type UserSeed struct {
	Username     string      `toml:"username"`
	PasswordHash string      `toml:"password_hash"`
	Role         models.Role `toml:"role"`
}

// FeatureConfig holds user-facing feature configurations.
// These are non-sensitive settings that customize application behavior.
// Source: TOML configuration file
type FeatureConfig struct {
	Reservation ReservationConfig `toml:"reservation"`
	Rooms       []RoomSeed        `toml:"rooms"`
	Users       []UserSeed        `toml:"users"`
}

func DefaultFeatureConfig() *FeatureConfig {
	return &FeatureConfig{
		Reservation: ReservationConfig{
			Timezone:              "UTC",
			UsageToleranceMinutes: 60,
		},
	}
}

// LoadFeatureConfig loads feature configuration from a TOML file
func LoadFeatureConfig(path string) (*FeatureConfig, error) {
	cfg := DefaultFeatureConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load feature config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feature config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFeatureConfigOrDefault treats a missing file as "all defaults".
func LoadFeatureConfigOrDefault(path string) (*FeatureConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultFeatureConfig(), nil
	}
	return LoadFeatureConfig(path)
}

func (c *FeatureConfig) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Reservation.UsageToleranceMinutes < 0 {
		return fmt.Errorf("reservation.usage_tolerance_minutes cannot be negative")
	}

	rooms := make(map[int64]bool, len(c.Rooms))
	for _, r := range c.Rooms {
		if r.ID <= 0 {
			return fmt.Errorf("room %q: id must be positive", r.Name)
		}
		if rooms[r.ID] {
			return fmt.Errorf("room id %d is duplicated", r.ID)
		}
		rooms[r.ID] = true
		if r.Name == "" {
			return fmt.Errorf("room %d: name is required", r.ID)
		}
		if r.Capacity <= 0 {
			return fmt.Errorf("room %d: capacity must be positive", r.ID)
		}
	}

	users := make(map[string]bool, len(c.Users))
	for _, u := range c.Users {
		if u.Username == "" {
			return fmt.Errorf("user: username is required")
		}
		if users[u.Username] {
			return fmt.Errorf("user %q is duplicated", u.Username)
		}
		users[u.Username] = true
		if u.PasswordHash == "" {
			return fmt.Errorf("user %q: password_hash is required", u.Username)
		}
		if !u.Role.IsValid() {
			return fmt.Errorf("user %q: unknown role %q", u.Username, u.Role)
		}
	}
	return nil
}

// Location resolves the configured time zone; empty means UTC.
func (c *FeatureConfig) Location() (*time.Location, error) {
	if c.Reservation.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Reservation.Timezone)
	if err != nil {
		return nil, fmt.Errorf("reservation.timezone: %w", err)
	}
	return loc, nil
}

func (c *FeatureConfig) UsageTolerance() time.Duration {
	if c.Reservation.UsageToleranceMinutes == 0 {
		return time.Hour
	}
	return time.Duration(c.Reservation.UsageToleranceMinutes) * time.Minute
}

func (c *FeatureConfig) SeedUsers() []models.User {
	out := make([]models.User, 0, len(c.Users))
	for _, u := range c.Users {
		out = append(out, models.User{Username: u.Username, PasswordHash: u.PasswordHash, Role: u.Role})
	}
	return out
}

func (c *FeatureConfig) SeedRooms() []models.Room {
	out := make([]models.Room, 0, len(c.Rooms))
	for _, r := range c.Rooms {
		available := true
		if r.Available != nil {
			available = *r.Available
		}
		out = append(out, models.Room{
			ID:        r.ID,
			Name:      r.Name,
			RoomNo:    r.RoomNo,
			Capacity:  r.Capacity,
			Area:      r.Area,
			Usage:     r.Usage,
			Photo:     r.Photo,
			Available: available,
		})
	}
	return out
}
