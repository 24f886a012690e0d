package directory

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/coordinate-system/meeting-system/internal/logger"
	"github.com/coordinate-system/meeting-system/internal/models"
	"github.com/coordinate-system/meeting-system/internal/store"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	require.NoError(t, st.SaveUser(context.Background(), &models.User{Username: "alice", PasswordHash: hash, Role: models.RoleUser}))
	return NewService(st, secret, time.Hour, NewMemoryRevocations(), logger.Discard()), st
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	id, err := svc.Authenticate(ctx, " alice ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, models.RoleUser, id.Role)
	assert.NotZero(t, id.UserID)

	tests := []struct {
		name, user, pass string
	}{
		{"wrong password", "alice", "battery staple"},
		{"unknown user", "mallory", "correct horse"},
		{"empty password", "alice", ""},
		{"empty user", "", "correct horse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tt.user, tt.pass)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tok, id, err := svc.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Access)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, time.Minute)

	got, err := svc.ValidateToken(ctx, tok.Access)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestValidateToken_Rejects(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := models.Identity{UserID: 4, Username: "bob", Role: models.RoleUser}

	other := NewService(store.NewMemoryStore(), "other-secret", time.Hour, nil, nil)
	foreign, err := other.IssueToken(id)
	require.NoError(t, err)

	stale := NewService(store.NewMemoryStore(), secret, time.Hour, nil, nil)
	stale.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := stale.IssueToken(id)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: models.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badRole, err := svc.IssueToken(models.Identity{UserID: 4, Role: "root"})
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign.Access,
		"expired":      expired.Access,
		"alg none":     unsigned,
		"unknown role": badRole.Access,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(ctx, raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestLogoutRevokes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tok, _, err := svc.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)
	second, _, err := svc.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, tok.Access))

	_, err = svc.ValidateToken(ctx, tok.Access)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = svc.ValidateToken(ctx, second.Access)
	assert.NoError(t, err, "other sessions stay valid")

	assert.ErrorIs(t, svc.Logout(ctx, "junk"), ErrInvalidToken)
}

func TestMemoryRevocationsExpire(t *testing.T) {
	r := NewMemoryRevocations()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "a", now.Add(time.Minute)))
	require.NoError(t, r.Revoke(ctx, "old", now.Add(-time.Minute)))

	revoked, err := r.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = r.IsRevoked(ctx, "old")
	require.NoError(t, err)
	assert.False(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = r.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestEnsureAdmin(t *testing.T) {
	var buf bytes.Buffer
	st := store.NewMemoryStore()
	svc := NewService(st, secret, time.Hour, nil, logger.NewWithWriter(&buf))
	ctx := context.Background()

	password, err := svc.EnsureAdmin(ctx)
	require.NoError(t, err)
	assert.Len(t, password, defaultPasswordLength)
	assert.Contains(t, buf.String(), "PASSWORD="+password)

	id, err := svc.Authenticate(ctx, "admin", password)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())

	again, err := svc.EnsureAdmin(ctx)
	require.NoError(t, err)
	assert.Empty(t, again, "existing directory is left alone")
	assert.Equal(t, 1, strings.Count(buf.String(), "bootstrap administrator"))
}

func TestSeed(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st, secret, time.Hour, nil, nil)
	ctx := context.Background()
	hash, err := HashPassword("pw")
	require.NoError(t, err)

	require.NoError(t, svc.Seed(ctx, []models.User{
		{Username: "carol", PasswordHash: hash, Role: models.RoleAdmin},
		{Username: "dave", PasswordHash: hash, Role: models.RoleUser},
	}))
	n, err := st.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	id, err := svc.Authenticate(ctx, "carol", "pw")
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())
}

func TestGeneratePassword(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"standard length", 16, 16},
		{"single char", 1, 1},
		{"zero defaults", 0, defaultPasswordLength},
		{"negative defaults", -5, defaultPasswordLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pw, err := GeneratePassword(tt.length)
			require.NoError(t, err)
			assert.Len(t, pw, tt.want)
			for _, ch := range pw {
				assert.Contains(t, passwordChars, string(ch))
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, checkPassword(hash, "s3cret"))
	assert.False(t, checkPassword(hash, "S3cret"))

	_, err = HashPassword("")
	assert.Error(t, err)
}

func TestRedisRevocations(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" || os.Getenv("REDIS_URL") == "" {
		t.Skip("set INTEGRATION_TEST=true and REDIS_URL to run")
	}
	client, err := NewRedisClient(os.Getenv("REDIS_URL"))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	r := NewRedisRevocations(client)
	r.prefix = "reservation:test:" + time.Now().Format("150405.000000") + ":"
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))
	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}
