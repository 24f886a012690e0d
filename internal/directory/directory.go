// Package directory authenticates callers and turns session tokens back into
// identities.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coordinate-system/meeting-system/internal/logger"
	"github.com/coordinate-system/meeting-system/internal/models"
	"github.com/coordinate-system/meeting-system/internal/store"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

const DefaultTokenTTL = 24 * time.Hour

// Users is the part of the store the directory reads and writes.
type Users interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error
	CountUsers(ctx context.Context) (int, error)
}

type Token struct {
	Access    string    `json:"access"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Claims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	users   Users
	secret  []byte
	ttl     time.Duration
	revoked Revocations
	now     func() time.Time
	log     *logger.Logger
}

func NewService(users Users, secret string, ttl time.Duration, revoked Revocations, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if revoked == nil {
		revoked = NewMemoryRevocations()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		users:   users,
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: revoked,
		now:     time.Now,
		log:     log,
	}
}

// Authenticate checks a username and password against the stored bcrypt hash.
func (s *Service) Authenticate(ctx context.Context, username, password string) (models.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.Identity{}, ErrInvalidCredentials
	}
	u, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return models.Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	if !checkPassword(u.PasswordHash, password) {
		return models.Identity{}, ErrInvalidCredentials
	}
	return identityOf(u), nil
}

// Login authenticates and issues a session token.
func (s *Service) Login(ctx context.Context, username, password string) (Token, models.Identity, error) {
	id, err := s.Authenticate(ctx, username, password)
	if err != nil {
		s.log.Warn("login failed", logger.Username(username), logger.Error(err))
		return Token{}, models.Identity{}, err
	}
	tok, err := s.IssueToken(id)
	if err != nil {
		return Token{}, models.Identity{}, err
	}
	s.log.Info("login", logger.User(id.UserID), logger.Username(id.Username), logger.Role(string(id.Role)))
	return tok, id, nil
}

func (s *Service) IssueToken(id models.Identity) (Token, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Username: id.Username,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Access: signed, ExpiresAt: exp}, nil
}

func (s *Service) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(s.now()) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken returns the identity carried by a live, unrevoked token.
func (s *Service) ValidateToken(ctx context.Context, raw string) (models.Identity, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return models.Identity{}, err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return models.Identity{}, err
	}
	if revoked {
		return models.Identity{}, ErrTokenRevoked
	}
	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || uid <= 0 || !claims.Role.IsValid() {
		return models.Identity{}, ErrInvalidToken
	}
	return models.Identity{UserID: uid, Username: claims.Username, Role: claims.Role}, nil
}

// Logout revokes the token until it expires.
func (s *Service) Logout(ctx context.Context, raw string) error {
	claims, err := s.parse(raw)
	if err != nil {
		return err
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	s.log.Info("logout", logger.Username(claims.Username))
	return nil
}

// Seed stores users whose bcrypt hashes come from configuration.
func (s *Service) Seed(ctx context.Context, users []models.User) error {
	for i := range users {
		u := users[i]
		if err := s.users.SaveUser(ctx, &u); err != nil {
			return err
		}
	}
	return nil
}

// EnsureAdmin creates an "admin" account with a generated password when the
// directory is empty. The password is logged once and never stored in clear.
func (s *Service) EnsureAdmin(ctx context.Context) (string, error) {
	n, err := s.users.CountUsers(ctx)
	if err != nil {
		return "", err
	}
	if n > 0 {
		return "", nil
	}

	password, err := GeneratePassword(defaultPasswordLength)
	if err != nil {
		return "", err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	u := &models.User{Username: "admin", PasswordHash: hash, Role: models.RoleAdmin}
	if err := s.users.SaveUser(ctx, u); err != nil {
		return "", err
	}
	s.log.Warn("no users configured, created bootstrap administrator",
		logger.Username(u.Username), logger.Password(password))
	return password, nil
}

func identityOf(u *models.User) models.Identity {
	return models.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}
}
