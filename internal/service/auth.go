package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iliyamo/calculations-api/internal/logger"
	"github.com/iliyamo/calculations-api/internal/model"
	"github.com/iliyamo/calculations-api/internal/repository"
	"github.com/iliyamo/calculations-api/internal/utils"
)

// UserStore is the part of the user repository the auth service needs.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByLogin(ctx context.Context, login string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// Denylist records revoked token identifiers.
type Denylist interface {
	Add(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	Contains(ctx context.Context, jti string) (bool, error)
}

// AuthConfig carries the token and hashing parameters.
type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	BcryptCost    int
}

// AuthService registers users, verifies credentials and manages the
// lifecycle of the tokens it issues.
type AuthService struct {
	users    UserStore
	denylist Denylist
	cfg      AuthConfig

	// dummyHash is compared against when the login does not exist so both
	// failure paths cost one bcrypt comparison.
	dummyHash string
	now       func() time.Time
}

// NewAuthService wires the service.  It hashes a throwaway password once at
// the configured cost, which is why it can fail.
func NewAuthService(users UserStore, denylist Denylist, cfg AuthConfig) (*AuthService, error) {
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.AccessSecret
	}
	dummy, err := utils.HashPassword(uuid.NewString(), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &AuthService{
		users:     users,
		denylist:  denylist,
		cfg:       cfg,
		dummyHash: dummy,
		now:       time.Now,
	}, nil
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

// AuthResult is returned by a successful login or refresh.
type AuthResult struct {
	User             model.User
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

// Register validates in, hashes the password and stores a new active user.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validateRegistration(in); err != nil {
		return model.User{}, err
	}

	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	u := model.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return model.User{}, ErrConflict
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// maxEmailLen matches the width of users.email.
const maxEmailLen = 120

func validateRegistration(in RegisterInput) error {
	if n := utf8.RuneCountInString(in.Username); n < 3 || n > 50 {
		return invalid("username", "must be between 3 and 50 characters")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email || len(in.Email) > maxEmailLen {
		return invalid("email", "must be a valid email address")
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if in.ConfirmPassword != "" && in.ConfirmPassword != in.Password {
		return invalid("confirm_password", "passwords do not match")
	}
	if in.FirstName == "" || utf8.RuneCountInString(in.FirstName) > 50 {
		return invalid("first_name", "is required and must be at most 50 characters")
	}
	if in.LastName == "" || utf8.RuneCountInString(in.LastName) > 50 {
		return invalid("last_name", "is required and must be at most 50 characters")
	}
	return nil
}

func validatePassword(p string) error {
	if utf8.RuneCountInString(p) < 6 {
		return invalid("password", "must be at least 6 characters long")
	}
	if len(p) > utils.MaxPasswordBytes {
		return invalid("password", fmt.Sprintf("must be at most %d bytes", utils.MaxPasswordBytes))
	}
	var upper, lower, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !upper:
		return invalid("password", "must contain at least one uppercase letter")
	case !lower:
		return invalid("password", "must contain at least one lowercase letter")
	case !digit:
		return invalid("password", "must contain at least one digit")
	}
	return nil
}

// Authenticate checks username (or email) and password.  ok is false with a
// nil error for an unknown login, a wrong password or an inactive user; the
// caller cannot tell these apart.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (AuthResult, bool, error) {
	u, err := s.users.GetByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			utils.VerifyPassword(s.dummyHash, password)
			return AuthResult{}, false, nil
		}
		return AuthResult{}, false, fmt.Errorf("lookup user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) || !u.IsActive {
		return AuthResult{}, false, nil
	}

	res, err := s.issue(u)
	if err != nil {
		return AuthResult{}, false, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("user_id", u.ID).Msg("update last_login failed")
	} else {
		res.User.LastLogin = &now
	}
	return res, true, nil
}

// Refresh exchanges a valid refresh token for a new token pair.  The
// presented refresh token is revoked, so each one can be used once.
func (s *AuthService) Refresh(ctx context.Context, raw string) (AuthResult, error) {
	claims, err := utils.ParseToken(s.cfg.RefreshSecret, raw, utils.RefreshToken)
	if err != nil {
		return AuthResult{}, ErrUnauthorized
	}
	u, err := s.activeUser(ctx, claims)
	if err != nil {
		return AuthResult{}, err
	}
	added, err := s.denylist.Add(ctx, claims.ID, s.remaining(claims.ExpiresAtTime()))
	if err != nil {
		return AuthResult{}, err
	}
	if !added {
		// another request rotated it first
		return AuthResult{}, ErrUnauthorized
	}
	return s.issue(u)
}

// IsRevoked reports whether jti is on the denylist.
func (s *AuthService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.denylist.Contains(ctx, jti)
}

// Revoke denylists jti until expiresAt.  An already expired token needs no
// entry and nothing is written.
func (s *AuthService) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.denylist.Add(ctx, jti, s.remaining(expiresAt))
	return err
}

// Logout revokes the access token described by access and, when refreshRaw
// is a valid refresh token of the same user, that refresh token as well.
func (s *AuthService) Logout(ctx context.Context, access *utils.Claims, refreshRaw string) error {
	if err := s.Revoke(ctx, access.ID, access.ExpiresAtTime()); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	refreshRaw = strings.TrimSpace(refreshRaw)
	if refreshRaw == "" {
		return nil
	}
	rc, err := utils.ParseToken(s.cfg.RefreshSecret, refreshRaw, utils.RefreshToken)
	if err != nil || rc.Subject != access.Subject {
		logger.FromContext(ctx).Debug().Str("user_id", access.Subject).Msg("logout: ignoring unusable refresh token")
		return nil
	}
	if err := s.Revoke(ctx, rc.ID, rc.ExpiresAtTime()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// CurrentActiveUser resolves a bearer access token to its user.  The checks
// run in order (signature and expiry, kind, denylist, user state) and stop
// at the first failure.  All token failures are ErrUnauthorized; a denylist
// or database outage is returned as is.
func (s *AuthService) CurrentActiveUser(ctx context.Context, raw string) (model.User, *utils.Claims, error) {
	claims, err := utils.ParseToken(s.cfg.AccessSecret, raw, utils.AccessToken)
	if err != nil {
		return model.User{}, nil, ErrUnauthorized
	}
	u, err := s.activeUser(ctx, claims)
	if err != nil {
		return model.User{}, nil, err
	}
	return u, claims, nil
}

func (s *AuthService) activeUser(ctx context.Context, claims *utils.Claims) (model.User, error) {
	revoked, err := s.denylist.Contains(ctx, claims.ID)
	if err != nil {
		return model.User{}, err
	}
	if revoked {
		return model.User{}, ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.User{}, ErrUnauthorized
		}
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return model.User{}, ErrUnauthorized
	}
	return u, nil
}

func (s *AuthService) issue(u model.User) (AuthResult, error) {
	access, err := utils.NewToken(s.cfg.AccessSecret, u.ID, utils.AccessToken, s.cfg.AccessTTL)
	if err != nil {
		return AuthResult{}, err
	}
	refresh, err := utils.NewToken(s.cfg.RefreshSecret, u.ID, utils.RefreshToken, s.cfg.RefreshTTL)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{
		User:             u,
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		ExpiresAt:        access.Exp,
		RefreshExpiresAt: refresh.Exp,
	}, nil
}

// remaining is the time left until exp, rounded up to a whole second.
func (s *AuthService) remaining(exp time.Time) time.Duration {
	d := exp.Sub(s.now())
	if d <= 0 {
		return 0
	}
	if r := d.Truncate(time.Second); r < d {
		return r + time.Second
	}
	return d
}
