// Package auth is the authentication and session provider: account sign-up,
// password sign-in, sign-out and current-session lookup.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/models"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNoSession          = errors.New("no active session")
	ErrInvalidProfile     = errors.New("invalid profile")
)

const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultMaxSessions = 10000
	minPasswordLength  = 8
)

// Session is an authenticated calling context. It is never mutated after
// sign-in and is invalidated by sign-out or expiry.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the session identifies an owner and has not expired.
func (s Session) Valid(now time.Time) bool {
	return s.UserID != "" && (s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt))
}

// Profile is the sign-up form.
type Profile struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD, optional
	Gender      string `json:"gender"`
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Provider issues and tracks sessions.
type Provider struct {
	users    UserStore
	sessions *expirable.LRU[string, Session]
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

type Config struct {
	SessionTTL  time.Duration
	MaxSessions int
}

func NewProvider(users UserStore, cfg Config, logger *zap.Logger) *Provider {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		users:    users,
		sessions: expirable.NewLRU[string, Session](cfg.MaxSessions, nil, cfg.SessionTTL),
		ttl:      cfg.SessionTTL,
		logger:   logger.Named("auth"),
		now:      time.Now,
	}
}

// SignUp creates an account. It does not sign the user in.
func (p *Provider) SignUp(ctx context.Context, profile Profile) (*models.User, error) {
	email, err := normalizeEmail(profile.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if len(profile.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidProfile, minPasswordLength)
	}

	var dob *time.Time
	if s := strings.TrimSpace(profile.DateOfBirth); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", ErrInvalidProfile)
		}
		dob = &t
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(profile.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(profile.FullName),
		PhoneNumber:  strings.TrimSpace(profile.PhoneNumber),
		DateOfBirth:  dob,
		Gender:       strings.TrimSpace(profile.Gender),
		CreatedAt:    p.now().UTC(),
	}
	if err := p.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	p.logger.Info("account created", zap.String("user_id", user.ID))
	return user, nil
}

// SignIn checks credentials and opens a session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}

	user, err := p.users.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	sess := Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: p.now().Add(p.ttl),
	}
	p.sessions.Add(sess.Token, sess)

	p.logger.Info("signed in", zap.String("user_id", user.ID))
	return sess, nil
}

// SignOut invalidates the session for token. Unknown tokens are ignored.
func (p *Provider) SignOut(token string) {
	if p.sessions.Remove(token) {
		p.logger.Debug("signed out")
	}
}

// Current returns the live session for token.
func (p *Provider) Current(token string) (Session, error) {
	sess, ok := p.sessions.Get(token)
	if !ok || !sess.Valid(p.now()) {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// User loads the profile behind a session.
func (p *Provider) User(ctx context.Context, sess Session) (*models.User, error) {
	return p.users.GetUser(ctx, sess.UserID)
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid email: %w", err)
	}
	return strings.ToLower(addr.Address), nil
}
