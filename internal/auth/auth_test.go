package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/auth"
	"github.com/PaulBabatuyi/WeddingHub/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newProvider(t *testing.T, cfg auth.Config) *auth.Provider {
	t.Helper()
	return auth.NewProvider(database.NewMemoryStore(), cfg, zaptest.NewLogger(t))
}

func TestSignUpAndSignIn(t *testing.T) {
	p := newProvider(t, auth.Config{})
	ctx := context.Background()

	user, err := p.SignUp(ctx, auth.Profile{
		Email:       " Ana@Example.com ",
		Password:    "correct horse",
		FullName:    "Ana Silva",
		DateOfBirth: "1992-04-03",
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
	require.NotNil(t, user.DateOfBirth)

	sess, err := p.SignIn(ctx, "ANA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.UserID)
	assert.NotEmpty(t, sess.Token)
	assert.True(t, sess.Valid(time.Now()))

	current, err := p.Current(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess, current)

	profile, err := p.User(ctx, current)
	require.NoError(t, err)
	assert.Equal(t, "Ana Silva", profile.FullName)

	p.SignOut(sess.Token)
	_, err = p.Current(sess.Token)
	assert.ErrorIs(t, err, auth.ErrNoSession)

	// unknown tokens are ignored
	p.SignOut("nope")
}

func TestSignUpValidation(t *testing.T) {
	p := newProvider(t, auth.Config{})
	ctx := context.Background()

	tests := []struct {
		name    string
		profile auth.Profile
	}{
		{"bad email", auth.Profile{Email: "not-an-email", Password: "long enough"}},
		{"short password", auth.Profile{Email: "a@example.com", Password: "short"}},
		{"bad birth date", auth.Profile{Email: "a@example.com", Password: "long enough", DateOfBirth: "03/04/1992"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.SignUp(ctx, tt.profile)
			assert.ErrorIs(t, err, auth.ErrInvalidProfile)
		})
	}

	_, err := p.SignUp(ctx, auth.Profile{Email: "a@example.com", Password: "long enough"})
	require.NoError(t, err)
	_, err = p.SignUp(ctx, auth.Profile{Email: "A@example.com", Password: "other pass"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestSignInFailures(t *testing.T) {
	p := newProvider(t, auth.Config{})
	ctx := context.Background()
	_, err := p.SignUp(ctx, auth.Profile{Email: "a@example.com", Password: "long enough"})
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "a@example.com", "wrong password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = p.SignIn(ctx, "b@example.com", "long enough")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = p.SignIn(ctx, "garbage", "long enough")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestSessionExpiry(t *testing.T) {
	p := newProvider(t, auth.Config{SessionTTL: 20 * time.Millisecond})
	ctx := context.Background()
	_, err := p.SignUp(ctx, auth.Profile{Email: "a@example.com", Password: "long enough"})
	require.NoError(t, err)

	sess, err := p.SignIn(ctx, "a@example.com", "long enough")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := p.Current(sess.Token)
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestSessionValid(t *testing.T) {
	now := time.Now()
	assert.False(t, auth.Session{}.Valid(now))
	assert.True(t, auth.Session{UserID: "u"}.Valid(now))
	assert.False(t, auth.Session{UserID: "u", ExpiresAt: now.Add(-time.Second)}.Valid(now))
}
