package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/auth"
	"github.com/PaulBabatuyi/WeddingHub/internal/media"
	"github.com/PaulBabatuyi/WeddingHub/internal/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDraft(t *testing.T, id, owner string) (*draft, string) {
	t.Helper()
	sess := auth.Session{Token: "t-" + owner, UserID: owner}
	d := &draft{
		id:     id,
		owner:  owner,
		form:   wizard.NewForm(sess, media.NewValidator(media.DefaultPolicy()), nil),
		staged: make(map[string]struct{}),
	}
	path := filepath.Join(t.TempDir(), "staged-"+id+".mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o644))
	d.track(path)
	return d, path
}

func TestDraftStoreExpiresIdleDrafts(t *testing.T) {
	now := time.Date(2024, 9, 14, 12, 0, 0, 0, time.UTC)
	store := NewDraftStore()
	store.now = func() time.Time { return now }

	stale, stalePath := newTestDraft(t, "stale", "u1")
	fresh, freshPath := newTestDraft(t, "fresh", "u1")
	store.add(stale)
	store.add(fresh)

	now = now.Add(90 * time.Minute)
	_, ok := store.get("fresh", "u1")
	require.True(t, ok)

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, store.Expire(time.Hour))
	assert.Equal(t, 1, store.Len())

	_, ok = store.get("stale", "u1")
	assert.False(t, ok)
	assert.NoFileExists(t, stalePath)
	assert.FileExists(t, freshPath)

	assert.Zero(t, store.Expire(time.Hour))
}

func TestDraftStoreExpireNothingIdle(t *testing.T) {
	store := NewDraftStore()
	d, path := newTestDraft(t, "d", "u1")
	store.add(d)

	assert.Zero(t, store.Expire(time.Hour))
	assert.Equal(t, 1, store.Len())
	assert.FileExists(t, path)
}
