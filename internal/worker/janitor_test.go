package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyDeleter struct {
	mu      sync.Mutex
	fails   map[string]int
	deleted []string
}

func (f *flakyDeleter) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails[key] > 0 {
		f.fails[key]--
		return errors.New("disk busy")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *flakyDeleter) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func TestSweepRetriesUntilDeleted(t *testing.T) {
	d := &flakyDeleter{fails: map[string]int{"u/videos/a.mp4": 1}}
	j := NewJanitor(&JanitorConfig{Objects: d})

	j.Enqueue("u/videos/a.mp4", errors.New("first failure"))
	j.Enqueue("u/videos/a.mp4", errors.New("duplicate"))
	assert.Equal(t, 1, j.Pending())

	j.Sweep(context.Background())
	assert.Equal(t, 1, j.Pending())

	j.Sweep(context.Background())
	assert.Equal(t, 0, j.Pending())
	assert.Equal(t, []string{"u/videos/a.mp4"}, d.Deleted())
}

func TestSweepGivesUp(t *testing.T) {
	d := &flakyDeleter{fails: map[string]int{"k": 100}}
	j := NewJanitor(&JanitorConfig{Objects: d, MaxAttempts: 2})

	j.Enqueue("k", nil)
	j.Sweep(context.Background())
	assert.Equal(t, 1, j.Pending())
	j.Sweep(context.Background())
	assert.Equal(t, 0, j.Pending())
	assert.Empty(t, d.Deleted())
}

func TestJanitorLoop(t *testing.T) {
	d := &flakyDeleter{fails: map[string]int{}}
	j := NewJanitor(&JanitorConfig{Objects: d, PollInterval: 5 * time.Millisecond})
	j.Enqueue("u/thumbnails/b.png", nil)

	j.Start(context.Background())
	require.Eventually(t, func() bool { return j.Pending() == 0 }, time.Second, 5*time.Millisecond)
	j.Stop()
	j.Stop()

	assert.Equal(t, []string{"u/thumbnails/b.png"}, d.Deleted())
}

type fakeDrafts struct {
	mu    sync.Mutex
	idles []time.Duration
}

func (f *fakeDrafts) Expire(idle time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idles = append(f.idles, idle)
	return 1
}

func (f *fakeDrafts) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.idles)
}

func TestExpireDrafts(t *testing.T) {
	j := NewJanitor(&JanitorConfig{Objects: &flakyDeleter{}})
	assert.Zero(t, j.ExpireDrafts())

	drafts := &fakeDrafts{}
	j = NewJanitor(&JanitorConfig{Objects: &flakyDeleter{}, Drafts: drafts})
	assert.Equal(t, 1, j.ExpireDrafts())
	assert.Equal(t, []time.Duration{24 * time.Hour}, drafts.idles)
}

func TestJanitorLoopExpiresDrafts(t *testing.T) {
	drafts := &fakeDrafts{}
	j := NewJanitor(&JanitorConfig{
		Objects:      &flakyDeleter{},
		Drafts:       drafts,
		DraftIdleTTL: time.Hour,
		PollInterval: 5 * time.Millisecond,
	})

	j.Start(context.Background())
	require.Eventually(t, func() bool { return drafts.Calls() > 0 }, time.Second, 5*time.Millisecond)
	j.Stop()
}
