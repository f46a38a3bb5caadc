package database

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/models"
	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory. It is intended for
// development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	videos  map[string]models.VideoRecord
	users   map[string]models.User
	byEmail map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos:  make(map[string]models.VideoRecord),
		users:   make(map[string]models.User),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryStore) Migrate(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) InsertVideo(ctx context.Context, v *models.VideoRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if _, exists := m.videos[v.ID]; exists {
		return "", models.ErrConflict
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	m.videos[v.ID] = copyVideo(v)
	return v.ID, nil
}

func (m *MemoryStore) GetVideo(ctx context.Context, id string) (*models.VideoRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.videos[id]
	if !ok || v.DeletedAt != nil {
		return nil, models.ErrNotFound
	}
	c := copyVideo(&v)
	return &c, nil
}

func (m *MemoryStore) ListVideos(ctx context.Context, opts ListOptions) ([]*models.VideoRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var videos []*models.VideoRecord
	for _, v := range m.videos {
		if matches(&v, opts) {
			c := copyVideo(&v)
			videos = append(videos, &c)
		}
	}
	return page(videos, opts), nil
}

func (m *MemoryStore) DeleteVideo(ctx context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok || v.DeletedAt != nil || v.OwnerID != ownerID {
		return models.ErrNotFound
	}
	now := time.Now().UTC()
	v.DeletedAt = &now
	m.videos[id] = v
	return nil
}

func (m *MemoryStore) IncrementViews(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok || v.DeletedAt != nil {
		return models.ErrNotFound
	}
	v.Views++
	m.videos[id] = v
	return nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, taken := m.byEmail[email]; taken {
		return models.ErrConflict
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.ID] = *u
	m.byEmail[email] = u.ID
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	id, ok := m.byEmail[strings.ToLower(email)]
	m.mu.RUnlock()
	if !ok {
		return nil, models.ErrNotFound
	}
	return m.GetUser(ctx, id)
}

func copyVideo(v *models.VideoRecord) models.VideoRecord {
	c := *v
	c.Tags = append([]string(nil), v.Tags...)
	return c
}
