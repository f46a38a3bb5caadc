// Package database is the record store: committed video records and user
// accounts, behind Postgres, SQLite, etcd or in-memory backends.
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/PaulBabatuyi/WeddingHub/internal/models"
)

// Store is implemented by every backend.
type Store interface {
	InsertVideo(ctx context.Context, v *models.VideoRecord) (string, error)
	GetVideo(ctx context.Context, id string) (*models.VideoRecord, error)
	ListVideos(ctx context.Context, opts ListOptions) ([]*models.VideoRecord, error)
	DeleteVideo(ctx context.Context, id, ownerID string) error
	IncrementViews(ctx context.Context, id string) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ListOptions filters and pages ListVideos. Results are newest first.
type ListOptions struct {
	OwnerID    string // empty means any owner
	PublicOnly bool
	Limit      int
	Offset     int
}

// Config selects and configures a backend.
type Config struct {
	Driver        string // postgres, sqlite, etcd or memory
	URL           string // DSN for postgres, file path for sqlite
	EtcdEndpoints []string
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql":
		return NewPostgresDB(ctx, cfg.URL)
	case "sqlite", "sqlite3":
		return NewSQLiteDB(ctx, cfg.URL)
	case "etcd":
		return NewEtcdStore(cfg.EtcdEndpoints)
	case "memory", "":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*EtcdStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
