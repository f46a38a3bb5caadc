package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/faults"
	"github.com/PaulBabatuyi/WeddingHub/internal/models"
	"github.com/google/uuid"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	videoPrefix     = "video:"
	userPrefix      = "user:"
	userEmailPrefix = "user-email:"
	etcdDialTimeout = 5 * time.Second
	etcdCASAttempts = 5
)

// EtcdStore keeps records as JSON values under key prefixes.
type EtcdStore struct {
	client *clientv3.Client
}

func NewEtcdStore(endpoints []string) (*EtcdStore, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("etcd: no endpoints configured")
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: etcdDialTimeout,
	})
	if err != nil {
		return nil, classifyEtcd(err)
	}
	return &EtcdStore{client: cli}, nil
}

// Migrate is a no-op: etcd has no schema.
func (s *EtcdStore) Migrate(ctx context.Context) error { return nil }

func (s *EtcdStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close etcd client conn: %w", err)
	}
	return nil
}

// putIfAbsent writes value at key only if the key has never been created.
func (s *EtcdStore) putIfAbsent(ctx context.Context, key string, value []byte) error {
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(value))).
		Commit()
	if err != nil {
		return classifyEtcd(err)
	}
	if !resp.Succeeded {
		return models.ErrConflict
	}
	return nil
}

func (s *EtcdStore) InsertVideo(ctx context.Context, v *models.VideoRecord) (string, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal video: %w", err)
	}
	if err := s.putIfAbsent(ctx, videoPrefix+v.ID, value); err != nil {
		return "", err
	}
	return v.ID, nil
}

// getVideo returns the record and its mod revision, including soft-deleted records.
func (s *EtcdStore) getVideo(ctx context.Context, id string) (*models.VideoRecord, int64, error) {
	resp, err := s.client.Get(ctx, videoPrefix+id)
	if err != nil {
		return nil, 0, classifyEtcd(err)
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, models.ErrNotFound
	}
	var v models.VideoRecord
	if err := json.Unmarshal(resp.Kvs[0].Value, &v); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal video metadata: %w", err)
	}
	return &v, resp.Kvs[0].ModRevision, nil
}

func (s *EtcdStore) GetVideo(ctx context.Context, id string) (*models.VideoRecord, error) {
	v, _, err := s.getVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.DeletedAt != nil {
		return nil, models.ErrNotFound
	}
	return v, nil
}

func (s *EtcdStore) ListVideos(ctx context.Context, opts ListOptions) ([]*models.VideoRecord, error) {
	resp, err := s.client.Get(ctx, videoPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, classifyEtcd(err)
	}

	videos := make([]*models.VideoRecord, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var v models.VideoRecord
		if err := json.Unmarshal(kv.Value, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", kv.Key, err)
		}
		if matches(&v, opts) {
			videos = append(videos, &v)
		}
	}
	return page(videos, opts), nil
}

// updateVideo applies fn with compare-and-swap on the mod revision.
func (s *EtcdStore) updateVideo(ctx context.Context, id string, fn func(v *models.VideoRecord) error) error {
	for attempt := 0; attempt < etcdCASAttempts; attempt++ {
		v, rev, err := s.getVideo(ctx, id)
		if err != nil {
			return err
		}
		if v.DeletedAt != nil {
			return models.ErrNotFound
		}
		if err := fn(v); err != nil {
			return err
		}
		value, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal video: %w", err)
		}

		key := videoPrefix + id
		resp, err := s.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", rev)).
			Then(clientv3.OpPut(key, string(value))).
			Commit()
		if err != nil {
			return classifyEtcd(err)
		}
		if resp.Succeeded {
			return nil
		}
	}
	return faults.Transient(fmt.Errorf("video %s: too many concurrent updates", id))
}

func (s *EtcdStore) DeleteVideo(ctx context.Context, id, ownerID string) error {
	return s.updateVideo(ctx, id, func(v *models.VideoRecord) error {
		if v.OwnerID != ownerID {
			return models.ErrNotFound
		}
		now := time.Now().UTC()
		v.DeletedAt = &now
		return nil
	})
}

func (s *EtcdStore) IncrementViews(ctx context.Context, id string) error {
	return s.updateVideo(ctx, id, func(v *models.VideoRecord) error {
		v.Views++
		return nil
	})
}

// userDoc keeps the password hash, which models.User hides from JSON.
type userDoc struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

func (s *EtcdStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(userDoc{User: *u, PasswordHash: u.PasswordHash})
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	emailKey := userEmailPrefix + strings.ToLower(u.Email)
	userKey := userPrefix + u.ID
	resp, err := s.client.Txn(ctx).
		If(
			clientv3.Compare(clientv3.CreateRevision(emailKey), "=", 0),
			clientv3.Compare(clientv3.CreateRevision(userKey), "=", 0),
		).
		Then(
			clientv3.OpPut(emailKey, u.ID),
			clientv3.OpPut(userKey, string(value)),
		).
		Commit()
	if err != nil {
		return classifyEtcd(err)
	}
	if !resp.Succeeded {
		return models.ErrConflict
	}
	return nil
}

func (s *EtcdStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	resp, err := s.client.Get(ctx, userPrefix+id)
	if err != nil {
		return nil, classifyEtcd(err)
	}
	if len(resp.Kvs) == 0 {
		return nil, models.ErrNotFound
	}
	var doc userDoc
	if err := json.Unmarshal(resp.Kvs[0].Value, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	u := doc.User
	u.PasswordHash = doc.PasswordHash
	return &u, nil
}

func (s *EtcdStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	resp, err := s.client.Get(ctx, userEmailPrefix+strings.ToLower(email))
	if err != nil {
		return nil, classifyEtcd(err)
	}
	if len(resp.Kvs) == 0 {
		return nil, models.ErrNotFound
	}
	return s.GetUser(ctx, string(resp.Kvs[0].Value))
}

func classifyEtcd(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, rpctypes.ErrTimeout),
		errors.Is(err, rpctypes.ErrTimeoutDueToLeaderFail),
		errors.Is(err, rpctypes.ErrTimeoutDueToConnectionLost),
		errors.Is(err, rpctypes.ErrNoLeader):
		return faults.Transient(err)
	case errors.Is(err, rpctypes.ErrEmptyKey):
		return faults.Permanent(err)
	}
	if code := status.Code(err); code == codes.Unavailable || code == codes.ResourceExhausted {
		return faults.Transient(err)
	}
	return err
}

// matches applies ListOptions filters shared by the non-SQL backends.
func matches(v *models.VideoRecord, opts ListOptions) bool {
	if v.DeletedAt != nil {
		return false
	}
	if opts.OwnerID != "" && v.OwnerID != opts.OwnerID {
		return false
	}
	if opts.PublicOnly && !v.IsPublic {
		return false
	}
	return true
}

// page sorts newest first and applies limit/offset.
func page(videos []*models.VideoRecord, opts ListOptions) []*models.VideoRecord {
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
	if opts.Offset >= len(videos) {
		return nil
	}
	videos = videos[opts.Offset:]
	if opts.Limit > 0 && len(videos) > opts.Limit {
		videos = videos[:opts.Limit]
	}
	return videos
}
