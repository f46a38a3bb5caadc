package database_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/database"
	"github.com/PaulBabatuyi/WeddingHub/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVideo(owner, title string, public bool, createdAt time.Time) *models.VideoRecord {
	guests := 120
	price := 2500.5
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return &models.VideoRecord{
		OwnerID:              owner,
		Title:                title,
		Description:          "first dance and vows",
		Category:             "Modern",
		Tags:                 []string{"beach", "destination"},
		GuestCount:           &guests,
		Price:                &price,
		EventDate:            &date,
		Location:             "Lisbon",
		CoupleNames:          "Ana & Rui",
		IsPublic:             public,
		AllowComments:        true,
		VideoKey:             owner + "/videos/1.mp4",
		VideoContentType:     "video/mp4",
		VideoSize:            50 << 20,
		ThumbnailKey:         owner + "/thumbnails/1.png",
		ThumbnailContentType: "image/png",
		ThumbnailWidth:       640,
		ThumbnailHeight:      360,
		CreatedAt:            createdAt,
	}
}

// runStoreSuite exercises the behavior every backend must share.
func runStoreSuite(t *testing.T, store database.Store) {
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	owner := uuid.NewString()
	other := uuid.NewString()
	base := time.Now().UTC().Truncate(time.Second)

	t.Run("insert and get", func(t *testing.T) {
		v := newVideo(owner, "Our Day", true, base)
		id, err := store.InsertVideo(ctx, v)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		got, err := store.GetVideo(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Our Day", got.Title)
		assert.Equal(t, owner, got.OwnerID)
		assert.Equal(t, []string{"beach", "destination"}, got.Tags)
		require.NotNil(t, got.GuestCount)
		assert.Equal(t, 120, *got.GuestCount)
		require.NotNil(t, got.Price)
		assert.InDelta(t, 2500.5, *got.Price, 0.001)
		require.NotNil(t, got.EventDate)
		assert.Equal(t, "2024-06-01", got.EventDate.Format("2006-01-02"))
		assert.Nil(t, got.DurationSeconds)
		assert.True(t, got.IsPublic)
		assert.False(t, got.AllowDownloads)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.GetVideo(ctx, uuid.NewString())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("list filters and orders newest first", func(t *testing.T) {
		listOwner := uuid.NewString()
		oldID, err := store.InsertVideo(ctx, newVideo(listOwner, "old", true, base.Add(-time.Hour)))
		require.NoError(t, err)
		newID, err := store.InsertVideo(ctx, newVideo(listOwner, "new", true, base.Add(time.Hour)))
		require.NoError(t, err)
		_, err = store.InsertVideo(ctx, newVideo(listOwner, "private", false, base))
		require.NoError(t, err)

		all, err := store.ListVideos(ctx, database.ListOptions{OwnerID: listOwner})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		public, err := store.ListVideos(ctx, database.ListOptions{OwnerID: listOwner, PublicOnly: true})
		require.NoError(t, err)
		require.Len(t, public, 2)
		assert.Equal(t, newID, public[0].ID)
		assert.Equal(t, oldID, public[1].ID)

		paged, err := store.ListVideos(ctx, database.ListOptions{OwnerID: listOwner, PublicOnly: true, Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, paged, 1)
		assert.Equal(t, oldID, paged[0].ID)
	})

	t.Run("delete is owner scoped and soft", func(t *testing.T) {
		id, err := store.InsertVideo(ctx, newVideo(owner, "to delete", true, base))
		require.NoError(t, err)

		assert.ErrorIs(t, store.DeleteVideo(ctx, id, other), models.ErrNotFound)
		require.NoError(t, store.DeleteVideo(ctx, id, owner))
		assert.ErrorIs(t, store.DeleteVideo(ctx, id, owner), models.ErrNotFound)

		_, err = store.GetVideo(ctx, id)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("views", func(t *testing.T) {
		id, err := store.InsertVideo(ctx, newVideo(owner, "popular", true, base))
		require.NoError(t, err)
		require.NoError(t, store.IncrementViews(ctx, id))
		require.NoError(t, store.IncrementViews(ctx, id))

		got, err := store.GetVideo(ctx, id)
		require.NoError(t, err)
		assert.EqualValues(t, 2, got.Views)
	})

	t.Run("users", func(t *testing.T) {
		email := "guest-" + uuid.NewString()[:8] + "@example.com"
		u := &models.User{Email: email, PasswordHash: "hash", FullName: "Ana"}
		require.NoError(t, store.CreateUser(ctx, u))
		require.NotEmpty(t, u.ID)

		byEmail, err := store.GetUserByEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
		assert.Equal(t, "hash", byEmail.PasswordHash)

		dup := &models.User{Email: email, PasswordHash: "other"}
		assert.ErrorIs(t, store.CreateUser(ctx, dup), models.ErrConflict)

		_, err = store.GetUser(ctx, uuid.NewString())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, database.NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store, err := database.NewSQLiteDB(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	runStoreSuite(t, store)
}

func TestPostgresStore(t *testing.T) {
	dbURL := os.Getenv("WEDDINGHUB_TEST_POSTGRES")
	if dbURL == "" {
		t.Skip("WEDDINGHUB_TEST_POSTGRES env not set")
	}
	store, err := database.NewPostgresDB(context.Background(), dbURL)
	require.NoError(t, err)
	defer store.Close()

	runStoreSuite(t, store)
}

func TestEtcdStore(t *testing.T) {
	endpoints := os.Getenv("WEDDINGHUB_TEST_ETCD")
	if endpoints == "" {
		t.Skip("WEDDINGHUB_TEST_ETCD env not set")
	}
	store, err := database.NewEtcdStore(strings.Split(endpoints, ","))
	require.NoError(t, err)
	defer store.Close()

	runStoreSuite(t, store)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := database.Open(context.Background(), database.Config{Driver: "mongo"})
	assert.Error(t, err)
}

func TestOpenDefaultsToMemory(t *testing.T) {
	store, err := database.Open(context.Background(), database.Config{})
	require.NoError(t, err)
	assert.IsType(t, &database.MemoryStore{}, store)
}
