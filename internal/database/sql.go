package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/models"
	"github.com/google/uuid"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	driver   string
	schema   string
	rebind   func(query string) string
	tagsArg  func(tags []string) (any, error)
	tagsDest func(dst *[]string) any
	classify func(err error) error
}

// SQLStore is a Store over database/sql.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

func openSQL(ctx context.Context, d dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, d.classify(err)
	}

	return &SQLStore{db: db, d: d}, nil
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.schema); err != nil {
		return fmt.Errorf("migrate: %w", s.d.classify(err))
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) InsertVideo(ctx context.Context, v *models.VideoRecord) (string, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	tags, err := s.d.tagsArg(v.Tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}

	query := s.d.rebind(fmt.Sprintf(
		`INSERT INTO videos (%s) VALUES (%s)`,
		columnList(videoColumns), placeholders(len(videoColumns)),
	))
	if _, err := s.db.ExecContext(ctx, query, videoArgs(v, tags)...); err != nil {
		return "", s.d.classify(err)
	}
	return v.ID, nil
}

func (s *SQLStore) GetVideo(ctx context.Context, id string) (*models.VideoRecord, error) {
	query := s.d.rebind(fmt.Sprintf(
		`SELECT %s FROM videos WHERE id = ? AND deleted_at IS NULL`,
		columnList(videoColumns),
	))

	var tags []string
	v, err := scanVideo(s.db.QueryRowContext(ctx, query, id), s.d.tagsDest(&tags))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, s.d.classify(err)
	}
	v.Tags = tags
	return v, nil
}

func (s *SQLStore) ListVideos(ctx context.Context, opts ListOptions) ([]*models.VideoRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM videos WHERE deleted_at IS NULL`, columnList(videoColumns))
	var args []any
	if opts.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, opts.OwnerID)
	}
	if opts.PublicOnly {
		query += ` AND is_public = ?`
		args = append(args, true)
	}
	query += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, s.d.classify(err)
	}
	defer rows.Close()

	var videos []*models.VideoRecord
	for rows.Next() {
		var tags []string
		v, err := scanVideo(rows, s.d.tagsDest(&tags))
		if err != nil {
			return nil, s.d.classify(err)
		}
		v.Tags = tags
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, s.d.classify(err)
	}
	return videos, nil
}

func (s *SQLStore) DeleteVideo(ctx context.Context, id, ownerID string) error {
	query := s.d.rebind(`
        UPDATE videos
        SET deleted_at = ?
        WHERE id = ? AND owner_id = ? AND deleted_at IS NULL
    `)
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id, ownerID)
	if err != nil {
		return s.d.classify(err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *SQLStore) IncrementViews(ctx context.Context, id string) error {
	query := s.d.rebind(`UPDATE videos SET views = views + 1 WHERE id = ? AND deleted_at IS NULL`)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return s.d.classify(err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *SQLStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	query := s.d.rebind(fmt.Sprintf(
		`INSERT INTO users (%s) VALUES (%s)`,
		columnList(userColumns), placeholders(len(userColumns)),
	))
	if _, err := s.db.ExecContext(ctx, query, userArgs(u)...); err != nil {
		return s.d.classify(err)
	}
	return nil
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *SQLStore) getUser(ctx context.Context, column, value string) (*models.User, error) {
	query := s.d.rebind(fmt.Sprintf(`SELECT %s FROM users WHERE %s = ?`, columnList(userColumns), column))
	u, err := scanUser(s.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, s.d.classify(err)
	}
	return u, nil
}

var questionMark = regexp.MustCompile(`\?`)

// dollarBind rewrites ? placeholders to $1, $2, ... for Postgres.
func dollarBind(query string) string {
	n := 0
	return questionMark.ReplaceAllStringFunc(query, func(string) string {
		n++
		return "$" + strconv.Itoa(n)
	})
}

func noRebind(query string) string { return query }
