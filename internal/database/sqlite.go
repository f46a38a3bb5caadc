package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PaulBabatuyi/WeddingHub/internal/faults"
	"github.com/PaulBabatuyi/WeddingHub/internal/models"
	"github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id             TEXT NOT NULL PRIMARY KEY,
    email          TEXT NOT NULL UNIQUE,
    password_hash  TEXT NOT NULL,
    full_name      TEXT NOT NULL DEFAULT '',
    phone_number   TEXT NOT NULL DEFAULT '',
    date_of_birth  DATE,
    gender         TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS videos (
    id                     TEXT NOT NULL PRIMARY KEY,
    owner_id               TEXT NOT NULL,
    title                  TEXT NOT NULL,
    description            TEXT NOT NULL,
    category               TEXT NOT NULL,
    tags                   TEXT NOT NULL DEFAULT '[]',
    duration_seconds       INTEGER,
    guest_count            INTEGER,
    price                  REAL,
    event_date             DATE,
    venue                  TEXT NOT NULL DEFAULT '',
    location               TEXT NOT NULL DEFAULT '',
    couple_names           TEXT NOT NULL DEFAULT '',
    bride_name             TEXT NOT NULL DEFAULT '',
    groom_name             TEXT NOT NULL DEFAULT '',
    photographer           TEXT NOT NULL DEFAULT '',
    videographer           TEXT NOT NULL DEFAULT '',
    planner                TEXT NOT NULL DEFAULT '',
    florist                TEXT NOT NULL DEFAULT '',
    caterer                TEXT NOT NULL DEFAULT '',
    music_by               TEXT NOT NULL DEFAULT '',
    dress_designer         TEXT NOT NULL DEFAULT '',
    officiant              TEXT NOT NULL DEFAULT '',
    theme                  TEXT NOT NULL DEFAULT '',
    is_public              BOOLEAN NOT NULL DEFAULT 1,
    allow_comments         BOOLEAN NOT NULL DEFAULT 1,
    allow_downloads        BOOLEAN NOT NULL DEFAULT 0,
    video_key              TEXT NOT NULL,
    video_content_type     TEXT NOT NULL,
    video_size             INTEGER NOT NULL,
    thumbnail_key          TEXT NOT NULL,
    thumbnail_content_type TEXT NOT NULL,
    thumbnail_width        INTEGER NOT NULL DEFAULT 0,
    thumbnail_height       INTEGER NOT NULL DEFAULT 0,
    views                  INTEGER NOT NULL DEFAULT 0,
    created_at             TIMESTAMP NOT NULL,
    deleted_at             TIMESTAMP
);

CREATE INDEX IF NOT EXISTS videos_created_idx ON videos (created_at);
CREATE INDEX IF NOT EXISTS videos_owner_idx ON videos (owner_id);
`

// NewSQLiteDB opens (creating if needed) a SQLite database file.
func NewSQLiteDB(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		path = "weddinghub.db"
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path)

	store, err := openSQL(ctx, dialect{
		driver: "sqlite3",
		schema: sqliteSchema,
		rebind: noRebind,
		tagsArg: func(tags []string) (any, error) {
			if tags == nil {
				tags = []string{}
			}
			b, err := json.Marshal(tags)
			return string(b), err
		},
		tagsDest: func(dst *[]string) any { return &jsonTags{dst: dst} },
		classify: classifySQLite,
	}, dsn)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer.
	store.db.SetMaxOpenConns(1)
	return store, nil
}

// jsonTags scans a JSON array column into a string slice.
type jsonTags struct {
	dst *[]string
}

func (j *jsonTags) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*j.dst = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported tags column type %T", src)
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return fmt.Errorf("decode tags: %w", err)
	}
	if len(tags) == 0 {
		tags = nil
	}
	*j.dst = tags
	return nil
}

func classifySQLite(err error) error {
	if err == nil {
		return nil
	}

	var sqlErr sqlite3.Error
	if !errors.As(err, &sqlErr) {
		return err
	}

	switch sqlErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return faults.Transient(err)
	case sqlite3.ErrConstraint:
		if sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%w: %w", models.ErrConflict, faults.Permanent(err))
		}
	}
	return faults.Permanent(err)
}
