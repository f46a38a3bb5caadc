package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/PaulBabatuyi/WeddingHub/internal/faults"
	"github.com/PaulBabatuyi/WeddingHub/internal/models"
	"github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    id             TEXT PRIMARY KEY,
    email          TEXT NOT NULL UNIQUE,
    password_hash  TEXT NOT NULL,
    full_name      TEXT NOT NULL DEFAULT '',
    phone_number   TEXT NOT NULL DEFAULT '',
    date_of_birth  DATE,
    gender         TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS videos (
    id                     TEXT PRIMARY KEY,
    owner_id               TEXT NOT NULL,
    title                  TEXT NOT NULL,
    description            TEXT NOT NULL,
    category               TEXT NOT NULL,
    tags                   TEXT[] NOT NULL DEFAULT '{}',
    duration_seconds       INTEGER,
    guest_count            INTEGER,
    price                  NUMERIC(12, 2),
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
    is_public              BOOLEAN NOT NULL DEFAULT TRUE,
    allow_comments         BOOLEAN NOT NULL DEFAULT TRUE,
    allow_downloads        BOOLEAN NOT NULL DEFAULT FALSE,
    video_key              TEXT NOT NULL,
    video_content_type     TEXT NOT NULL,
    video_size             BIGINT NOT NULL,
    thumbnail_key          TEXT NOT NULL,
    thumbnail_content_type TEXT NOT NULL,
    thumbnail_width        INTEGER NOT NULL DEFAULT 0,
    thumbnail_height       INTEGER NOT NULL DEFAULT 0,
    views                  BIGINT NOT NULL DEFAULT 0,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at             TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS videos_feed_idx ON videos (created_at DESC) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS videos_owner_idx ON videos (owner_id, created_at DESC) WHERE deleted_at IS NULL;
`

// NewPostgresDB connects with lib/pq.
func NewPostgresDB(ctx context.Context, connectionString string) (*SQLStore, error) {
	return openSQL(ctx, dialect{
		driver: "postgres",
		schema: postgresSchema,
		rebind: dollarBind,
		tagsArg: func(tags []string) (any, error) {
			if tags == nil {
				tags = []string{}
			}
			return pq.Array(tags), nil
		},
		tagsDest: func(dst *[]string) any { return pq.Array(dst) },
		classify: classifyPostgres,
	}, connectionString)
}

// classifyPostgres maps SQLSTATE classes onto retry classes.
func classifyPostgres(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) {
		return faults.Transient(err)
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	if pqErr.Code == "23505" { // unique_violation
		return fmt.Errorf("%w: %w", models.ErrConflict, faults.Permanent(err))
	}

	switch pqErr.Code.Class() {
	case "08", // connection exception
		"40", // transaction rollback (serialization, deadlock)
		"53", // insufficient resources
		"57": // operator intervention (admin shutdown, cannot connect now)
		return faults.Transient(err)
	}
	return faults.Permanent(err)
}
