package database

import (
	"database/sql"
	"strings"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/models"
)

var videoColumns = []string{
	"id", "owner_id", "title", "description", "category", "tags",
	"duration_seconds", "guest_count", "price", "event_date",
	"venue", "location", "couple_names", "bride_name", "groom_name",
	"photographer", "videographer", "planner", "florist", "caterer",
	"music_by", "dress_designer", "officiant", "theme",
	"is_public", "allow_comments", "allow_downloads",
	"video_key", "video_content_type", "video_size",
	"thumbnail_key", "thumbnail_content_type", "thumbnail_width", "thumbnail_height",
	"views", "created_at", "deleted_at",
}

var userColumns = []string{
	"id", "email", "password_hash", "full_name", "phone_number", "date_of_birth", "gender", "created_at",
}

func columnList(cols []string) string {
	return strings.Join(cols, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func videoArgs(v *models.VideoRecord, tags any) []any {
	return []any{
		v.ID, v.OwnerID, v.Title, v.Description, v.Category, tags,
		nullInt(v.DurationSeconds), nullInt(v.GuestCount), nullFloat(v.Price), nullTime(v.EventDate),
		v.Venue, v.Location, v.CoupleNames, v.BrideName, v.GroomName,
		v.Photographer, v.Videographer, v.Planner, v.Florist, v.Caterer,
		v.MusicBy, v.DressDesigner, v.Officiant, v.Theme,
		v.IsPublic, v.AllowComments, v.AllowDownloads,
		v.VideoKey, v.VideoContentType, v.VideoSize,
		v.ThumbnailKey, v.ThumbnailContentType, v.ThumbnailWidth, v.ThumbnailHeight,
		v.Views, v.CreatedAt, nullTime(v.DeletedAt),
	}
}

func scanVideo(row rowScanner, tags any) (*models.VideoRecord, error) {
	var (
		v          models.VideoRecord
		duration   sql.NullInt64
		guestCount sql.NullInt64
		price      sql.NullFloat64
		eventDate  sql.NullTime
		deletedAt  sql.NullTime
	)
	err := row.Scan(
		&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.Category, tags,
		&duration, &guestCount, &price, &eventDate,
		&v.Venue, &v.Location, &v.CoupleNames, &v.BrideName, &v.GroomName,
		&v.Photographer, &v.Videographer, &v.Planner, &v.Florist, &v.Caterer,
		&v.MusicBy, &v.DressDesigner, &v.Officiant, &v.Theme,
		&v.IsPublic, &v.AllowComments, &v.AllowDownloads,
		&v.VideoKey, &v.VideoContentType, &v.VideoSize,
		&v.ThumbnailKey, &v.ThumbnailContentType, &v.ThumbnailWidth, &v.ThumbnailHeight,
		&v.Views, &v.CreatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	v.DurationSeconds = intPtr(duration)
	v.GuestCount = intPtr(guestCount)
	if price.Valid {
		v.Price = &price.Float64
	}
	if eventDate.Valid {
		v.EventDate = &eventDate.Time
	}
	if deletedAt.Valid {
		v.DeletedAt = &deletedAt.Time
	}
	return &v, nil
}

func userArgs(u *models.User) []any {
	return []any{u.ID, u.Email, u.PasswordHash, u.FullName, u.PhoneNumber, nullTime(u.DateOfBirth), u.Gender, u.CreatedAt}
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u   models.User
		dob sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.PhoneNumber, &dob, &u.Gender, &u.CreatedAt); err != nil {
		return nil, err
	}
	if dob.Valid {
		u.DateOfBirth = &dob.Time
	}
	return &u, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
