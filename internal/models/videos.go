package models

import "time"

// VideoRecord is the persisted form of a committed submission.
type VideoRecord struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`

	DurationSeconds *int       `json:"duration_seconds,omitempty"`
	GuestCount      *int       `json:"guest_count,omitempty"`
	Price           *float64   `json:"price,omitempty"`
	EventDate       *time.Time `json:"event_date,omitempty"`

	Venue         string `json:"venue"`
	Location      string `json:"location"`
	CoupleNames   string `json:"couple_names"`
	BrideName     string `json:"bride_name"`
	GroomName     string `json:"groom_name"`
	Photographer  string `json:"photographer"`
	Videographer  string `json:"videographer"`
	Planner       string `json:"planner"`
	Florist       string `json:"florist"`
	Caterer       string `json:"caterer"`
	MusicBy       string `json:"music_by"`
	DressDesigner string `json:"dress_designer"`
	Officiant     string `json:"officiant"`
	Theme         string `json:"theme"`

	IsPublic       bool `json:"is_public"`
	AllowComments  bool `json:"allow_comments"`
	AllowDownloads bool `json:"allow_downloads"`

	VideoKey             string `json:"video_key"`
	VideoContentType     string `json:"video_content_type"`
	VideoSize            int64  `json:"video_size"`
	ThumbnailKey         string `json:"thumbnail_key"`
	ThumbnailContentType string `json:"thumbnail_content_type"`
	ThumbnailWidth       int    `json:"thumbnail_width,omitempty"`
	ThumbnailHeight      int    `json:"thumbnail_height,omitempty"`

	Views     int64      `json:"views"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// User is an account profile created at sign-up.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	PhoneNumber  string     `json:"phone_number,omitempty"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
