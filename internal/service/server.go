// Package service exposes the submission wizard, the video feed and account
// management over HTTP.
package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/PaulBabatuyi/WeddingHub/internal/auth"
	"github.com/PaulBabatuyi/WeddingHub/internal/database"
	"github.com/PaulBabatuyi/WeddingHub/internal/media"
	"github.com/PaulBabatuyi/WeddingHub/internal/middleware"
	"github.com/PaulBabatuyi/WeddingHub/internal/models"
	"github.com/PaulBabatuyi/WeddingHub/internal/wizard"
	"go.uber.org/zap"
)

type VideoStore interface {
	GetVideo(ctx context.Context, id string) (*models.VideoRecord, error)
	ListVideos(ctx context.Context, opts database.ListOptions) ([]*models.VideoRecord, error)
	DeleteVideo(ctx context.Context, id, ownerID string) error
	IncrementViews(ctx context.Context, id string) error
}

type ObjectStore interface {
	Open(key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
}

type Accounts interface {
	SignUp(ctx context.Context, profile auth.Profile) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (auth.Session, error)
	SignOut(token string)
	Current(token string) (auth.Session, error)
	User(ctx context.Context, sess auth.Session) (*models.User, error)
}

// Orphans takes objects that could not be deleted.
type Orphans interface {
	Enqueue(key string, cause error)
}

type Deps struct {
	Videos    VideoStore
	Objects   ObjectStore
	Accounts  Accounts
	Submitter wizard.Submitter
	Validator *media.Validator
	Prober    media.Prober // optional
	Orphans   Orphans      // optional
	Logger    *zap.Logger

	// StagingDir holds uploaded files until their draft is submitted or discarded.
	StagingDir string
}

type Server struct {
	videos    VideoStore
	objects   ObjectStore
	accounts  Accounts
	submitter wizard.Submitter
	validator *media.Validator
	prober    media.Prober
	orphans   Orphans
	logger    *zap.Logger

	stagingDir string
	drafts     *DraftStore
}

func New(d Deps) (*Server, error) {
	if d.StagingDir == "" {
		d.StagingDir = os.TempDir()
	}
	if err := os.MkdirAll(d.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Server{
		videos:     d.Videos,
		objects:    d.Objects,
		accounts:   d.Accounts,
		submitter:  d.Submitter,
		validator:  d.Validator,
		prober:     d.Prober,
		orphans:    d.Orphans,
		logger:     d.Logger.Named("http"),
		stagingDir: d.StagingDir,
		drafts:     NewDraftStore(),
	}, nil
}

// Drafts exposes the open drafts, mainly for shutdown cleanup.
func (s *Server) Drafts() *DraftStore { return s.drafts }

func (s *Server) Handler() http.Handler {
	authed := middleware.RequireSession(s.accounts)
	optional := middleware.OptionalSession(s.accounts)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/auth/signin", s.handleSignIn)
	mux.HandleFunc("POST /api/auth/signout", s.handleSignOut)
	mux.Handle("GET /api/auth/session", authed(http.HandlerFunc(s.handleSession)))

	mux.Handle("POST /api/drafts", authed(http.HandlerFunc(s.handleCreateDraft)))
	mux.Handle("GET /api/drafts/{id}", authed(s.withDraft(s.handleGetDraft)))
	mux.Handle("DELETE /api/drafts/{id}", authed(http.HandlerFunc(s.handleDeleteDraft)))
	mux.Handle("PATCH /api/drafts/{id}", authed(s.withDraft(s.handleUpdateDraft)))
	mux.Handle("POST /api/drafts/{id}/video", authed(s.withDraft(s.handleAttachVideo)))
	mux.Handle("DELETE /api/drafts/{id}/video", authed(s.withDraft(s.handleDetachVideo)))
	mux.Handle("POST /api/drafts/{id}/thumbnail", authed(s.withDraft(s.handleAttachThumbnail)))
	mux.Handle("DELETE /api/drafts/{id}/thumbnail", authed(s.withDraft(s.handleDetachThumbnail)))
	mux.Handle("POST /api/drafts/{id}/tags", authed(s.withDraft(s.handleAddTag)))
	mux.Handle("DELETE /api/drafts/{id}/tags/{tag}", authed(s.withDraft(s.handleRemoveTag)))
	mux.Handle("POST /api/drafts/{id}/advance", authed(s.withDraft(s.handleAdvance)))
	mux.Handle("POST /api/drafts/{id}/retreat", authed(s.withDraft(s.handleRetreat)))
	mux.Handle("GET /api/drafts/{id}/progress", authed(s.withDraft(s.handleProgress)))

	mux.Handle("GET /api/videos", optional(http.HandlerFunc(s.handleListVideos)))
	mux.Handle("GET /api/videos/{id}", optional(http.HandlerFunc(s.handleGetVideo)))
	mux.Handle("DELETE /api/videos/{id}", authed(http.HandlerFunc(s.handleDeleteVideo)))
	mux.HandleFunc("GET /content/{key...}", s.handleContent)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.Recover(s.logger),
	)
}
