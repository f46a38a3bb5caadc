package service

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/database"
	"github.com/PaulBabatuyi/WeddingHub/internal/middleware"
	"github.com/PaulBabatuyi/WeddingHub/internal/models"
	"github.com/PaulBabatuyi/WeddingHub/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type videoView struct {
	*models.VideoRecord
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func viewVideo(v *models.VideoRecord) videoView {
	return videoView{
		VideoRecord:  v,
		VideoURL:     "/content/" + v.VideoKey,
		ThumbnailURL: "/content/" + v.ThumbnailKey,
	}
}

type listVideosResponse struct {
	Videos        []videoView `json:"videos"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

// handleListVideos serves the public feed, or with ?mine=true every video
// the caller owns.
func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("page_size"))
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := 0
	if token := q.Get("page_token"); token != "" {
		// page tokens are plain offsets
		parsed, err := strconv.Atoi(token)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid page_token")
			return
		}
		offset = parsed
	}

	opts := database.ListOptions{PublicOnly: true, Limit: limit + 1, Offset: offset}
	if q.Get("mine") == "true" {
		sess, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "sign in to list your videos")
			return
		}
		opts.OwnerID = sess.UserID
		opts.PublicOnly = false
	}

	// fetch one extra row to know whether there is another page
	records, err := s.videos.ListVideos(r.Context(), opts)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	resp := listVideosResponse{Videos: make([]videoView, 0, min(len(records), limit))}
	for i, rec := range records {
		if i == limit {
			break
		}
		resp.Videos = append(resp.Videos, viewVideo(rec))
	}
	if len(records) > limit {
		resp.NextPageToken = strconv.Itoa(offset + limit)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetVideo returns a video and counts the view. Private videos are
// only visible to their owner.
func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	v, err := s.videos.GetVideo(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	sess, _ := middleware.SessionFromContext(r.Context())
	if !v.IsPublic && v.OwnerID != sess.UserID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if v.OwnerID != sess.UserID {
		if err := s.videos.IncrementViews(r.Context(), v.ID); err != nil {
			s.logger.Warn("failed to count view", zap.String("video_id", v.ID), zap.Error(err))
		} else {
			v.Views++
		}
	}
	writeJSON(w, http.StatusOK, viewVideo(v))
}

// handleDeleteVideo soft-deletes the record first, then removes the objects.
// Objects that cannot be removed are handed to the orphan cleaner.
func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())

	v, err := s.videos.GetVideo(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if v.OwnerID != sess.UserID {
		writeError(w, http.StatusForbidden, "not owner")
		return
	}

	if err := s.videos.DeleteVideo(r.Context(), v.ID, sess.UserID); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	for _, key := range []string{v.VideoKey, v.ThumbnailKey} {
		if err := s.objects.Delete(r.Context(), key); err != nil {
			s.logger.Warn("failed to delete object", zap.String("key", key), zap.Error(err))
			if s.orphans != nil {
				s.orphans.Enqueue(key, err)
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleContent streams a stored object. Keys embed a random id, so they
// act as capability URLs.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	rc, size, err := s.objects.Open(key)
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, storage.ErrInvalidKey):
		writeError(w, http.StatusNotFound, "not found")
		return
	case err != nil:
		s.writeFailure(w, r, err)
		return
	}
	defer rc.Close()

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, key, time.Time{}, rs)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Debug("content stream interrupted", zap.String("key", key), zap.Error(err))
	}
}
