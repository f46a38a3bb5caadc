package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/media"
	"github.com/PaulBabatuyi/WeddingHub/internal/middleware"
	"github.com/PaulBabatuyi/WeddingHub/internal/submission"
	"github.com/PaulBabatuyi/WeddingHub/internal/wizard"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fileView struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type draftView struct {
	ID        string `json:"id"`
	Step      string `json:"step"`
	StepIndex int    `json:"step_index"`
	Busy      bool   `json:"busy"`

	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	TagInput    string   `json:"tag_input"`

	Duration   *int     `json:"duration"`
	GuestCount *int     `json:"guest_count"`
	Price      *float64 `json:"price"`
	EventDate  *string  `json:"event_date"`

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

	Video     *fileView `json:"video"`
	Thumbnail *fileView `json:"thumbnail"`

	CreatedAt time.Time `json:"created_at"`
}

func fileOf(a *media.Accepted) *fileView {
	if a == nil {
		return nil
	}
	c := a.Candidate()
	return &fileView{Name: c.Name, Size: c.Size, ContentType: c.ContentType}
}

func viewDraft(d *draft) draftView {
	f := d.form.Draft()
	step := d.form.Step()
	v := draftView{
		ID:             d.id,
		Step:           step.String(),
		StepIndex:      int(step),
		Busy:           d.form.Busy(),
		Title:          f.Title,
		Description:    f.Description,
		Category:       string(f.Category),
		Tags:           f.Tags,
		TagInput:       f.TagInput,
		Duration:       f.Duration,
		GuestCount:     f.GuestCount,
		Price:          f.Price,
		Venue:          f.Venue,
		Location:       f.Location,
		CoupleNames:    f.CoupleNames,
		BrideName:      f.BrideName,
		GroomName:      f.GroomName,
		Photographer:   f.Photographer,
		Videographer:   f.Videographer,
		Planner:        f.Planner,
		Florist:        f.Florist,
		Caterer:        f.Caterer,
		MusicBy:        f.MusicBy,
		DressDesigner:  f.DressDesigner,
		Officiant:      f.Officiant,
		Theme:          f.Theme,
		IsPublic:       f.IsPublic,
		AllowComments:  f.AllowComments,
		AllowDownloads: f.AllowDownloads,
		Video:          fileOf(f.Video),
		Thumbnail:      fileOf(f.Thumbnail),
		CreatedAt:      d.created,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if f.EventDate != nil {
		s := f.EventDate.Format(wizard.DateLayout)
		v.EventDate = &s
	}
	return v
}

// withDraft resolves {id} to a draft owned by the caller.
func (s *Server) withDraft(h func(w http.ResponseWriter, r *http.Request, d *draft)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := middleware.SessionFromContext(r.Context())
		d, ok := s.drafts.get(r.PathValue("id"), sess.UserID)
		if !ok {
			writeError(w, http.StatusNotFound, "draft not found")
			return
		}
		h(w, r, d)
	})
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	d := &draft{
		id:      uuid.NewString(),
		owner:   sess.UserID,
		created: time.Now().UTC(),
		staged:  make(map[string]struct{}),
	}
	opts := []wizard.Option{wizard.WithLogger(s.logger.With(zap.String("draft_id", d.id)))}
	if s.prober != nil {
		opts = append(opts, wizard.WithProber(s.prober))
	}
	d.form = wizard.NewForm(sess, s.validator, s.submitter, opts...)
	s.drafts.add(d)

	writeJSON(w, http.StatusCreated, viewDraft(d))
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request, d *draft) {
	writeJSON(w, http.StatusOK, viewDraft(d))
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	d, ok := s.drafts.get(r.PathValue("id"), sess.UserID)
	if !ok {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if d.form.Busy() {
		writeError(w, http.StatusConflict, wizard.ErrSubmissionInFlight.Error())
		return
	}
	if d, ok = s.drafts.remove(d.id, sess.UserID); ok {
		d.discardAll()
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateDraft applies {"field": value, ...}. Values may be JSON
// strings, numbers, booleans or null (clears the field). Fields are applied
// in name order and the first invalid one stops the update.
func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request, d *draft) {
	var body map[string]json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fields := make([]string, 0, len(body))
	for k := range body {
		fields = append(fields, k)
	}
	slices.Sort(fields)

	for _, name := range fields {
		value, err := rawValue(body[name])
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: name})
			return
		}
		if err := d.form.Update(wizard.Field(name), value); err != nil {
			s.writeFailure(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, viewDraft(d))
}

var errNotScalar = errors.New("value must be a string, number, boolean or null")

func rawValue(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool, float64:
		return string(raw), nil
	}
	return "", errNotScalar
}

func (s *Server) handleAttachVideo(w http.ResponseWriter, r *http.Request, d *draft) {
	s.attach(w, r, d, media.KindVideo)
}

func (s *Server) handleAttachThumbnail(w http.ResponseWriter, r *http.Request, d *draft) {
	s.attach(w, r, d, media.KindImage)
}

func (s *Server) attach(w http.ResponseWriter, r *http.Request, d *draft, kind media.Kind) {
	if d.form.Busy() {
		writeError(w, http.StatusConflict, wizard.ErrSubmissionInFlight.Error())
		return
	}

	c, err := s.stageUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	before := d.form.Draft()
	prev := before.Video
	if kind == media.KindImage {
		prev = before.Thumbnail
	}

	if kind == media.KindVideo {
		err = d.form.AttachVideo(r.Context(), c)
	} else {
		err = d.form.AttachThumbnail(c)
	}
	if err != nil {
		removeStaged(c.Path)
		s.writeFailure(w, r, err)
		return
	}

	d.track(c.Path)
	if prev != nil {
		d.discard(prev.Candidate().Path)
	}
	s.logger.Debug("file attached",
		zap.String("draft_id", d.id),
		zap.String("kind", kind.String()),
		zap.String("file", c.Name),
		zap.Int64("size", c.Size),
	)
	writeJSON(w, http.StatusOK, viewDraft(d))
}

func (s *Server) handleDetachVideo(w http.ResponseWriter, r *http.Request, d *draft) {
	s.detach(w, r, d, d.form.DetachVideo)
}

func (s *Server) handleDetachThumbnail(w http.ResponseWriter, r *http.Request, d *draft) {
	s.detach(w, r, d, d.form.DetachThumbnail)
}

func (s *Server) detach(w http.ResponseWriter, r *http.Request, d *draft, fn func() (*media.Accepted, error)) {
	prev, err := fn()
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if prev != nil {
		d.discard(prev.Candidate().Path)
	}
	writeJSON(w, http.StatusOK, viewDraft(d))
}

type tagRequest struct {
	// Tag is added directly; when absent the buffered tag input is committed.
	Tag *string `json:"tag"`
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request, d *draft) {
	var req tagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	if req.Tag != nil {
		err = d.form.AddTag(*req.Tag)
	} else {
		err = d.form.CommitTagInput()
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewDraft(d))
}

func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request, d *draft) {
	removed, err := d.form.RemoveTag(r.PathValue("tag"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "tag not found")
		return
	}
	writeJSON(w, http.StatusOK, viewDraft(d))
}

type advanceResponse struct {
	Submitted bool       `json:"submitted"`
	RecordID  string     `json:"record_id,omitempty"`
	Draft     *draftView `json:"draft,omitempty"`
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request, d *draft) {
	ctx := submission.WithProgress(r.Context(), d.setProgress)
	out, err := d.form.Advance(ctx)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	if out.Submitted {
		// the form was reset, so nothing references the staged files anymore
		d.discardAll()
		writeJSON(w, http.StatusCreated, advanceResponse{Submitted: true, RecordID: out.RecordID})
		return
	}
	view := viewDraft(d)
	writeJSON(w, http.StatusOK, advanceResponse{Draft: &view})
}

func (s *Server) handleRetreat(w http.ResponseWriter, r *http.Request, d *draft) {
	d.form.Retreat()
	writeJSON(w, http.StatusOK, viewDraft(d))
}

type progressResponse struct {
	Busy    bool   `json:"busy"`
	Stage   string `json:"stage,omitempty"`
	Percent int    `json:"percent"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, d *draft) {
	resp := progressResponse{Busy: d.form.Busy()}
	if p := d.lastProgress(); p != nil {
		resp.Stage = p.Stage.String()
		resp.Percent = p.Percent
	}
	writeJSON(w, http.StatusOK, resp)
}
