// Package submission commits a completed draft: it uploads the video, then
// the thumbnail, then persists the metadata record. Each committed step is
// undone in reverse order when a later step fails.
package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/auth"
	"github.com/PaulBabatuyi/WeddingHub/internal/faults"
	"github.com/PaulBabatuyi/WeddingHub/internal/media"
	"github.com/PaulBabatuyi/WeddingHub/internal/models"
	"github.com/PaulBabatuyi/WeddingHub/internal/observability"
	"github.com/PaulBabatuyi/WeddingHub/internal/storage"
	"github.com/PaulBabatuyi/WeddingHub/internal/wizard"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var ErrUnauthenticated = errors.New("submission requires an authenticated owner")

const (
	DefaultStageTimeout        = 10 * time.Minute
	DefaultRetryBaseDelay      = 500 * time.Millisecond
	DefaultCompensationTimeout = 30 * time.Second
)

// ObjectStore is where media objects are uploaded.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, opts storage.PutOptions) error
	Delete(ctx context.Context, key string) error
}

// RecordStore persists the submission record.
type RecordStore interface {
	InsertVideo(ctx context.Context, v *models.VideoRecord) (string, error)
	GetVideo(ctx context.Context, id string) (*models.VideoRecord, error)
}

// Janitor takes over objects whose compensating delete failed.
type Janitor interface {
	Enqueue(key string, cause error)
}

type Config struct {
	StageTimeout time.Duration
	// MaxAttempts per stage for transient failures; 1 disables retry.
	MaxAttempts         int
	RetryBaseDelay      time.Duration
	CompensationTimeout time.Duration
	// MaxInFlight caps concurrent submissions across all drafts; 0 is unlimited.
	MaxInFlight int64
}

func (c *Config) applyDefaults() {
	if c.StageTimeout <= 0 {
		c.StageTimeout = DefaultStageTimeout
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.CompensationTimeout <= 0 {
		c.CompensationTimeout = DefaultCompensationTimeout
	}
}

// Orchestrator runs submissions. It implements wizard.Submitter.
type Orchestrator struct {
	objects ObjectStore
	records RecordStore
	cfg     Config

	normalizer *media.Normalizer
	janitor    Janitor
	metrics    *observability.Metrics
	tracer     trace.Tracer
	logger     *zap.Logger
	sem        *semaphore.Weighted

	now   func() time.Time
	newID func() string
}

var _ wizard.Submitter = (*Orchestrator)(nil)

type Option func(*Orchestrator)

// WithNormalizer downsizes thumbnails before upload.
func WithNormalizer(n *media.Normalizer) Option {
	return func(o *Orchestrator) { o.normalizer = n }
}

func WithJanitor(j Janitor) Option {
	return func(o *Orchestrator) { o.janitor = j }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func New(objects ObjectStore, records RecordStore, cfg Config, opts ...Option) *Orchestrator {
	cfg.applyDefaults()
	o := &Orchestrator{
		objects: objects,
		records: records,
		cfg:     cfg,
		tracer:  noop.NewTracerProvider().Tracer(""),
		logger:  zap.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	if cfg.MaxInFlight > 0 {
		o.sem = semaphore.NewWeighted(cfg.MaxInFlight)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ObjectKey builds the storage key for an upload owned by owner.
func ObjectKey(owner, folder string, at time.Time, id, ext string) string {
	return fmt.Sprintf("%s/%s/%d-%s%s", owner, folder, at.UnixMilli(), id, ext)
}

type compensation struct {
	kind string
	key  string
}

// run is the state of one submission.
type run struct {
	o        *Orchestrator
	logger   *zap.Logger
	progress func(Progress)
	undo     []compensation
}

// Submit uploads the draft's video and thumbnail and persists its record,
// returning the record id. On failure it returns a *Failure after removing
// whatever was already uploaded.
func (o *Orchestrator) Submit(ctx context.Context, sess auth.Session, d wizard.Draft) (string, error) {
	owner := strings.TrimSpace(sess.UserID)
	if owner == "" {
		return "", ErrUnauthenticated
	}
	if err := wizard.ValidateAll(&d); err != nil {
		return "", err
	}

	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return "", &Failure{Stage: StageVideoUpload, Class: faults.ClassPermanent, Cause: err, Compensated: true}
		}
		defer o.sem.Release(1)
	}

	ctx, span := o.tracer.Start(ctx, "submission.Submit", trace.WithAttributes(attribute.String("owner", owner)))
	defer span.End()

	r := &run{
		o:        o,
		logger:   o.logger.With(zap.String("owner", owner)),
		progress: progressFrom(ctx),
	}

	now := o.now()
	video := d.Video.Candidate()
	thumb := d.Thumbnail.Candidate()
	rec := recordFromDraft(owner, d, now)
	rec.ID = o.newID()
	rec.VideoKey = ObjectKey(owner, "videos", now, o.newID(), video.Ext())
	rec.ThumbnailKey = ObjectKey(owner, "thumbnails", now, o.newID(), thumb.Ext())

	id, err := r.execute(ctx, rec, video, thumb)
	if err != nil {
		var f *Failure
		if errors.As(err, &f) {
			span.SetAttributes(attribute.String("failed_stage", f.Stage.String()))
			o.metrics.ObserveSubmission("failed", f.Stage.String())
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		return "", err
	}

	o.metrics.ObserveSubmission("succeeded", "")
	r.logger.Info("submission committed",
		zap.String("record_id", id),
		zap.String("video_key", rec.VideoKey),
		zap.String("thumbnail_key", rec.ThumbnailKey),
	)
	return id, nil
}

func (r *run) execute(ctx context.Context, rec *models.VideoRecord, video, thumb media.Candidate) (string, error) {
	err := r.stage(ctx, StageVideoUpload, func(ctx context.Context, _ int) error {
		return r.upload(ctx, StageVideoUpload, rec.VideoKey, video, nil)
	})
	if err != nil {
		return "", r.fail(ctx, StageVideoUpload, err)
	}
	r.undo = append(r.undo, compensation{kind: "video", key: rec.VideoKey})

	prepared := r.o.prepareThumbnail(thumb, r.logger)
	if prepared != nil {
		rec.ThumbnailContentType = prepared.ContentType
		rec.ThumbnailWidth = prepared.Width
		rec.ThumbnailHeight = prepared.Height
	}
	err = r.stage(ctx, StageThumbnailUpload, func(ctx context.Context, _ int) error {
		return r.upload(ctx, StageThumbnailUpload, rec.ThumbnailKey, thumb, prepared)
	})
	if err != nil {
		return "", r.fail(ctx, StageThumbnailUpload, err)
	}
	r.undo = append(r.undo, compensation{kind: "thumbnail", key: rec.ThumbnailKey})

	var id string
	err = r.stage(ctx, StageMetadataPersist, func(ctx context.Context, attempt int) error {
		got, err := r.o.records.InsertVideo(ctx, rec)
		// an earlier attempt may have committed before its response was lost
		if err != nil && attempt > 1 && errors.Is(err, models.ErrConflict) {
			got, err = rec.ID, nil
		}
		id = got
		return err
	})
	if err != nil {
		if r.committed(ctx, rec.ID, err) {
			return rec.ID, nil
		}
		return "", r.fail(ctx, StageMetadataPersist, err)
	}
	return id, nil
}

// committed reports whether a record whose last insert failed transiently
// was stored anyway. Compensating such a record would leave it pointing at
// deleted objects.
func (r *run) committed(ctx context.Context, id string, err error) bool {
	var sf *stageFailure
	if !errors.As(err, &sf) || sf.class != faults.ClassTransient {
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.o.cfg.CompensationTimeout)
	defer cancel()

	if _, getErr := r.o.records.GetVideo(ctx, id); getErr != nil {
		if !errors.Is(getErr, models.ErrNotFound) {
			r.logger.Warn("record lookup after failed insert", zap.String("record_id", id), zap.Error(getErr))
		}
		return false
	}
	r.logger.Warn("insert reported failure but the record exists", zap.String("record_id", id), zap.Error(sf.cause))
	return true
}

// stageFailure carries the classified cause of a failed stage.
type stageFailure struct {
	class faults.Class
	cause error
}

func (s *stageFailure) Error() string { return s.cause.Error() }
func (s *stageFailure) Unwrap() error { return s.cause }

// stage runs op under the per-stage timeout, retrying transient failures.
// A context cancelled before the stage starts fails it permanently.
func (r *run) stage(ctx context.Context, stage Stage, op func(ctx context.Context, attempt int) error) error {
	if err := ctx.Err(); err != nil {
		return &stageFailure{class: faults.ClassPermanent, cause: err}
	}

	ctx, span := r.o.tracer.Start(ctx, "submission."+stage.String())
	defer span.End()
	start := time.Now()

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		sctx, cancel := context.WithTimeout(ctx, r.o.cfg.StageTimeout)
		defer cancel()

		err := op(sctx, attempt)
		if err == nil {
			return struct{}{}, nil
		}
		if !faults.IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		r.logger.Warn("stage attempt failed",
			zap.String("stage", stage.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return struct{}{}, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.o.cfg.RetryBaseDelay
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.o.cfg.MaxAttempts)),
	)

	result := "ok"
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		class := faults.Classify(err)
		result = class.String()
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		err = &stageFailure{class: class, cause: err}
	}
	span.SetAttributes(attribute.Int("attempts", attempt))
	r.o.metrics.ObserveStage(stage.String(), result, time.Since(start))
	return err
}

// upload writes one object, reporting progress for stage. When prepared is
// set its bytes are uploaded instead of the staged file.
func (r *run) upload(ctx context.Context, stage Stage, key string, c media.Candidate, prepared *media.Thumbnail) error {
	var (
		src         io.Reader
		size        = c.Size
		contentType = c.ContentType
	)
	if prepared != nil {
		src = bytes.NewReader(prepared.Data)
		size = int64(len(prepared.Data))
		contentType = prepared.ContentType
	} else {
		f, err := c.Open()
		if err != nil {
			return faults.Permanent(fmt.Errorf("open staged %s: %w", c.Name, err))
		}
		defer f.Close()
		src = f
	}

	last := -1
	report := func(written, total int64) {
		if total <= 0 {
			return
		}
		pct := int(min(written*100/total, 100))
		if pct != last {
			last = pct
			r.progress(Progress{Stage: stage, Percent: pct})
		}
	}

	err := r.o.objects.Put(ctx, key, src, storage.PutOptions{
		Size:        size,
		ContentType: contentType,
		OnProgress:  report,
	})
	if err != nil {
		return err
	}
	if last != 100 {
		r.progress(Progress{Stage: stage, Percent: 100})
	}
	kind := "video"
	if stage == StageThumbnailUpload {
		kind = "thumbnail"
	}
	r.o.metrics.AddUploadedBytes(kind, size)
	return nil
}

// prepareThumbnail normalizes the thumbnail when a normalizer is set. Any
// failure falls back to uploading the original file.
func (o *Orchestrator) prepareThumbnail(c media.Candidate, logger *zap.Logger) *media.Thumbnail {
	if o.normalizer == nil {
		return nil
	}
	f, err := c.Open()
	if err != nil {
		logger.Warn("thumbnail open failed", zap.String("file", c.Name), zap.Error(err))
		return nil
	}
	defer f.Close()

	thumb, err := o.normalizer.Normalize(f, c.ContentType)
	if err != nil {
		logger.Warn("thumbnail normalization failed, uploading original", zap.String("file", c.Name), zap.Error(err))
		return nil
	}
	if thumb.Resized {
		logger.Debug("thumbnail downsized", zap.Int("width", thumb.Width), zap.Int("height", thumb.Height))
	}
	return thumb
}

// fail compensates in reverse order and builds the Failure.
func (r *run) fail(ctx context.Context, stage Stage, err error) error {
	class := faults.ClassPermanent
	cause := err
	var sf *stageFailure
	if errors.As(err, &sf) {
		class, cause = sf.class, sf.cause
	}

	r.logger.Error("submission stage failed",
		zap.String("stage", stage.String()),
		zap.String("class", class.String()),
		zap.Error(cause),
	)

	compErr := r.compensate(ctx)
	return &Failure{
		Stage:           stage,
		Class:           class,
		Cause:           cause,
		Compensated:     compErr == nil,
		CompensationErr: compErr,
	}
}

func (r *run) compensate(ctx context.Context) error {
	if len(r.undo) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.o.cfg.CompensationTimeout)
	defer cancel()

	var errs []error
	for _, c := range slices.Backward(r.undo) {
		if err := r.o.objects.Delete(ctx, c.key); err != nil {
			r.logger.Error("compensating delete failed", zap.String("key", c.key), zap.Error(err))
			r.o.metrics.ObserveCompensation(c.kind, "failed")
			if r.o.janitor != nil {
				r.o.janitor.Enqueue(c.key, err)
			}
			errs = append(errs, fmt.Errorf("delete %s: %w", c.key, err))
			continue
		}
		r.o.metrics.ObserveCompensation(c.kind, "ok")
		r.logger.Info("compensated upload", zap.String("kind", c.kind), zap.String("key", c.key))
	}
	r.undo = nil
	return errors.Join(errs...)
}

func recordFromDraft(owner string, d wizard.Draft, now time.Time) *models.VideoRecord {
	video := d.Video.Candidate()
	thumb := d.Thumbnail.Candidate()
	return &models.VideoRecord{
		OwnerID:              owner,
		Title:                strings.TrimSpace(d.Title),
		Description:          strings.TrimSpace(d.Description),
		Category:             string(d.Category),
		Tags:                 slices.Clone(d.Tags),
		DurationSeconds:      d.Duration,
		GuestCount:           d.GuestCount,
		Price:                d.Price,
		EventDate:            d.EventDate,
		Venue:                d.Venue,
		Location:             d.Location,
		CoupleNames:          d.CoupleNames,
		BrideName:            d.BrideName,
		GroomName:            d.GroomName,
		Photographer:         d.Photographer,
		Videographer:         d.Videographer,
		Planner:              d.Planner,
		Florist:              d.Florist,
		Caterer:              d.Caterer,
		MusicBy:              d.MusicBy,
		DressDesigner:        d.DressDesigner,
		Officiant:            d.Officiant,
		Theme:                d.Theme,
		IsPublic:             d.IsPublic,
		AllowComments:        d.AllowComments,
		AllowDownloads:       d.AllowDownloads,
		VideoContentType:     video.ContentType,
		VideoSize:            video.Size,
		ThumbnailContentType: thumb.ContentType,
		CreatedAt:            now.UTC(),
	}
}
