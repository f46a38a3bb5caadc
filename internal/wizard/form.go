package wizard

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/PaulBabatuyi/WeddingHub/internal/auth"
	"github.com/PaulBabatuyi/WeddingHub/internal/media"
	"go.uber.org/zap"
)

var (
	// ErrSubmissionInFlight is returned for any mutation while a submit is outstanding.
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrNoSubmitter        = errors.New("form has no submitter")
)

// Submitter commits a fully validated draft and returns the persisted record id.
type Submitter interface {
	Submit(ctx context.Context, sess auth.Session, d Draft) (string, error)
}

// Outcome is the result of a successful Advance.
type Outcome struct {
	Step      Step
	Submitted bool
	RecordID  string
}

// Form is the wizard state for one draft. It is safe for concurrent use,
// but at most one submission runs at a time.
type Form struct {
	mu    sync.Mutex
	draft Draft
	step  Step
	busy  bool

	session   auth.Session
	validator *media.Validator
	prober    media.Prober
	submitter Submitter
	logger    *zap.Logger
}

type Option func(*Form)

// WithProber derives video duration on attach.
func WithProber(p media.Prober) Option {
	return func(f *Form) { f.prober = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Form) { f.logger = l }
}

func NewForm(sess auth.Session, validator *media.Validator, submitter Submitter, opts ...Option) *Form {
	f := &Form{
		draft:     NewDraft(),
		step:      StepMediaUpload,
		session:   sess,
		validator: validator,
		submitter: submitter,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Session returns the session the form was opened with.
func (f *Form) Session() auth.Session { return f.session }

// Draft returns a snapshot of the current draft.
func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.Clone()
}

func (f *Form) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Busy reports whether a submission is in flight.
func (f *Form) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// Update coerces value for field and stores it.
func (f *Form) Update(field Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return ErrSubmissionInFlight
	}
	return f.draft.set(field, value)
}

// SetTagInput replaces the tag input buffer.
func (f *Form) SetTagInput(text string) error {
	return f.Update(FieldTagInput, text)
}

// AddTag appends the trimmed text as a tag and clears the tag input buffer.
// Empty text is ignored and tags already present are not added twice.
func (f *Form) AddTag(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return ErrSubmissionInFlight
	}

	tag := strings.TrimSpace(text)
	if tag == "" {
		return nil
	}
	if !slices.Contains(f.draft.Tags, tag) {
		f.draft.Tags = append(f.draft.Tags, tag)
	}
	f.draft.TagInput = ""
	return nil
}

// CommitTagInput adds the buffered tag input, as pressing Enter does.
func (f *Form) CommitTagInput() error {
	f.mu.Lock()
	text := f.draft.TagInput
	f.mu.Unlock()
	return f.AddTag(text)
}

// RemoveTag removes the tag equal to text. It returns false when no tag matched.
func (f *Form) RemoveTag(text string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return false, ErrSubmissionInFlight
	}

	i := slices.Index(f.draft.Tags, text)
	if i < 0 {
		return false, nil
	}
	f.draft.Tags = slices.Delete(f.draft.Tags, i, i+1)
	return true, nil
}

// AttachVideo validates c and, on acceptance, stores it in the video slot.
// A rejected candidate leaves the slot unchanged. Duration probing failures
// are logged and otherwise ignored.
func (f *Form) AttachVideo(ctx context.Context, c *media.Candidate) error {
	if f.Busy() {
		return ErrSubmissionInFlight
	}

	accepted, err := f.validator.Validate(c, media.KindVideo)
	if err != nil {
		return err
	}

	var duration *int
	if f.prober != nil && c.Path != "" {
		d, err := f.prober.Probe(ctx, c.Path)
		if err != nil {
			f.logger.Warn("duration probe failed", zap.String("file", c.Name), zap.Error(err))
		} else {
			secs := int(math.Round(d.Seconds()))
			duration = &secs
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return ErrSubmissionInFlight
	}
	f.draft.Video = accepted
	if duration != nil {
		f.draft.Duration = duration
	}
	return nil
}

// AttachThumbnail validates c as an image and stores it in the thumbnail slot.
func (f *Form) AttachThumbnail(c *media.Candidate) error {
	accepted, err := f.validator.Validate(c, media.KindImage)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return ErrSubmissionInFlight
	}
	f.draft.Thumbnail = accepted
	return nil
}

// DetachVideo clears the video slot and returns what was there.
func (f *Form) DetachVideo() (*media.Accepted, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return nil, ErrSubmissionInFlight
	}
	prev := f.draft.Video
	f.draft.Video = nil
	return prev, nil
}

// DetachThumbnail clears the thumbnail slot and returns what was there.
func (f *Form) DetachThumbnail() (*media.Accepted, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return nil, ErrSubmissionInFlight
	}
	prev := f.draft.Thumbnail
	f.draft.Thumbnail = nil
	return prev, nil
}

// Retreat moves back one step. It never validates and is a no-op at the
// first step.
func (f *Form) Retreat() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy || f.step == StepMediaUpload {
		return f.step
	}
	f.step--
	return f.step
}

// Advance validates the current step and moves forward. From the terminal
// step it re-validates the whole draft and submits it instead; a successful
// submission resets the form, a failed one leaves it intact for retry.
func (f *Form) Advance(ctx context.Context) (Outcome, error) {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return Outcome{}, ErrSubmissionInFlight
	}

	if err := ValidateStep(&f.draft, f.step); err != nil {
		step := f.step
		f.mu.Unlock()
		return Outcome{Step: step}, err
	}

	if !f.step.Terminal() {
		f.step++
		step := f.step
		f.mu.Unlock()
		return Outcome{Step: step}, nil
	}

	if err := ValidateAll(&f.draft); err != nil {
		f.mu.Unlock()
		return Outcome{Step: f.step}, err
	}
	if f.submitter == nil {
		f.mu.Unlock()
		return Outcome{Step: f.step}, ErrNoSubmitter
	}

	f.busy = true
	snapshot := f.draft.Clone()
	f.mu.Unlock()

	recordID, err := f.submitter.Submit(ctx, f.session, snapshot)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if err != nil {
		return Outcome{Step: f.step}, err
	}

	f.draft = NewDraft()
	f.step = StepMediaUpload
	return Outcome{Step: f.step, Submitted: true, RecordID: recordID}, nil
}

// Reset discards the draft and returns to the first step.
func (f *Form) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return ErrSubmissionInFlight
	}
	f.draft = NewDraft()
	f.step = StepMediaUpload
	return nil
}
