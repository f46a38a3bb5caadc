package submission

import (
	"context"
	"fmt"

	"github.com/PaulBabatuyi/WeddingHub/internal/faults"
)

// Stage is one step of the submission pipeline.
type Stage int

const (
	StageVideoUpload Stage = iota
	StageThumbnailUpload
	StageMetadataPersist
)

func (s Stage) String() string {
	switch s {
	case StageVideoUpload:
		return "video_upload"
	case StageThumbnailUpload:
		return "thumbnail_upload"
	case StageMetadataPersist:
		return "metadata_persist"
	}
	return "unknown"
}

// Failure describes a submission that did not commit. Compensated is true
// when every object uploaded before the failure was removed again.
type Failure struct {
	Stage           Stage
	Class           faults.Class
	Cause           error
	Compensated     bool
	CompensationErr error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("submission failed at %s (%s): %v", f.Stage, f.Class, f.Cause)
	if f.CompensationErr != nil {
		msg += fmt.Sprintf("; cleanup incomplete: %v", f.CompensationErr)
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Cause }

// Transient reports whether resubmitting the same draft may succeed.
func (f *Failure) Transient() bool { return f.Class == faults.ClassTransient }

// Progress reports how much of an upload stage has been transferred.
type Progress struct {
	Stage   Stage
	Percent int
}

type progressKey struct{}

// WithProgress returns a context that delivers upload progress for the
// submission run with it. fn is called from the submitting goroutine.
func WithProgress(ctx context.Context, fn func(Progress)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

func progressFrom(ctx context.Context) func(Progress) {
	if fn, ok := ctx.Value(progressKey{}).(func(Progress)); ok && fn != nil {
		return fn
	}
	return func(Progress) {}
}
