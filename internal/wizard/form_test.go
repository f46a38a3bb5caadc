package wizard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/auth"
	"github.com/PaulBabatuyi/WeddingHub/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSession = auth.Session{Token: "tok", UserID: "user-1"}

type recordingSubmitter struct {
	mu      sync.Mutex
	calls   int
	drafts  []Draft
	err     error
	release chan struct{}
	entered chan struct{}
}

func (s *recordingSubmitter) Submit(ctx context.Context, sess auth.Session, d Draft) (string, error) {
	s.mu.Lock()
	s.calls++
	s.drafts = append(s.drafts, d)
	s.mu.Unlock()
	if s.entered != nil {
		close(s.entered)
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return "", s.err
	}
	return "rec-1", nil
}

type fixedProber struct {
	d   time.Duration
	err error
}

func (p fixedProber) Probe(ctx context.Context, path string) (time.Duration, error) {
	return p.d, p.err
}

func stagedFile(t *testing.T, name, contentType string, size int) *media.Candidate {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o644))
	return &media.Candidate{Name: name, Path: p, Size: int64(size), ContentType: contentType}
}

func newTestForm(t *testing.T, sub Submitter, opts ...Option) *Form {
	t.Helper()
	return NewForm(testSession, media.NewValidator(media.DefaultPolicy()), sub, opts...)
}

// fill completes every required field.
func fill(t *testing.T, f *Form) {
	t.Helper()
	require.NoError(t, f.AttachVideo(context.Background(), stagedFile(t, "v.mp4", "video/mp4", 128)))
	require.NoError(t, f.AttachThumbnail(stagedFile(t, "t.png", "image/png", 16)))
	for field, value := range map[Field]string{
		FieldTitle:       "Our wedding",
		FieldDescription: "Vows at sunset",
		FieldCategory:    "Beach",
		FieldCoupleNames: "Ana & Rui",
		FieldEventDate:   "2024-06-01",
		FieldLocation:    "Algarve",
	} {
		require.NoError(t, f.Update(field, value))
	}
}

func advanceTo(t *testing.T, f *Form, step Step) {
	t.Helper()
	for f.Step() < step {
		_, err := f.Advance(context.Background())
		require.NoError(t, err)
	}
}

func TestUpdateCoercion(t *testing.T) {
	f := newTestForm(t, nil)

	require.NoError(t, f.Update(FieldGuestCount, " 120 "))
	require.NoError(t, f.Update(FieldPrice, "2500.50"))
	require.NoError(t, f.Update(FieldEventDate, "2024-06-01"))
	require.NoError(t, f.Update(FieldAllowDownloads, "on"))
	require.NoError(t, f.Update(FieldIsPublic, "false"))
	require.NoError(t, f.Update(FieldCategory, "rustic"))
	require.NoError(t, f.Update(FieldVenue, "  Quinta  "))

	d := f.Draft()
	require.NotNil(t, d.GuestCount)
	assert.Equal(t, 120, *d.GuestCount)
	require.NotNil(t, d.Price)
	assert.InDelta(t, 2500.5, *d.Price, 1e-9)
	require.NotNil(t, d.EventDate)
	assert.Equal(t, time.June, d.EventDate.Month())
	assert.True(t, d.AllowDownloads)
	assert.False(t, d.IsPublic)
	assert.Equal(t, CategoryRustic, d.Category)
	assert.Equal(t, "  Quinta  ", d.Venue, "text is stored raw")

	// empty numeric input clears the value
	require.NoError(t, f.Update(FieldGuestCount, ""))
	assert.Nil(t, f.Draft().GuestCount)
}

func TestUpdateRejectsBadInput(t *testing.T) {
	f := newTestForm(t, nil)
	require.NoError(t, f.Update(FieldGuestCount, "50"))

	tests := []struct {
		field Field
		value string
	}{
		{FieldGuestCount, "fifty"},
		{FieldGuestCount, "-1"},
		{FieldDuration, "1.5"},
		{FieldPrice, "cheap"},
		{FieldEventDate, "01/06/2024"},
		{FieldCategory, "Underwater"},
		{FieldIsPublic, "maybe"},
	}
	for _, tt := range tests {
		t.Run(string(tt.field)+"="+tt.value, func(t *testing.T) {
			var ferr *FieldError
			require.ErrorAs(t, f.Update(tt.field, tt.value), &ferr)
			assert.Equal(t, tt.field, ferr.Field)
		})
	}

	assert.Equal(t, 50, *f.Draft().GuestCount, "failed updates leave the draft unchanged")
	assert.ErrorIs(t, f.Update(Field("colour"), "blue"), ErrUnknownField)
}

func TestAdvanceRuleOrder(t *testing.T) {
	f := newTestForm(t, nil)
	ctx := context.Background()

	expectRule := func(rule Rule) {
		t.Helper()
		before := f.Step()
		_, err := f.Advance(ctx)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, rule, verr.Rule)
		assert.Equal(t, before, f.Step())
	}

	expectRule(RuleVideoRequired)
	require.NoError(t, f.AttachVideo(ctx, stagedFile(t, "v.mp4", "video/mp4", 10)))
	expectRule(RuleThumbnailRequired)
	require.NoError(t, f.AttachThumbnail(stagedFile(t, "t.jpg", "image/jpeg", 10)))

	out, err := f.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepBasicInfo, out.Step)

	// description alone does not satisfy the title rule
	require.NoError(t, f.Update(FieldDescription, "desc"))
	expectRule(RuleTitleRequired)
	require.NoError(t, f.Update(FieldTitle, "   "))
	expectRule(RuleTitleRequired)
	require.NoError(t, f.Update(FieldTitle, "Title"))
	expectRule(RuleCategoryRequired)
	require.NoError(t, f.Update(FieldCategory, "Other"))
	advanceTo(t, f, StepWeddingDetails)

	expectRule(RuleCoupleNamesRequired)
	require.NoError(t, f.Update(FieldCoupleNames, "A & B"))
	expectRule(RuleEventDateRequired)
	require.NoError(t, f.Update(FieldEventDate, "2024-01-01"))
	expectRule(RuleLocationRequired)
	require.NoError(t, f.Update(FieldLocation, "Porto"))
	advanceTo(t, f, StepAdditionalInfo)
}

func TestRetreat(t *testing.T) {
	f := newTestForm(t, nil)
	assert.Equal(t, StepMediaUpload, f.Retreat())
	assert.Equal(t, StepMediaUpload, f.Retreat())

	fill(t, f)
	advanceTo(t, f, StepWeddingDetails)

	// retreat never validates
	require.NoError(t, f.Update(FieldTitle, ""))
	assert.Equal(t, StepBasicInfo, f.Retreat())
	assert.Equal(t, StepMediaUpload, f.Retreat())
	assert.Equal(t, "", f.Draft().Title)
}

func TestTags(t *testing.T) {
	f := newTestForm(t, nil)

	require.NoError(t, f.AddTag("beach"))
	require.NoError(t, f.AddTag("  sunset  "))
	require.NoError(t, f.AddTag("beach"))
	require.NoError(t, f.AddTag("   "))
	assert.Equal(t, []string{"beach", "sunset"}, f.Draft().Tags)

	require.NoError(t, f.SetTagInput("vintage"))
	require.NoError(t, f.CommitTagInput())
	d := f.Draft()
	assert.Equal(t, []string{"beach", "sunset", "vintage"}, d.Tags)
	assert.Empty(t, d.TagInput)

	removed, err := f.RemoveTag("sunset")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = f.RemoveTag("sunset")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, []string{"beach", "vintage"}, f.Draft().Tags)
}

func TestAttachRejectedLeavesSlot(t *testing.T) {
	f := newTestForm(t, nil)
	ctx := context.Background()

	require.NoError(t, f.AttachVideo(ctx, stagedFile(t, "a.mp4", "video/mp4", 10)))

	var rej *media.Rejection
	require.ErrorAs(t, f.AttachVideo(ctx, stagedFile(t, "b.avi", "video/x-msvideo", 10)), &rej)
	assert.Equal(t, media.ReasonUnsupportedType, rej.Reason)
	require.ErrorAs(t, f.AttachVideo(ctx, stagedFile(t, "c.mp4", "video/mp4", 0)), &rej)
	assert.Equal(t, media.ReasonEmpty, rej.Reason)

	assert.Equal(t, "a.mp4", f.Draft().Video.Candidate().Name)

	prev, err := f.DetachVideo()
	require.NoError(t, err)
	assert.Equal(t, "a.mp4", prev.Candidate().Name)
	assert.Nil(t, f.Draft().Video)
}

func TestAttachVideoProbesDuration(t *testing.T) {
	f := newTestForm(t, nil, WithProber(fixedProber{d: 93600 * time.Millisecond}))
	require.NoError(t, f.AttachVideo(context.Background(), stagedFile(t, "a.mp4", "video/mp4", 10)))
	require.NotNil(t, f.Draft().Duration)
	assert.Equal(t, 94, *f.Draft().Duration)

	g := newTestForm(t, nil, WithProber(fixedProber{err: errors.New("ffprobe missing")}))
	require.NoError(t, g.AttachVideo(context.Background(), stagedFile(t, "a.mp4", "video/mp4", 10)))
	assert.Nil(t, g.Draft().Duration)
}

func TestSubmitSuccessResets(t *testing.T) {
	sub := &recordingSubmitter{}
	f := newTestForm(t, sub)
	fill(t, f)
	require.NoError(t, f.AddTag("beach"))
	advanceTo(t, f, StepAdditionalInfo)

	out, err := f.Advance(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Submitted)
	assert.Equal(t, "rec-1", out.RecordID)
	assert.Equal(t, StepMediaUpload, f.Step())
	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, []string{"beach"}, sub.drafts[0].Tags)

	d := f.Draft()
	assert.Empty(t, d.Title)
	assert.Nil(t, d.Video)
	assert.True(t, d.IsPublic)
}

func TestSubmitFailureKeepsState(t *testing.T) {
	cause := errors.New("upload failed")
	sub := &recordingSubmitter{err: cause}
	f := newTestForm(t, sub)
	fill(t, f)
	advanceTo(t, f, StepAdditionalInfo)

	_, err := f.Advance(context.Background())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StepAdditionalInfo, f.Step())
	assert.Equal(t, "Our wedding", f.Draft().Title)
	assert.NotNil(t, f.Draft().Video)
	assert.False(t, f.Busy())

	// retry resubmits the same draft
	sub.err = nil
	out, err := f.Advance(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Submitted)
	assert.Equal(t, 2, sub.calls)
}

func TestSubmitRevalidatesEarlierSteps(t *testing.T) {
	sub := &recordingSubmitter{}
	f := newTestForm(t, sub)
	fill(t, f)
	advanceTo(t, f, StepAdditionalInfo)

	_, err := f.DetachThumbnail()
	require.NoError(t, err)

	_, err = f.Advance(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, RuleThumbnailRequired, verr.Rule)
	assert.Equal(t, StepMediaUpload, verr.Step)
	assert.Equal(t, StepAdditionalInfo, f.Step())
	assert.Zero(t, sub.calls)
}

func TestSubmitOnceWhileBusy(t *testing.T) {
	sub := &recordingSubmitter{release: make(chan struct{}), entered: make(chan struct{})}
	f := newTestForm(t, sub)
	fill(t, f)
	advanceTo(t, f, StepAdditionalInfo)

	done := make(chan error, 1)
	go func() {
		_, err := f.Advance(context.Background())
		done <- err
	}()
	<-sub.entered

	assert.True(t, f.Busy())
	_, err := f.Advance(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.ErrorIs(t, f.Update(FieldTitle, "changed"), ErrSubmissionInFlight)
	assert.ErrorIs(t, f.AddTag("late"), ErrSubmissionInFlight)
	assert.ErrorIs(t, f.Reset(), ErrSubmissionInFlight)
	assert.Equal(t, StepAdditionalInfo, f.Retreat())

	close(sub.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, sub.calls)
	assert.False(t, f.Busy())
}

func TestAdvanceWithoutSubmitter(t *testing.T) {
	f := newTestForm(t, nil)
	fill(t, f)
	advanceTo(t, f, StepAdditionalInfo)

	_, err := f.Advance(context.Background())
	assert.ErrorIs(t, err, ErrNoSubmitter)
}

func TestDraftSnapshotIsolated(t *testing.T) {
	f := newTestForm(t, nil)
	require.NoError(t, f.AddTag("beach"))
	d := f.Draft()
	d.Tags[0] = "mutated"
	assert.Equal(t, []string{"beach"}, f.Draft().Tags)
}
