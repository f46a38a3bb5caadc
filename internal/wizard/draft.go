// Package wizard holds the multi-step submission form: the draft being
// assembled, the active step, and the per-step required-field rules.
package wizard

import (
	"slices"
	"strings"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/media"
)

// Step is a stage of the submission wizard.
type Step int

const (
	StepMediaUpload Step = iota
	StepBasicInfo
	StepWeddingDetails
	StepAdditionalInfo
)

// Steps lists every step in order.
var Steps = []Step{StepMediaUpload, StepBasicInfo, StepWeddingDetails, StepAdditionalInfo}

func (s Step) String() string {
	switch s {
	case StepMediaUpload:
		return "media_upload"
	case StepBasicInfo:
		return "basic_info"
	case StepWeddingDetails:
		return "wedding_details"
	case StepAdditionalInfo:
		return "additional_info"
	}
	return "unknown"
}

// Terminal reports whether s is the last step.
func (s Step) Terminal() bool { return s == StepAdditionalInfo }

// Category is a wedding style from a fixed set.
type Category string

const (
	CategoryTraditional Category = "Traditional"
	CategoryModern      Category = "Modern"
	CategoryDestination Category = "Destination"
	CategoryBeach       Category = "Beach"
	CategoryGarden      Category = "Garden"
	CategoryRustic      Category = "Rustic"
	CategoryVintage     Category = "Vintage"
	CategoryReligious   Category = "Religious"
	CategoryCultural    Category = "Cultural"
	CategoryElopement   Category = "Elopement"
	CategoryOther       Category = "Other"
)

var Categories = []Category{
	CategoryTraditional, CategoryModern, CategoryDestination, CategoryBeach,
	CategoryGarden, CategoryRustic, CategoryVintage, CategoryReligious,
	CategoryCultural, CategoryElopement, CategoryOther,
}

// ParseCategory matches s case-insensitively against the fixed set.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// Draft is an in-progress, not yet persisted submission.
type Draft struct {
	Title       string
	Description string
	Category    Category
	Tags        []string
	TagInput    string

	Duration   *int // seconds
	GuestCount *int
	Price      *float64
	EventDate  *time.Time

	Venue         string
	Location      string
	CoupleNames   string
	BrideName     string
	GroomName     string
	Photographer  string
	Videographer  string
	Planner       string
	Florist       string
	Caterer       string
	MusicBy       string
	DressDesigner string
	Officiant     string
	Theme         string

	IsPublic       bool
	AllowComments  bool
	AllowDownloads bool

	Video     *media.Accepted
	Thumbnail *media.Accepted
}

// NewDraft returns an empty draft with the default visibility flags.
func NewDraft() Draft {
	return Draft{
		IsPublic:      true,
		AllowComments: true,
	}
}

// Clone returns a deep copy so callers can read a snapshot without sharing
// the form's slices and pointers.
func (d Draft) Clone() Draft {
	c := d
	c.Tags = slices.Clone(d.Tags)
	c.Duration = clonePtr(d.Duration)
	c.GuestCount = clonePtr(d.GuestCount)
	c.Price = clonePtr(d.Price)
	c.EventDate = clonePtr(d.EventDate)
	c.Video = clonePtr(d.Video)
	c.Thumbnail = clonePtr(d.Thumbnail)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
