package wizard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field is a form input name.
type Field string

const (
	FieldTitle          Field = "title"
	FieldDescription    Field = "description"
	FieldCategory       Field = "category"
	FieldDuration       Field = "duration"
	FieldGuestCount     Field = "guest_count"
	FieldPrice          Field = "price"
	FieldEventDate      Field = "event_date"
	FieldVenue          Field = "venue"
	FieldLocation       Field = "location"
	FieldCoupleNames    Field = "couple_names"
	FieldBrideName      Field = "bride_name"
	FieldGroomName      Field = "groom_name"
	FieldPhotographer   Field = "photographer"
	FieldVideographer   Field = "videographer"
	FieldPlanner        Field = "planner"
	FieldFlorist        Field = "florist"
	FieldCaterer        Field = "caterer"
	FieldMusicBy        Field = "music_by"
	FieldDressDesigner  Field = "dress_designer"
	FieldOfficiant      Field = "officiant"
	FieldTheme          Field = "theme"
	FieldIsPublic       Field = "is_public"
	FieldAllowComments  Field = "allow_comments"
	FieldAllowDownloads Field = "allow_downloads"
	FieldTagInput       Field = "tag_input"
)

// DateLayout is the accepted event date format.
const DateLayout = "2006-01-02"

var ErrUnknownField = errors.New("unknown field")

// FieldError is returned when a value cannot be coerced to the field's type.
type FieldError struct {
	Field Field
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %v", e.Value, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func (d *Draft) text(f Field) *string {
	switch f {
	case FieldTitle:
		return &d.Title
	case FieldDescription:
		return &d.Description
	case FieldVenue:
		return &d.Venue
	case FieldLocation:
		return &d.Location
	case FieldCoupleNames:
		return &d.CoupleNames
	case FieldBrideName:
		return &d.BrideName
	case FieldGroomName:
		return &d.GroomName
	case FieldPhotographer:
		return &d.Photographer
	case FieldVideographer:
		return &d.Videographer
	case FieldPlanner:
		return &d.Planner
	case FieldFlorist:
		return &d.Florist
	case FieldCaterer:
		return &d.Caterer
	case FieldMusicBy:
		return &d.MusicBy
	case FieldDressDesigner:
		return &d.DressDesigner
	case FieldOfficiant:
		return &d.Officiant
	case FieldTheme:
		return &d.Theme
	case FieldTagInput:
		return &d.TagInput
	}
	return nil
}

func (d *Draft) flag(f Field) *bool {
	switch f {
	case FieldIsPublic:
		return &d.IsPublic
	case FieldAllowComments:
		return &d.AllowComments
	case FieldAllowDownloads:
		return &d.AllowDownloads
	}
	return nil
}

func (d *Draft) integer(f Field) **int {
	switch f {
	case FieldDuration:
		return &d.Duration
	case FieldGuestCount:
		return &d.GuestCount
	}
	return nil
}

// set applies a raw input value to the draft with per-field coercion.
// On error the draft is left untouched.
func (d *Draft) set(f Field, value string) error {
	if p := d.text(f); p != nil {
		*p = value
		return nil
	}

	if p := d.flag(f); p != nil {
		b, err := parseCheckbox(value)
		if err != nil {
			return &FieldError{Field: f, Value: value, Err: err}
		}
		*p = b
		return nil
	}

	trimmed := strings.TrimSpace(value)

	if p := d.integer(f); p != nil {
		if trimmed == "" {
			*p = nil
			return nil
		}
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return &FieldError{Field: f, Value: value, Err: err}
		}
		if n < 0 {
			return &FieldError{Field: f, Value: value, Err: errors.New("must not be negative")}
		}
		*p = &n
		return nil
	}

	switch f {
	case FieldPrice:
		if trimmed == "" {
			d.Price = nil
			return nil
		}
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return &FieldError{Field: f, Value: value, Err: err}
		}
		if v < 0 {
			return &FieldError{Field: f, Value: value, Err: errors.New("must not be negative")}
		}
		d.Price = &v
		return nil

	case FieldEventDate:
		if trimmed == "" {
			d.EventDate = nil
			return nil
		}
		t, err := time.Parse(DateLayout, trimmed)
		if err != nil {
			return &FieldError{Field: f, Value: value, Err: err}
		}
		d.EventDate = &t
		return nil

	case FieldCategory:
		if trimmed == "" {
			d.Category = ""
			return nil
		}
		c, ok := ParseCategory(trimmed)
		if !ok {
			return &FieldError{Field: f, Value: value, Err: errors.New("not a known category")}
		}
		d.Category = c
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnknownField, f)
}

func parseCheckbox(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes", "checked":
		return true, nil
	case "off", "no", "":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(v))
}
