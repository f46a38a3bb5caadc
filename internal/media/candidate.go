package media

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Kind is the role a file candidate plays in a submission.
type Kind int

const (
	KindVideo Kind = iota
	KindImage
)

func (k Kind) String() string {
	if k == KindImage {
		return "image"
	}
	return "video"
}

// KindOf derives the kind from a MIME type. The second result is false when
// the type is neither video nor image.
func KindOf(contentType string) (Kind, bool) {
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return KindVideo, true
	case strings.HasPrefix(contentType, "image/"):
		return KindImage, true
	}
	return KindVideo, false
}

// Candidate is a file the user selected, staged on local disk.
type Candidate struct {
	Name        string
	Path        string
	Size        int64
	ContentType string
}

// Open opens the staged file for reading.
func (c Candidate) Open() (io.ReadCloser, error) {
	return os.Open(c.Path)
}

// Ext returns the extension to use for the stored object, including the dot.
func (c Candidate) Ext() string {
	if ext := strings.ToLower(filepath.Ext(c.Name)); ext != "" {
		return ext
	}
	switch normalizeType(c.ContentType) {
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	return ""
}

// Accepted is a candidate approved by a Validator. Only the validator can
// produce one, so holding an Accepted is proof the policy was checked.
type Accepted struct {
	candidate Candidate
	kind      Kind
}

func (a Accepted) Candidate() Candidate { return a.candidate }

func (a Accepted) Kind() Kind { return a.kind }

func normalizeType(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
