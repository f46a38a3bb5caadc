package media

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// DetectFile sniffs the file at path and returns the first allowed type the
// content matches, or "" when none match.
func DetectFile(path string, allowed []string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}

	// Walk up the type hierarchy so e.g. an "isom" brand still counts as mp4.
	for m := mtype; m != nil; m = m.Parent() {
		for _, t := range allowed {
			if m.Is(t) {
				return t, nil
			}
		}
	}
	return "", nil
}
