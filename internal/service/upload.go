package service

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/PaulBabatuyi/WeddingHub/internal/media"
)

var errMissingFile = errors.New(`multipart field "file" is required`)

// stageUpload streams the "file" part of a multipart request to the staging
// directory. At most one byte past the size ceiling is kept so the validator
// can still report the file as too large.
func (s *Server) stageUpload(r *http.Request) (*media.Candidate, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("read multipart body: %w", err)
	}

	limit := s.validator.Policy().MaxBytes
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errMissingFile
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart part: %w", err)
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		name := filepath.Base(part.FileName())
		f, err := os.CreateTemp(s.stagingDir, "staged-*"+strings.ToLower(filepath.Ext(name)))
		if err != nil {
			part.Close()
			return nil, fmt.Errorf("create staged file: %w", err)
		}

		n, copyErr := io.Copy(f, io.LimitReader(part, limit+1))
		closeErr := f.Close()
		part.Close()
		if err := errors.Join(copyErr, closeErr); err != nil {
			removeStaged(f.Name())
			return nil, fmt.Errorf("stage upload: %w", err)
		}

		return &media.Candidate{
			Name:        name,
			Path:        f.Name(),
			Size:        n,
			ContentType: part.Header.Get("Content-Type"),
		}, nil
	}
}
