// Package storage is the object store holding uploaded videos and
// thumbnails.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PaulBabatuyi/WeddingHub/internal/faults"
)

var ErrInvalidKey = errors.New("invalid object key")

// ProgressFunc receives the number of bytes written so far and the expected
// total (0 when unknown).
type ProgressFunc func(written, total int64)

type PutOptions struct {
	Size        int64
	ContentType string
	OnProgress  ProgressFunc
}

// ObjectStore defines how we store media objects.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) error
	Open(key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
}

// FilesystemStorage stores objects on local disk under basePath, one file
// per key.
type FilesystemStorage struct {
	basePath string // e.g., "./data/files"
}

func NewFilesystemStorage(basePath string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FilesystemStorage{basePath: basePath}, nil
}

func (fs *FilesystemStorage) BasePath() string { return fs.basePath }

func (fs *FilesystemStorage) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(fs.basePath, filepath.FromSlash(clean)), nil
}

// Put writes r to key. The data goes to a temporary file that is renamed
// into place only after the full copy succeeds, so an interrupted transfer
// never leaves a committed object.
func (fs *FilesystemStorage) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) error {
	dst, err := fs.resolve(key)
	if err != nil {
		return faults.Permanent(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	src := &progressReader{ctx: ctx, r: r, total: opts.Size, fn: opts.OnProgress}
	if _, err := io.Copy(tmp, src); err != nil {
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync object %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("commit object %s: %w", key, err)
	}
	committed = true
	return nil
}

// Open returns a reader for key and the object size.
func (fs *FilesystemStorage) Open(key string) (io.ReadCloser, int64, error) {
	p, err := fs.resolve(key)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Delete removes key. Deleting a missing object is not an error.
func (fs *FilesystemStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := fs.resolve(key)
	if err != nil {
		return faults.Permanent(err)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

type progressReader struct {
	ctx     context.Context
	r       io.Reader
	total   int64
	written int64
	fn      ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += int64(n)
		if p.fn != nil {
			p.fn(p.written, p.total)
		}
	}
	return n, err
}
