package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
)

// DefaultThumbnailWidth is the widest thumbnail stored as-is.
const DefaultThumbnailWidth = 1280

// Thumbnail is an image ready to upload.
type Thumbnail struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	Resized     bool
}

// Normalizer downsizes oversized thumbnails before upload.
type Normalizer struct {
	maxWidth int
}

func NewNormalizer(maxWidth int) *Normalizer {
	if maxWidth <= 0 {
		maxWidth = DefaultThumbnailWidth
	}
	return &Normalizer{maxWidth: maxWidth}
}

// Normalize reads an image and returns it unchanged when it already fits,
// or resized to the max width in its original format.
func (n *Normalizer) Normalize(r io.Reader, contentType string) (*Thumbnail, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}

	contentType = normalizeType(contentType)
	if cfg.Width <= n.maxWidth {
		return &Thumbnail{Data: raw, ContentType: contentType, Width: cfg.Width, Height: cfg.Height}, nil
	}

	origImg, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	bounds := origImg.Bounds()
	origWidth := bounds.Max.X - bounds.Min.X
	origHeight := bounds.Max.Y - bounds.Min.Y
	newHeight := (origHeight * n.maxWidth) / origWidth
	if newHeight < 1 {
		newHeight = 1
	}

	thumb := imaging.Resize(origImg, n.maxWidth, newHeight, imaging.Lanczos)

	format := imaging.JPEG
	if contentType == "image/png" {
		format = imaging.PNG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	return &Thumbnail{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Width:       n.maxWidth,
		Height:      newHeight,
		Resized:     true,
	}, nil
}
