package avatar

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

const (
	// DefaultSize is the edge length of the square avatar box.
	DefaultSize = 250
	// DefaultMaxPixels bounds the decoded raster of an upload (4096x4096).
	DefaultMaxPixels int64 = 4096 * 4096
)

// ErrUnsupportedFormat is returned when the input cannot be decoded as an image.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Transcoder scales uploads to cover a fixed box and re-encodes them as PNG.
type Transcoder struct {
	width     int
	height    int
	maxPixels int64
}

// NewTranscoder builds a transcoder for a width x height box that refuses
// inputs larger than maxPixels. Non-positive values fall back to the defaults.
func NewTranscoder(width, height int, maxPixels int64) *Transcoder {
	if width <= 0 {
		width = DefaultSize
	}
	if height <= 0 {
		height = DefaultSize
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Transcoder{width: width, height: height, maxPixels: maxPixels}
}

// Transcode decodes raw, fills the target box keeping the aspect ratio
// (excess is cropped around the centre) and encodes the result as PNG.
// Dimensions are read from the header first so oversized rasters are never
// allocated.
func (t *Transcoder) Transcode(raw []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > t.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedFormat, cfg.Width, cfg.Height, t.maxPixels)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedFormat)
	}

	dst := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, coverCrop(bounds, t.width, t.height), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// coverCrop returns the centred region of src whose aspect ratio matches w:h.
func coverCrop(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	// Compare sw/sh with w/h without floating point.
	if sw*h > sh*w {
		cw := sh * w / h
		x0 := src.Min.X + (sw-cw)/2
		return image.Rect(x0, src.Min.Y, x0+cw, src.Max.Y)
	}
	ch := sw * h / w
	y0 := src.Min.Y + (sh-ch)/2
	return image.Rect(src.Min.X, y0, src.Max.X, y0+ch)
}
