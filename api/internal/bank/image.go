package bank

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// FlattenToWhite composites the image onto a white background, discarding
// transparency (screenshots often arrive as PNG with alpha).
func FlattenToWhite(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	bg := imaging.New(bounds.Dx(), bounds.Dy(), image.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// Downscale shrinks the image proportionally so its shorter side is at most
// maxShortSide. Lanczos keeps small text legible.
func Downscale(img image.Image, maxShortSide int) image.Image {
	if maxShortSide <= 0 {
		return img
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	short := w
	if h < short {
		short = h
	}
	if short <= maxShortSide {
		return img
	}
	scale := float64(maxShortSide) / float64(short)
	return imaging.Resize(img, int(float64(w)*scale), int(float64(h)*scale), imaging.Lanczos)
}

// NormalizeJPEG decodes, flattens and downscales an image and re-encodes it
// as JPEG. Used both for stored images and for shrinking uploads before they
// go to a vision model.
func NormalizeJPEG(data []byte, maxShortSide int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("bank: decode image: %w", err)
	}
	out := Downscale(FlattenToWhite(img), maxShortSide)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("bank: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveImage persists a normalized copy of the source image under a filename
// derived from the question's combined hash, so repeated uploads of the same
// question share one stored file. Returns the stored path.
func (b *Bank) SaveImage(data []byte, combinedHash string) (string, error) {
	if b.imageDir == "" || len(data) == 0 {
		return "", nil
	}
	dest := filepath.Join(b.imageDir, combinedHash+".jpg")
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	normalized, err := NormalizeJPEG(data, b.opts.MaxShortSide)
	if err != nil {
		// Undecodable but possibly still useful: store the raw bytes.
		normalized = data
	}
	if err := os.WriteFile(dest, normalized, 0o644); err != nil {
		return "", fmt.Errorf("bank: save image: %w", err)
	}
	return dest, nil
}
