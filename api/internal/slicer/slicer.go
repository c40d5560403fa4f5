// Package slicer splits an oversized page image into overlapping horizontal
// bands so each band can be OCR-ed on its own and the texts stitched back
// together afterwards.
package slicer

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

type Config struct {
	HeightThreshold      int     // split when height exceeds this
	AspectRatioThreshold float64 // or when height/width exceeds this
	SliceHeight          int
	OverlapRatio         float64 // fraction of SliceHeight shared with the neighbor
}

func DefaultConfig() Config {
	return Config{
		HeightThreshold:      3600,
		AspectRatioThreshold: 3.0,
		SliceHeight:          1400,
		OverlapRatio:         0.18,
	}
}

func (c Config) overlapHeight() int { return int(float64(c.SliceHeight) * c.OverlapRatio) }

// Validate rejects geometry that cannot make progress.
func (c Config) Validate() error {
	if step := c.SliceHeight - c.overlapHeight(); step <= 0 {
		return fmt.Errorf("slicer: step height %d must be positive (slice_height=%d overlap_ratio=%.2f)",
			step, c.SliceHeight, c.OverlapRatio)
	}
	return nil
}

// Slice is one horizontal band of the source image.
type Slice struct {
	Index  int
	Path   string // rendered crop on disk, named by sequence index
	StartY int    // bounds in the source image, [StartY, EndY)
	EndY   int
	// Region shared with the previous/next slice, relative to the slice top.
	OverlapStart int
	OverlapEnd   int

	Image *image.NRGBA
}

func (s Slice) Height() int { return s.EndY - s.StartY }

// Session owns the temporary files of one slicing run.
type Session struct {
	cfg     Config
	tempDir string
}

func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp("", "img_split_")
	if err != nil {
		return nil, fmt.Errorf("slicer: temp dir: %w", err)
	}
	return &Session{cfg: cfg, tempDir: dir}, nil
}

// ShouldSplit reports whether the image is oversized: taller than the height
// threshold, or with a height/width ratio above the aspect threshold. A zero
// width counts as aspect ratio 0.
func (s *Session) ShouldSplit(img image.Image) bool {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	aspect := 0.0
	if w > 0 {
		aspect = float64(h) / float64(w)
	}
	return h > s.cfg.HeightThreshold || aspect > s.cfg.AspectRatioThreshold
}

// Split cuts the image into overlapping bands covering [0, height) with no
// gaps. A final band shorter than half a slice is not emitted on its own:
// the previous band is extended to the bottom of the image instead, so the
// OCR never sees a near-context-free sliver.
func (s *Session) Split(img image.Image) ([]Slice, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	overlap := s.cfg.overlapHeight()
	step := s.cfg.SliceHeight - overlap

	n := (height - overlap + step - 1) / step
	if n < 1 {
		n = 1
	}
	log.Printf("slicer: height=%dpx slice=%dpx overlap=%dpx -> %d slices", height, s.cfg.SliceHeight, overlap, n)

	var slices []Slice
	for i := 0; i < n; i++ {
		startY := i * step
		endY := startY + s.cfg.SliceHeight
		if endY > height {
			endY = height
		}
		if i == n-1 {
			endY = height
		}

		// Small-tail merge: fold a too-short last band into the previous one.
		if i > 0 && i == n-1 && endY-startY < s.cfg.SliceHeight/2 {
			prev := &slices[len(slices)-1]
			prev.EndY = endY
			prev.OverlapEnd = prev.Height()
			if err := s.render(img, prev, width); err != nil {
				return nil, err
			}
			log.Printf("slicer: tail %dpx merged into slice %d (%d-%d)", endY-startY, prev.Index, prev.StartY, prev.EndY)
			break
		}

		sl := Slice{
			Index:  i,
			StartY: startY,
			EndY:   endY,
		}
		if i > 0 {
			sl.OverlapStart = overlap
		}
		if i < n-1 {
			sl.OverlapEnd = sl.Height() - overlap
		} else {
			sl.OverlapEnd = sl.Height()
		}
		if err := s.render(img, &sl, width); err != nil {
			return nil, err
		}
		slices = append(slices, sl)
	}
	return slices, nil
}

func (s *Session) render(img image.Image, sl *Slice, width int) error {
	sl.Image = imaging.Crop(img, image.Rect(0, sl.StartY, width, sl.EndY))
	sl.Path = filepath.Join(s.tempDir, fmt.Sprintf("slice_%03d.jpg", sl.Index))
	if err := imaging.Save(sl.Image, sl.Path, imaging.JPEGQuality(95)); err != nil {
		return fmt.Errorf("slicer: save slice %d: %w", sl.Index, err)
	}
	return nil
}

// Cleanup removes all intermediate files. Safe to call repeatedly and when
// Split never ran.
func (s *Session) Cleanup() {
	if s.tempDir == "" {
		return
	}
	if err := os.RemoveAll(s.tempDir); err != nil {
		log.Printf("slicer: cleanup %s: %v", s.tempDir, err)
		return
	}
	s.tempDir = ""
}
