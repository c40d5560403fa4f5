// Package stitch reconciles the OCR texts of overlapping image slices into
// one stream by locating the shared region of each adjacent pair.
package stitch

import (
	"log"
	"strings"

	"quizbank/api/internal/fingerprint"
)

// WarningMarker is spliced into the output when no confident merge point
// exists. Duplicated or interleaved text near the marker is expected; a
// human reviewer resolves it. Better that than silently dropping lines.
const WarningMarker = "\n[警告：重疊區域匹配失敗，可能有重複或遺漏]\n"

type Stitcher struct {
	OverlapMatchLines int     // tail lines of the previous fragment to match
	MinSimilarity     float64 // below this the merge falls back to WarningMarker
}

func New(overlapMatchLines int, minSimilarity float64) *Stitcher {
	return &Stitcher{OverlapMatchLines: overlapMatchLines, MinSimilarity: minSimilarity}
}

// Merge joins the fragments left to right. The matching is pairwise and
// greedy: each fragment is aligned only against its predecessor, so the
// input order must already be correct.
func (s *Stitcher) Merge(fragments []string) string {
	if len(fragments) == 0 {
		return ""
	}
	if len(fragments) == 1 {
		return fragments[0]
	}

	var merged strings.Builder
	merged.WriteString(fragments[0])

	for i := 1; i < len(fragments); i++ {
		prev, curr := fragments[i-1], fragments[i]
		if offset, ok := s.findMergePoint(prev, curr); ok {
			merged.WriteString(curr[offset:])
		} else {
			log.Printf("stitch: no merge point between fragments %d and %d, appending verbatim", i-1, i)
			merged.WriteString(WarningMarker)
			merged.WriteString(curr)
		}
	}
	return merged.String()
}

// findMergePoint slides a window over the head of curr looking for the spot
// most similar to the tail of prev. On success it returns the byte offset in
// curr just past the matched window; everything before it duplicates content
// already emitted from prev.
func (s *Stitcher) findMergePoint(prev, curr string) (int, bool) {
	prevLines := strings.Split(prev, "\n")
	currLines := strings.Split(curr, "\n")

	tailStart := len(prevLines) - s.OverlapMatchLines
	if tailStart < 0 {
		tailStart = 0
	}
	tail := strings.Join(prevLines[tailStart:], "\n")
	tailLen := len(prevLines) - tailStart

	searchRange := s.OverlapMatchLines * 2
	if searchRange > len(currLines) {
		searchRange = len(currLines)
	}

	bestSim := 0.0
	bestOffset := -1
	for start := 0; start < searchRange; start++ {
		end := start + tailLen
		if end > len(currLines) {
			end = len(currLines)
		}
		window := strings.Join(currLines[start:end], "\n")
		sim := fingerprint.SequenceRatio(tail, window)
		if sim > bestSim {
			bestSim = sim
			// Offset of the newline right after the window; keeping it makes
			// the appended remainder start on its own line.
			bestOffset = len(strings.Join(currLines[:end], "\n"))
		}
	}

	if bestSim >= s.MinSimilarity && bestOffset >= 0 {
		return bestOffset, true
	}
	return 0, false
}
