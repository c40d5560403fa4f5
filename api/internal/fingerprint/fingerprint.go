package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprints are md5 hex digests. The algorithm is not load-bearing, only
// determinism and width: 128 bits makes accidental collisions a non-issue,
// and the digest doubles as the stored-image filename.

func QuestionHash(question string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(question)))
	return hex.EncodeToString(sum[:])
}

// OptionsHash hashes option values sorted lexicographically, so the same four
// option strings fingerprint identically no matter which letter holds which.
func OptionsHash(options map[string]string) string {
	values := make([]string, 0, len(options))
	for _, v := range options {
		values = append(values, strings.TrimSpace(v))
	}
	sort.Strings(values)
	sum := md5.Sum([]byte(strings.Join(values, "")))
	return hex.EncodeToString(sum[:])
}

// CombinedHash is the exact-duplicate key for a question.
func CombinedHash(question string, options map[string]string) string {
	sum := md5.Sum([]byte(QuestionHash(question) + OptionsHash(options)))
	return hex.EncodeToString(sum[:])
}

// Similarity blends question-text and option-text matching ratios into [0,1].
// Option values are compared sorted, mirroring OptionsHash.
func Similarity(q1 string, o1 map[string]string, q2 string, o2 map[string]string, questionWeight, optionsWeight float64) float64 {
	qs := SequenceRatio(q1, q2)
	os := SequenceRatio(sortedJoin(o1), sortedJoin(o2))
	return qs*questionWeight + os*optionsWeight
}

func sortedJoin(options map[string]string) string {
	values := make([]string, 0, len(options))
	for _, v := range options {
		values = append(values, v)
	}
	sort.Strings(values)
	return strings.Join(values, "")
}

// SequenceRatio is the Ratcliff/Obershelp ratio 2*M/T over runes: M counts
// characters covered by recursively taking the longest common contiguous
// block and matching the unmatched remainders on each side.
func SequenceRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchedRunes(ra, rb)) / float64(total)
}

func matchedRunes(a, b []rune) int {
	ai, bi, size := longestCommonBlock(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchedRunes(a[:ai], b[:bi]) +
		matchedRunes(a[ai+size:], b[bi+size:])
}

func longestCommonBlock(a, b []rune) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	// lengths[j] = length of the common suffix ending at a[i], b[j-1]
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 0; i < len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai = i - size + 1
					bi = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return ai, bi, size
}
