// internal/judge/judge.go
//
// Answer judging. The comparison policy lives here, server side: guesses and
// titles are normalized the same way, compared exactly, and otherwise
// accepted when their Ratcliff/Obershelp similarity reaches the threshold.

package judge

import (
	"regexp"
	"strings"
)

// DefaultThreshold accepts near-misses like missing accents or a dropped
// article while rejecting different titles.
const DefaultThreshold = 0.85

var (
	bracketed  = regexp.MustCompile(`[\(\[].*?[\)\]]`)
	dashTail   = regexp.MustCompile(`-.*`)
	featTail   = regexp.MustCompile(`\b(feat|ft|featuring)\b.*`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize reduces a title or guess to its comparable core: lowercase, no
// bracketed qualifiers ("(Remix)", "[Live]"), nothing after a dash, no
// featured-artist tail, underscores as spaces, collapsed whitespace.
func Normalize(title string) string {
	t := strings.ToLower(title)
	t = bracketed.ReplaceAllString(t, "")
	t = dashTail.ReplaceAllString(t, "")
	t = featTail.ReplaceAllString(t, "")
	t = strings.ReplaceAll(t, "_", " ")
	t = whitespace.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Judge compares guesses against titles.
type Judge struct {
	Threshold float64
}

func New() *Judge { return &Judge{Threshold: DefaultThreshold} }

// Match reports whether guess names the title: exact after normalization,
// or similar enough.
func (j *Judge) Match(guess, title string) bool {
	g, t := Normalize(guess), Normalize(title)
	if g == "" || t == "" {
		return false
	}
	if g == t {
		return true
	}
	return Ratio(g, t) >= j.Threshold
}

// Ratio is the Ratcliff/Obershelp similarity of two strings in [0,1]:
// twice the total length of matching blocks over the combined length.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 0
	}
	m := matchingBlocks(ra, rb)
	return 2 * float64(m) / float64(len(ra)+len(rb))
}

// matchingBlocks sums the lengths of the recursive longest common
// substrings, the way difflib's SequenceMatcher counts matches.
func matchingBlocks(a, b []rune) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingBlocks(a[:ai], b[:bi])
	total += matchingBlocks(a[ai+size:], b[bi+size:])
	return total
}

func longestMatch(a, b []rune) (ai, bi, size int) {
	// j2len[j] is the length of the match ending at a[i], b[j].
	j2len := make(map[int]int)
	for i := range a {
		next := make(map[int]int)
		for j := range b {
			if a[i] == b[j] {
				k := j2len[j-1] + 1
				next[j] = k
				if k > size {
					ai, bi, size = i-k+1, j-k+1, k
				}
			}
		}
		j2len = next
	}
	return ai, bi, size
}
