// internal/puzzle/puzzle.go
//
// Puzzle model and level-id handling.
//
// Level ids live in two disjoint spaces: guest levels carry a "_local"
// suffix ("7_local" is level 7 played from the local catalog), authenticated
// levels are bare numbers. Level 0 is the daily challenge. The suffix decides
// which backing catalog a loader must route to.

package puzzle

import (
	"errors"
	"strconv"
	"strings"
)

// LocalSuffix marks guest-space level ids.
const LocalSuffix = "_local"

// DailyLevel is the level number reserved for the daily challenge.
const DailyLevel = 0

var ErrBadLevelID = errors.New("puzzle: malformed level id")

// LevelID is a parsed level identifier.
type LevelID struct {
	Number int
	Guest  bool
}

// ParseLevelID splits a raw level id into its number and id-space.
func ParseLevelID(raw string) (LevelID, error) {
	guest := strings.HasSuffix(raw, LocalSuffix)
	numStr := strings.TrimSuffix(raw, LocalSuffix)
	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return LevelID{}, ErrBadLevelID
	}
	return LevelID{Number: n, Guest: guest}, nil
}

// String renders the id back into its wire form.
func (l LevelID) String() string {
	s := strconv.Itoa(l.Number)
	if l.Guest {
		s += LocalSuffix
	}
	return s
}

// HintFields are the progressively revealed facts about the song.
type HintFields struct {
	Year      int    `json:"year"`
	Genre     string `json:"genre"`
	Album     string `json:"album"`
	Artist    string `json:"artist"`
	TitleHint string `json:"title_hint"`
}

// AnswerFields are the concealed answer facts, populated only on reveal.
type AnswerFields struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Year   int    `json:"year"`
	Genre  string `json:"genre"`
}

// Puzzle is the playable content of one level. It is owned exclusively by
// the active round and replaced wholesale on level load.
type Puzzle struct {
	ID          string
	AudioSource string // plain URL or embedded data: payload
	ImageURL    string
	Hints       HintFields
	Answer      AnswerFields // zero until Reveal merges it
	Revealed    bool
}

// Reveal merges canonical answer fields into the puzzle for display.
func (p *Puzzle) Reveal(a AnswerFields) {
	p.Answer = a
	p.Revealed = true
}

// TitleTeaser returns the first n runes of a title followed by an ellipsis,
// used as the final hint. Multi-byte titles are cut on rune boundaries.
func TitleTeaser(title string, n int) string {
	if n <= 0 {
		return "..."
	}
	r := []rune(title)
	if len(r) <= n {
		return title
	}
	return string(r[:n]) + "..."
}
