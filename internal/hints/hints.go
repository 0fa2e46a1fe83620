// internal/hints/hints.go
//
// Hint schedule for a game round: a fixed lookup from attempt number to the
// hint revealed at that attempt and how much of the cover image is unblurred.
// The schedule is strict: hints are never revealed ad hoc, only as a function
// of the attempt counter.

package hints

// Key identifies a single hint field of a song.
type Key string

const (
	KeyYear      Key = "year"
	KeyGenre     Key = "genre"
	KeyAlbum     Key = "album"
	KeyArtist    Key = "artist"
	KeyTitleHint Key = "title_hint"
)

// Entry is one row of the schedule.
type Entry struct {
	Key      Key // hint revealed when this attempt begins
	Quarters int // cover image quarters visible from this attempt on
}

// Schedule maps attempt numbers to hint entries. Attempt 1 has no entry:
// the first listen comes with no hints and one image quarter.
type Schedule map[int]Entry

// Default is the production schedule for six attempts.
var Default = Schedule{
	2: {Key: KeyYear, Quarters: 2},
	3: {Key: KeyGenre, Quarters: 3},
	4: {Key: KeyAlbum, Quarters: 4},
	5: {Key: KeyArtist, Quarters: 4},
	6: {Key: KeyTitleHint, Quarters: 4},
}

// ForAttempt returns the entry revealed when the given attempt begins.
// ok is false for attempt 1 and for attempts outside the schedule.
func (s Schedule) ForAttempt(attempt int) (Entry, bool) {
	e, ok := s[attempt]
	return e, ok
}

// RevealedAt returns, in reveal order, every hint key disclosed once the
// given attempt has begun. Its length is always attempt-1 within the
// schedule's range.
func (s Schedule) RevealedAt(attempt int) []Key {
	keys := []Key{}
	for a := 2; a <= attempt; a++ {
		if e, ok := s[a]; ok {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

// QuartersAt returns the number of visible cover quarters once the given
// attempt has begun. Starts at 1 and never decreases.
func (s Schedule) QuartersAt(attempt int) int {
	q := 1
	for a := 2; a <= attempt; a++ {
		if e, ok := s[a]; ok && e.Quarters > q {
			q = e.Quarters
		}
	}
	return q
}
