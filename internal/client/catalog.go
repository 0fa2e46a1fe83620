// internal/client/catalog.go
//
// Puzzle loading over the song catalog API, with mandatory failure
// classification. A valid level with no song assigned is a successful empty
// load, not a failure.

package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/davidgrc/songdle/internal/puzzle"
)

// teaserRunes is how much of the title the final hint shows.
const teaserRunes = 4

// songPayload is the catalog's song shape on the wire.
type songPayload struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artists  string `json:"artists"`
	Album    string `json:"album"`
	Year     int    `json:"year"`
	Genre    string `json:"genre"`
	Audio    string `json:"audio"`
	ImageURL string `json:"image_url"`
}

type songResponse struct {
	Song   *songPayload `json:"song"`
	Source string       `json:"source,omitempty"`
}

// Load fetches the puzzle for a level, routing on the level's id-space via
// its wire form. Implements round.Catalog.
func (c *Client) Load(ctx context.Context, level puzzle.LevelID, credential string) (*puzzle.Puzzle, error) {
	var res songResponse
	err := c.do(ctx, http.MethodGet, "/songs/"+level.String(), credential, nil, &res)
	if err != nil {
		return nil, classifyLoad(err)
	}
	if res.Song == nil {
		// Level exists, nothing assigned to it yet.
		return nil, nil
	}
	s := res.Song
	return &puzzle.Puzzle{
		ID:          s.ID,
		AudioSource: s.Audio,
		ImageURL:    s.ImageURL,
		Hints: puzzle.HintFields{
			Year:      s.Year,
			Genre:     s.Genre,
			Album:     s.Album,
			Artist:    s.Artists,
			TitleHint: puzzle.TitleTeaser(s.Title, teaserRunes),
		},
		// Answer fields stay concealed until the round reveals them.
	}, nil
}

// classifyLoad maps transport and HTTP failures onto the load taxonomy.
func classifyLoad(err error) *puzzle.LoadFailure {
	var te *transportError
	if errors.As(err, &te) {
		return &puzzle.LoadFailure{Kind: puzzle.FailNetwork, Err: err}
	}
	var he *httpError
	if !errors.As(err, &he) {
		return &puzzle.LoadFailure{Kind: puzzle.FailUnknown, Err: err}
	}
	switch he.Status {
	case http.StatusUnauthorized:
		return &puzzle.LoadFailure{Kind: puzzle.FailUnauthenticated, Err: err}
	case http.StatusForbidden:
		// Forbidden splits on the server's code: a missing music-account
		// link is remediated differently from a guest needing to register.
		if he.Body.Code == "needs_upgrade" {
			return &puzzle.LoadFailure{Kind: puzzle.FailNeedsUpgrade, Err: err}
		}
		return &puzzle.LoadFailure{Kind: puzzle.FailNeedsLink, Err: err}
	case http.StatusNotFound:
		return &puzzle.LoadFailure{Kind: puzzle.FailNotFound, Err: err}
	default:
		return &puzzle.LoadFailure{Kind: puzzle.FailUnknown, Err: err}
	}
}
