// internal/client/judge.go
//
// Guess validation and answer reveal. A transport failure here is its own
// error kind; it must never be read as a wrong answer.

package client

import (
	"context"
	"net/http"

	"github.com/davidgrc/songdle/internal/puzzle"
	"github.com/davidgrc/songdle/internal/round"
)

type validateRequest struct {
	LevelID string `json:"level_id"`
	Answer  string `json:"answer"`
}

type validateResponse struct {
	Correct bool                 `json:"correct"`
	Answer  *puzzle.AnswerFields `json:"answer,omitempty"`
}

// Check submits a guess to the remote judge. Implements round.Judge.
func (c *Client) Check(ctx context.Context, level puzzle.LevelID, answer string) (round.Verdict, error) {
	var res validateResponse
	req := validateRequest{LevelID: level.String(), Answer: answer}
	if err := c.do(ctx, http.MethodPost, "/game/validate", "", req, &res); err != nil {
		return round.Verdict{}, err
	}
	return round.Verdict{Correct: res.Correct, Answer: res.Answer}, nil
}

// Reveal fetches the canonical answer fields for a song. Implements
// round.Revealer.
func (c *Client) Reveal(ctx context.Context, songID string) (puzzle.AnswerFields, error) {
	var res puzzle.AnswerFields
	err := c.do(ctx, http.MethodGet, "/game/song/"+songID+"/reveal", "", nil, &res)
	return res, err
}
