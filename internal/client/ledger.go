// internal/client/ledger.go
//
// Score submission to the remote ledger. The ledger enforces one record per
// (user, level); its conflict answer is the already-played signal, not an
// error.

package client

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/davidgrc/songdle/internal/completion"
)

type submitScoreRequest struct {
	LevelID string `json:"level_id"`
	Score   int    `json:"score"`
}

// SubmitScore records a score for a level. Implements completion.Ledger.
func (c *Client) SubmitScore(ctx context.Context, level, score int) error {
	req := submitScoreRequest{LevelID: strconv.Itoa(level), Score: score}
	err := c.do(ctx, http.MethodPost, "/game/submit-score", "", req, nil)
	if err == nil {
		return nil
	}
	var he *httpError
	if errors.As(err, &he) && he.Status == http.StatusConflict {
		return completion.ErrAlreadyPlayed
	}
	return err
}
