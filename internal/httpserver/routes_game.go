// internal/httpserver/routes_game.go
//
// Catalog, validation, reveal, scoring, and ranking endpoints. The failure
// bodies here are load-bearing: clients split 403s on the "code" field to
// pick between "link your music account" and "register an account", and a
// 409 on submit-score means the level was already recorded, not that the
// write failed.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/davidgrc/songdle/internal/catalog"
	"github.com/davidgrc/songdle/internal/puzzle"
	"github.com/davidgrc/songdle/internal/store"
)

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

func payloadOf(sg *store.Song) *songPayload {
	return &songPayload{
		ID: sg.ID, Title: sg.Title, Artists: sg.Artists, Album: sg.Album,
		Year: sg.Year, Genre: sg.Genre, Audio: sg.Audio, ImageURL: sg.ImageURL,
	}
}

type songRes struct {
	Song   *songPayload `json:"song"`
	Source string       `json:"source,omitempty"`
}

// handleSong resolves a level to its song. Optional auth: guests reach the
// local catalog; members reach the provider-backed catalog.
func (s *Server) handleSong(w http.ResponseWriter, r *http.Request) {
	level, err := puzzle.ParseLevelID(chi.URLParam(r, "levelID"))
	if err != nil {
		http.Error(w, `{"error":"malformed level id"}`, http.StatusBadRequest)
		return
	}

	me := userFrom(r.Context())
	if !level.Guest && me == nil && bearer(r) != "" {
		// A token was sent but did not check out; that caller should
		// re-authenticate, not register.
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}

	sg, err := s.catalog.SongForLevel(r.Context(), level, me)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		http.Error(w, `{"error":"level not found"}`, http.StatusNotFound)
		return
	case errors.Is(err, catalog.ErrNeedsUpgrade):
		http.Error(w, `{"error":"account required for this level","code":"needs_upgrade"}`, http.StatusForbidden)
		return
	case errors.Is(err, catalog.ErrNeedsLink):
		http.Error(w, `{"error":"music account link required","code":"needs_link"}`, http.StatusForbidden)
		return
	case err != nil:
		log.Error().Err(err).Str("level", level.String()).Msg("resolve song")
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}

	res := songRes{}
	if sg != nil {
		res.Song = payloadOf(sg)
		res.Source = "local"
		if !level.Guest {
			res.Source = "provider"
		}
	}
	_ = json.NewEncoder(w).Encode(res)
}

type validateReq struct {
	LevelID string `json:"level_id"`
	Answer  string `json:"answer"`
}

type validateRes struct {
	Correct bool                 `json:"correct"`
	Answer  *puzzle.AnswerFields `json:"answer,omitempty"`
}

// handleValidate judges a guess against the level's song title. The song is
// looked up straight from the store: by validation time the level has been
// loaded at least once, so member songs are already cached.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body validateReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	level, err := puzzle.ParseLevelID(body.LevelID)
	if err != nil {
		http.Error(w, `{"error":"malformed level id"}`, http.StatusBadRequest)
		return
	}

	var sg *store.Song
	if level.Guest {
		sg, err = s.store.LocalSongByLevel(r.Context(), level.Number)
	} else {
		sg, err = s.store.ProviderSongByLevel(r.Context(), level.Number)
	}
	if errors.Is(err, store.ErrNotFound) || (err == nil && sg.Title == "") {
		http.Error(w, `{"error":"level not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}

	res := validateRes{Correct: s.judge.Match(body.Answer, sg.Title)}
	if res.Correct {
		res.Answer = answerOf(sg)
	}
	_ = json.NewEncoder(w).Encode(res)
}

// handleReveal returns the canonical answer fields for a song, used when a
// round ends without a correct guess.
func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	sg, err := s.store.SongByID(r.Context(), chi.URLParam(r, "songID"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"song not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(answerOf(sg))
}

func answerOf(sg *store.Song) *puzzle.AnswerFields {
	return &puzzle.AnswerFields{
		Title:  sg.Title,
		Artist: sg.Artists,
		Album:  sg.Album,
		Year:   sg.Year,
		Genre:  sg.Genre,
	}
}

type submitScoreReq struct {
	LevelID string `json:"level_id"`
	Score   int    `json:"score"`
}

// handleSubmitScore records a completion in the server ledger. Members only;
// guest levels are tracked client-side and rejected here.
func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	var body submitScoreReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	level, err := puzzle.ParseLevelID(body.LevelID)
	if err != nil || level.Guest {
		http.Error(w, `{"error":"malformed level id"}`, http.StatusBadRequest)
		return
	}
	if body.Score < 0 {
		http.Error(w, `{"error":"negative score"}`, http.StatusBadRequest)
		return
	}

	err = s.store.RecordScore(r.Context(), me.ID, level.Number, body.Score)
	if errors.Is(err, store.ErrAlreadyRecorded) {
		http.Error(w, `{"error":"level already played"}`, http.StatusConflict)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("user", me.ID).Int("level", level.Number).Msg("record score")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// handleDailyComplete stamps today's challenge as done; once per UTC day.
func (s *Server) handleDailyComplete(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	err := s.store.MarkDailyCompleted(r.Context(), me.ID, time.Now())
	if errors.Is(err, store.ErrAlreadyRecorded) {
		http.Error(w, `{"error":"daily already completed"}`, http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// handleRanking returns the leaderboard, top scores first.
func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	rows, err := s.store.Ranking(r.Context(), limit)
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ranking": rows})
}
