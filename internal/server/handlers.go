package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/MrWong99/feihua/internal/game"
	"github.com/MrWong99/feihua/internal/observe"
	"github.com/MrWong99/feihua/pkg/provider/asr"
)

const (
	// searchDefaultLimit and searchMaxLimit bound poem search responses.
	searchDefaultLimit = 20
	searchMaxLimit     = 100
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) writeHandlerError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed",
			"path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

type startRequest struct {
	Keyword string `json:"keyword"`
}

type startResponse struct {
	SessionID        string        `json:"sessionId"`
	Keyword          string        `json:"keyword"`
	FirstVerse       *game.Opening `json:"firstVerse"`
	RemainingChances int           `json:"remainingChances"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, opening, err := s.orch.Start(r.Context(), req.Keyword)
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, startResponse{
		SessionID:        sess.ID,
		Keyword:          req.Keyword,
		FirstVerse:       opening,
		RemainingChances: game.DefaultChances,
	})
}

type verifyRequest struct {
	SessionID string `json:"sessionId"`
	Sentence  string `json:"sentence"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" || req.Sentence == "" {
		writeError(w, http.StatusBadRequest, "sessionId and sentence are required")
		return
	}

	res, err := s.orch.PlayerTurn(r.Context(), req.SessionID, req.Sentence)
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type verifySpeechRequest struct {
	SessionID string `json:"sessionId"`
	Audio     string `json:"audio"`
	Format    string `json:"format"`
}

type verifySpeechResponse struct {
	Recognized string           `json:"recognized"`
	Confidence float64          `json:"confidence"`
	Turn       *game.TurnResult `json:"turn,omitempty"`
}

func (s *Server) handleVerifySpeech(w http.ResponseWriter, r *http.Request) {
	if s.recognizer == nil {
		writeError(w, http.StatusNotImplemented, "speech recognition is not configured")
		return
	}

	var req verifySpeechRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" || req.Audio == "" {
		writeError(w, http.StatusBadRequest, "sessionId and audio are required")
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio must be base64-encoded")
		return
	}
	format := asr.Format(req.Format)
	if format == "" {
		format = asr.FormatWAV
	}

	transcript, err := s.recognizer.Recognize(r.Context(), audio, format)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "speech recognition failed: "+err.Error())
		return
	}
	resp := verifySpeechResponse{
		Recognized: transcript.Text,
		Confidence: transcript.Confidence,
	}
	if transcript.Text == "" {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	turn, err := s.orch.PlayerTurn(r.Context(), req.SessionID, transcript.Text)
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	resp.Turn = turn
	writeJSON(w, http.StatusOK, resp)
}

type aiTurnRequest struct {
	Char       string   `json:"char"`
	UsedVerses []string `json:"usedVerses"`
}

func (s *Server) handleAITurn(w http.ResponseWriter, r *http.Request) {
	var req aiTurnRequest
	if !decodeBody(w, r, &req) {
		return
	}

	verse, err := s.orch.Opponent(r.Context(), req.Char, req.UsedVerses)
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	if verse == nil {
		writeError(w, http.StatusNotFound, "AI也想不出来了")
		return
	}
	writeJSON(w, http.StatusOK, verse)
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	hint, err := s.orch.Hint(r.Context(), req.SessionID)
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hint)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.orch.Skip(req.SessionID)
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRandomChar(w http.ResponseWriter, r *http.Request) {
	char, err := s.orch.RandomChar(r.Context())
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"char": char})
}

type searchPoemsRequest struct {
	Char  string `json:"char"`
	Limit int    `json:"limit"`
}

func (s *Server) handleSearchPoems(w http.ResponseWriter, r *http.Request) {
	var req searchPoemsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Char == "" {
		writeError(w, http.StatusBadRequest, "char is required")
		return
	}

	poems, err := s.store.FindByCharacter(r.Context(), req.Char, clampLimit(req.Limit))
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"poems": poems})
}

func (s *Server) handlePoetPoems(w http.ResponseWriter, r *http.Request) {
	author := r.PathValue("author")
	if author == "" {
		writeError(w, http.StatusBadRequest, "author is required")
		return
	}
	limit := searchDefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	poems, err := s.store.FindByAuthor(r.Context(), author, clampLimit(limit))
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"poems": poems})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Manager().Get(r.PathValue("id"))
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.End(r.Context(), r.PathValue("id")); err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func clampLimit(n int) int {
	if n <= 0 {
		return searchDefaultLimit
	}
	if n > searchMaxLimit {
		return searchMaxLimit
	}
	return n
}
