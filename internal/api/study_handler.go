package api

import (
	"log/slog"
	"net/http"

	"github.com/example/wordwindow/internal/session"
	"github.com/example/wordwindow/internal/spaced_repetition"
	"github.com/example/wordwindow/pkg/models"
)

// StudyHandler serves the study endpoints over a session manager
type StudyHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

// NewStudyHandler creates a new StudyHandler
func NewStudyHandler(sessions *session.Manager, logger *slog.Logger) *StudyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudyHandler{sessions: sessions, logger: logger.With("component", "api")}
}

// Init handles POST /api/study/init
func (h *StudyHandler) Init(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	var (
		s   *session.Session
		err error
	)
	if req.AssignmentID != "" {
		s, err = h.sessions.StartAssignment(r.Context(), req.AssignmentID, req.UserID, req.Language, req.Settings)
	} else {
		s, err = h.sessions.StartPersonal(r.Context(), req.UserID, req.Language, req.Settings)
	}
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	snap, err := s.Snapshot()
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, InitResponse{SessionID: s.ID, Settings: s.Settings, Window: snap})
}

// RandomWords handles POST /api/study/random-words
func (h *StudyHandler) RandomWords(w http.ResponseWriter, r *http.Request) {
	var req RandomWordsRequest
	s, ok := h.session(w, r, &req, func() string { return req.SessionID })
	if !ok {
		return
	}
	words, err := s.RandomWords(req.Count)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, WordsResponse{Words: cards(s.Policy(), words)})
}

// CheckAnswer handles POST /api/study/check-answer
func (h *StudyHandler) CheckAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	s, ok := h.session(w, r, &req, func() string { return req.SessionID })
	if !ok {
		return
	}
	out, err := s.Check(r.Context(), req.Word, req.Answer)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, AnswerResponse{Outcome: out, Expected: s.Policy().Expected(&out.Word)})
}

// CheckReviewAnswer handles POST /api/study/check-review-answer
func (h *StudyHandler) CheckReviewAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	s, ok := h.session(w, r, &req, func() string { return req.SessionID })
	if !ok {
		return
	}
	out, err := s.Review(r.Context(), req.Word, req.Answer)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, AnswerResponse{Outcome: out, Expected: s.Policy().Expected(&out.Word)})
}

// MarkKnown handles POST /api/study/mark-known
func (h *StudyHandler) MarkKnown(w http.ResponseWriter, r *http.Request) {
	var req WordRequest
	s, ok := h.session(w, r, &req, func() string { return req.SessionID })
	if !ok {
		return
	}
	word, err := s.MarkKnown(r.Context(), req.Word)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, word)
}

// Save handles POST /api/study/save
func (h *StudyHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	s, ok := h.session(w, r, &req, func() string { return req.SessionID })
	if !ok {
		return
	}
	if err := s.Persist(r.Context()); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SaveResponse{Saved: true})
}

// KnownWords handles POST /api/study/known-words
func (h *StudyHandler) KnownWords(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	s, ok := h.session(w, r, &req, func() string { return req.SessionID })
	if !ok {
		return
	}
	words, err := s.KnownWords()
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, WordsResponse{Words: cards(s.Policy(), words)})
}

// Stats handles POST /api/study/stats
func (h *StudyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	s, ok := h.session(w, r, &req, func() string { return req.SessionID })
	if !ok {
		return
	}
	stats, err := s.Stats()
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// Window handles POST /api/study/window
func (h *StudyHandler) Window(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	s, ok := h.session(w, r, &req, func() string { return req.SessionID })
	if !ok {
		return
	}
	snap, err := s.Snapshot()
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snap)
}

// session decodes the body into req and resolves the session it names.
// On failure the error response has already been written.
// AssignmentProgress handles POST /api/study/assignment-progress
func (h *StudyHandler) AssignmentProgress(w http.ResponseWriter, r *http.Request) {
	var req AssignmentProgressRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	report, err := h.sessions.AssignmentProgress(r.Context(), req.AssignmentID, req.UserID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (h *StudyHandler) session(w http.ResponseWriter, r *http.Request, req any, id func() string) (*session.Session, bool) {
	if err := decodeAndValidate(r, req); err != nil {
		respondWithError(w, r, h.logger, err)
		return nil, false
	}
	s, err := h.sessions.Get(id())
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return nil, false
	}
	return s, true
}

func cards(policy *spaced_repetition.Policy, words []models.Word) []Card {
	out := make([]Card, 0, len(words))
	for i := range words {
		out = append(out, Card{Word: words[i], Prompt: policy.Prompt(&words[i])})
	}
	return out
}
