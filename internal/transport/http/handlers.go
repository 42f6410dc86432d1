package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"mcq-trainer/internal/app"
	"mcq-trainer/internal/domain"
)

const maxUploadBytes = 10 << 20

// Handler serves the JSON API on top of app.QuizService.
type Handler struct {
	service *app.QuizService
	cookies cookieJar
	log     logrus.FieldLogger
}

type startRequest struct {
	UserName   string            `json:"user_name"`
	PIN        string            `json:"pin"`
	Subject    string            `json:"subject"`
	Mode       domain.Mode       `json:"mode"`
	Difficulty domain.Difficulty `json:"difficulty"`
	Count      json.RawMessage   `json:"count"`
}

type startResponse struct {
	SessionID string           `json:"session_id"`
	Served    int              `json:"served"`
	Requested int              `json:"requested"`
	Question  app.QuestionView `json:"question"`
}

type answerRequest struct {
	Choice   *int `json:"choice"`
	Timeout  bool `json:"timeout"`
	Position *int `json:"position"`
}

type reviewItem struct {
	domain.ReviewEntry
	SelectedText string `json:"selected_text"`
	CorrectText  string `json:"correct_text"`
	LookupFailed bool   `json:"lookup_failed,omitempty"`
}

type reviewResponse struct {
	Entries []reviewItem `json:"entries"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

func (h *Handler) importQuestions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, h.log, domain.Validationf("invalid upload: %v", err))
		return
	}
	file, _, err := r.FormFile("csv_file")
	if err != nil {
		respondError(w, h.log, domain.Validationf("csv_file is required"))
		return
	}
	defer file.Close()

	result, err := h.service.ImportCSV(r.Context(), file)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearAll(r.Context(), h.cookies.sessionID(r)); err != nil {
		respondError(w, h.log, err)
		return
	}
	h.cookies.clear(w)
	respondJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, domain.Validationf("invalid request body"))
		return
	}

	session, err := h.service.StartSession(r.Context(), app.StartRequest{
		UserName:   req.UserName,
		PIN:        req.PIN,
		Subject:    req.Subject,
		Mode:       req.Mode,
		Difficulty: req.Difficulty,
		Count:      parseCount(req.Count),
		ReplaceID:  h.cookies.sessionID(r),
	})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.cookies.set(w, session.ID); err != nil {
		respondError(w, h.log, err)
		return
	}

	view, err := h.service.CurrentQuestion(r.Context(), session.ID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, startResponse{
		SessionID: session.ID,
		Served:    session.Served(),
		Requested: session.Requested,
		Question:  view,
	})
}

func (h *Handler) currentQuestion(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CurrentQuestion(r.Context(), h.cookies.sessionID(r))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, domain.Validationf("invalid request body"))
		return
	}
	outcome, err := h.service.SubmitAnswer(r.Context(), h.cookies.sessionID(r), app.Answer{
		Choice:   req.Choice,
		Timeout:  req.Timeout,
		Position: req.Position,
	})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.FinishOrAdvance(r.Context(), h.cookies.sessionID(r))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Review(r.Context(), h.cookies.sessionID(r))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, reviewResponse{Entries: renderReview(entries, h.log)})
}

func (h *Handler) restart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Restart(r.Context(), h.cookies.sessionID(r))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) terminate(w http.ResponseWriter, r *http.Request) {
	if id := h.cookies.sessionID(r); id != "" {
		if err := h.service.TerminateSession(r.Context(), id); err != nil {
			respondError(w, h.log, err)
			return
		}
	}
	h.cookies.clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Leaderboard(r.Context()))
}

// renderReview resolves option texts, substituting visible placeholders
// when stored data points at an option that does not exist.
func renderReview(entries []domain.ReviewEntry, log logrus.FieldLogger) []reviewItem {
	items := make([]reviewItem, 0, len(entries))
	for i, entry := range entries {
		item := reviewItem{ReviewEntry: entry}

		selected, err := entry.SelectedOption()
		if errors.Is(err, domain.ErrOptionLookup) {
			selected = domain.UnavailableLabel
			item.LookupFailed = true
		}
		correct, err := entry.CorrectOption()
		if errors.Is(err, domain.ErrOptionLookup) {
			correct = domain.UnavailableLabel
			item.LookupFailed = true
		}
		if item.LookupFailed {
			log.WithField("entry", i).Warn("review entry references a missing option")
		}

		item.SelectedText = selected
		item.CorrectText = correct
		items = append(items, item)
	}
	return items
}

// parseCount reads the requested question count. Absent or unparseable
// values fall back to the default; explicit non-positive values are passed
// through so the service can reject them.
func parseCount(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return domain.DefaultQuestionCount
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return domain.DefaultQuestionCount
	}
	return n
}
