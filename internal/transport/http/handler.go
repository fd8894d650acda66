package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"quiz-results-service/internal/app"
	"quiz-results-service/internal/domain"
)

// Version reported by the health endpoint.
const Version = "1.0.0"

// Handler exposes the REST surface over the participant service.
type Handler struct {
	service *app.ParticipantService
}

func NewHandler(service *app.ParticipantService) *Handler {
	return &Handler{service: service}
}

// Register attaches all REST routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", MetricsMiddleware(h.handleHealth, "health"))
	mux.HandleFunc("POST /api/users", MetricsMiddleware(h.handleCreateUser, "create_user"))
	mux.HandleFunc("GET /api/users", MetricsMiddleware(h.handleListUsers, "list_users"))
	mux.HandleFunc("GET /api/users/search", MetricsMiddleware(h.handleFindExisting, "find_existing"))
	mux.HandleFunc("GET /api/users/{id}", MetricsMiddleware(h.handleGetUser, "get_user"))
	mux.HandleFunc("PUT /api/users/{id}/answers", MetricsMiddleware(h.handleSubmitAnswers, "submit_answers"))
	mux.HandleFunc("PUT /api/users/{id}/result", MetricsMiddleware(h.handleSubmitAnswersWithTime, "submit_answers_with_time"))
	mux.HandleFunc("POST /api/users/{id}/reset", MetricsMiddleware(h.handleResetProgress, "reset_progress"))
	mux.HandleFunc("GET /api/ranking", MetricsMiddleware(h.handleRanking, "ranking"))
	mux.HandleFunc("POST /api/results", MetricsMiddleware(h.handleSubmitResult, "submit_result"))
	mux.HandleFunc("PUT /api/results/{id}", MetricsMiddleware(h.handleUpdateResult, "update_result"))
	mux.Handle("GET /metrics", MetricsHandler())
}

type answersRequest struct {
	Answers        []domain.Answer `json:"answers"`
	Score          int             `json:"score"`
	ElapsedSeconds int             `json:"elapsedSeconds"`
}

type resultRequest struct {
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Role            string          `json:"role"`
	Phone           string          `json:"phone"`
	ManagingCompany string          `json:"managingCompany"`
	State           string          `json:"state"`
	City            string          `json:"city"`
	Products        []string        `json:"products"`
	Other           string          `json:"other"`
	Answers         []domain.Answer `json:"answers"`
	Score           int             `json:"score"`
	ElapsedSeconds  int             `json:"elapsedSeconds"`
}

func (r resultRequest) submission() app.ResultSubmission {
	return app.ResultSubmission{
		Name:            r.Name,
		Email:           r.Email,
		Role:            r.Role,
		Phone:           r.Phone,
		ManagingCompany: r.ManagingCompany,
		State:           r.State,
		City:            r.City,
		Products:        r.Products,
		Other:           r.Other,
		Answers:         r.Answers,
		Score:           r.Score,
		ElapsedSeconds:  r.ElapsedSeconds,
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "online",
		"message": "quiz results API running",
		"version": Version,
	})
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var rec domain.ParticipantRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := h.service.Register(r.Context(), rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"userId":  id,
		"message": "participant registered",
	})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   users,
		"total":   len(users),
	})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (h *Handler) handleSubmitAnswers(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.service.SubmitAnswers(r.Context(), r.PathValue("id"), req.Answers, req.Score)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (h *Handler) handleSubmitAnswersWithTime(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.service.SubmitAnswersWithTime(r.Context(), r.PathValue("id"), req.Answers, req.Score, req.ElapsedSeconds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (h *Handler) handleRanking(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeFailure(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	ranking, err := h.service.Ranking(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"ranking": ranking,
		"total":   len(ranking),
	})
}

func (h *Handler) handleFindExisting(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user, err := h.service.FindExisting(r.Context(), app.LookupQuery{
		Name:  q.Get("name"),
		Phone: q.Get("phone"),
		Email: q.Get("email"),
		Role:  q.Get("role"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	// no match is a normal outcome: user is null, not a 404
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (h *Handler) handleSubmitResult(w http.ResponseWriter, r *http.Request) {
	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := h.service.SubmitResult(r.Context(), req.submission())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"userId":  id,
		"message": "result recorded",
	})
}

func (h *Handler) handleUpdateResult(w http.ResponseWriter, r *http.Request) {
	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.service.UpdateResult(r.Context(), r.PathValue("id"), req.submission())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (h *Handler) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.ResetProgress(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// writeError maps the error taxonomy onto status codes: validation 400,
// unknown id 404, store failure and everything else 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "participant not found")
	default:
		writeFailure(w, http.StatusInternalServerError, err.Error())
	}
}
