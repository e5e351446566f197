package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// jobResponse is the polling view of a job. Progress reflects completed
// steps only; a step in flight is not visible here.
type jobResponse struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Status     string     `json:"status"`
	Progress   int        `json:"progress"`
	Reserved   int        `json:"cost_credits_reserved"`
	Final      int        `json:"cost_credits_final"`
	RetryCount int        `json:"retry_count"`
	ErrorCode  string     `json:"error_code,omitempty"`
	ErrorMsg   string     `json:"error_message,omitempty"`
	FailedStep string     `json:"failed_step,omitempty"`
	DLQAt      *time.Time `json:"dlq_at,omitempty"`
	DLQReason  string     `json:"dlq_reason,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toJobResponse(j *model.Job) jobResponse {
	return jobResponse{
		ID:         j.ID,
		ProjectID:  j.ProjectID,
		Status:     string(j.Status),
		Progress:   j.Progress,
		Reserved:   j.CostCreditsReserved,
		Final:      j.CostCreditsFinal,
		RetryCount: j.RetryCount,
		ErrorCode:  j.ErrorCode,
		ErrorMsg:   j.ErrorMessage,
		FailedStep: j.FailedStep,
		DLQAt:      j.DLQAt,
		DLQReason:  j.DLQReason,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		CreatedAt:  j.CreatedAt,
	}
}

type projectCreateRequest struct {
	UserID     string `json:"user_id"`
	Title      string `json:"title"`
	Prompt     string `json:"prompt"`
	Style      string `json:"style"`
	Voice      string `json:"voice"`
	TargetSecs int    `json:"target_secs"`
}

type projectResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Prompt     string    `json:"prompt"`
	Style      string    `json:"style"`
	Voice      string    `json:"voice"`
	TargetSecs int       `json:"target_secs"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req projectCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Prompt == "" || req.TargetSecs <= 0 {
		http.Error(w, "user_id, prompt and target_secs are required", http.StatusBadRequest)
		return
	}

	now := time.Now()
	p := &model.Project{
		ID:         ulid.Make().String(),
		UserID:     req.UserID,
		Title:      req.Title,
		Prompt:     req.Prompt,
		Style:      req.Style,
		Voice:      req.Voice,
		TargetSecs: req.TargetSecs,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.projects.Save(r.Context(), nil, p); err != nil {
		s.log.Error().Err(err).Msg("saving project failed")
		http.Error(w, "Failed to create project", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, projectResponse{
		ID:         p.ID,
		UserID:     p.UserID,
		Title:      p.Title,
		Prompt:     p.Prompt,
		Style:      p.Style,
		Voice:      p.Voice,
		TargetSecs: p.TargetSecs,
		CreatedAt:  p.CreatedAt,
	})
}

type jobSubmitRequest struct {
	ProjectID string `json:"project_id"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req jobSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" {
		http.Error(w, "project_id is required", http.StatusBadRequest)
		return
	}

	job, err := s.jobUC.Submit(r.Context(), req.ProjectID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, toJobResponse(job))
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Project not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInsufficientCredits):
		http.Error(w, "Insufficient credits", http.StatusPaymentRequired)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error().Err(err).Msg("job submission failed")
		http.Error(w, "Failed to submit job", http.StatusInternalServerError)
	}
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobUC.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toJobResponse(job))
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Job not found", http.StatusNotFound)
	default:
		http.Error(w, "Failed to get job", http.StatusInternalServerError)
	}
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	err := s.jobUC.Cancel(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Job not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrJobTerminal):
		http.Error(w, "Job already finished", http.StatusConflict)
	default:
		http.Error(w, "Failed to cancel job", http.StatusInternalServerError)
	}
}

func (s *Server) listDLQ(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.dlq.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to list dead letter queue", http.StatusInternalServerError)
		return
	}
	items := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, struct {
		Items []jobResponse `json:"items"`
	}{Items: items})
}

func (s *Server) retryDLQ(w http.ResponseWriter, r *http.Request) {
	job, err := s.dlq.Retry(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toJobResponse(job))
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Job not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrNotInDeadLetter):
		http.Error(w, "Job is not dead-lettered", http.StatusConflict)
	default:
		http.Error(w, "Failed to retry job", http.StatusInternalServerError)
	}
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	balance, err := s.creditsUC.Balance(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to get balance", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		UserID  string `json:"user_id"`
		Balance int    `json:"balance"`
	}{UserID: userID, Balance: balance})
}

type creditGrantRequest struct {
	Amount int    `json:"amount"`
	Note   string `json:"note"`
}

func (s *Server) grantCredits(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	var req creditGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.creditsUC.Purchase(r.Context(), userID, req.Amount, req.Note); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to add credits", http.StatusInternalServerError)
		return
	}

	balance, err := s.creditsUC.Balance(r.Context(), userID)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		UserID  string `json:"user_id"`
		Balance int    `json:"balance"`
	}{UserID: userID, Balance: balance})
}
