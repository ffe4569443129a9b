package handler

import (
	"context"
	"net/http"

	"problem_market/internal/api/middleware"
	"problem_market/internal/app/service"
	"problem_market/internal/common"
	"problem_market/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type SubmissionService interface {
	CreateSubmission(ctx context.Context, userID string, in model.CreateSubmissionInput) (*model.Submission, error)
	ListByProblem(ctx context.Context, problemID string) ([]model.Submission, error)
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	UpdateSubmission(ctx context.Context, userID, id string, in model.UpdateSubmissionInput) (*model.Submission, error)
	DeleteSubmission(ctx context.Context, userID, id string) error
	VoteSubmission(ctx context.Context, userID, id string) (model.VoteResult, error)
	SelectWinner(ctx context.Context, userID, submissionID string) (*model.Submission, error)
	MySubmissions(ctx context.Context, userID, status string, page, limit int) (*service.SubmissionPage, error)
}

type SubmissionHandler struct {
	submissionService SubmissionService
	auth              func(http.Handler) http.Handler
	limiter           middleware.Limiter
}

func NewSubmissionHandler(ss SubmissionService, auth func(http.Handler) http.Handler, limiter middleware.Limiter) *SubmissionHandler {
	return &SubmissionHandler{submissionService: ss, auth: auth, limiter: limiter}
}

func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RateLimit(h.limiter, middleware.ReadLimit)).Get("/problem/{problemID}", h.listByProblem)
	r.With(middleware.RateLimit(h.limiter, middleware.ReadLimit)).Get("/{submissionID}", h.getSubmission)

	r.Group(func(authed chi.Router) {
		authed.Use(h.auth)
		authed.With(middleware.RateLimit(h.limiter, middleware.ReadLimit)).Get("/my-submissions", h.mySubmissions)
		authed.With(middleware.RateLimit(h.limiter, middleware.SubmissionLimit)).Post("/", h.createSubmission)
		authed.With(middleware.RateLimit(h.limiter, middleware.WriteLimit)).Patch("/{submissionID}", h.updateSubmission)
		authed.With(middleware.RateLimit(h.limiter, middleware.WriteLimit)).Delete("/{submissionID}", h.deleteSubmission)
		authed.With(middleware.RateLimit(h.limiter, middleware.VoteLimit)).Patch("/{submissionID}/vote", h.voteSubmission)
		authed.With(middleware.RateLimit(h.limiter, middleware.WriteLimit)).Patch("/{submissionID}/winner", h.selectWinner)
	})
}

func (h *SubmissionHandler) createSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req model.CreateSubmissionInput
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.submissionService.CreateSubmission(r.Context(), userID, req)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusCreated, common.Envelope{
		"message":    "Submission posted successfully",
		"submission": sub,
	})
}

func (h *SubmissionHandler) listByProblem(w http.ResponseWriter, r *http.Request) {
	subs, err := h.submissionService.ListByProblem(r.Context(), chi.URLParam(r, "problemID"))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{
		"count":       len(subs),
		"submissions": subs,
	})
}

func (h *SubmissionHandler) getSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.submissionService.GetSubmission(r.Context(), chi.URLParam(r, "submissionID"))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{"submission": sub})
}

func (h *SubmissionHandler) updateSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req model.UpdateSubmissionInput
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.submissionService.UpdateSubmission(r.Context(), userID, chi.URLParam(r, "submissionID"), req)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{
		"message":    "Submission updated",
		"submission": sub,
	})
}

func (h *SubmissionHandler) deleteSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.submissionService.DeleteSubmission(r.Context(), userID, chi.URLParam(r, "submissionID")); err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{"message": "Submission withdrawn"})
}

func (h *SubmissionHandler) voteSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	res, err := h.submissionService.VoteSubmission(r.Context(), userID, chi.URLParam(r, "submissionID"))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	msg := "Vote removed"
	if res.Voted {
		msg = "Vote recorded"
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{
		"message":   msg,
		"voteCount": res.Count,
		"hasVoted":  res.Voted,
	})
}

func (h *SubmissionHandler) selectWinner(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	sub, err := h.submissionService.SelectWinner(r.Context(), userID, chi.URLParam(r, "submissionID"))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{
		"message":    "Winner selected",
		"submission": sub,
	})
}

func (h *SubmissionHandler) mySubmissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	page, err := h.submissionService.MySubmissions(r.Context(), userID,
		r.URL.Query().Get("status"), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{
		"count":       len(page.Submissions),
		"total":       page.Total,
		"totalPages":  page.TotalPages,
		"currentPage": page.Page,
		"stats":       page.Stats,
		"submissions": page.Submissions,
	})
}
