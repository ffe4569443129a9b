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

type ProblemService interface {
	CreateProblem(ctx context.Context, userID string, in model.CreateProblemInput) (*service.CreateProblemResult, error)
	ListProblems(ctx context.Context, q service.ListProblemsQuery) (*service.ProblemPage, error)
	GetProblem(ctx context.Context, id string) (*model.Problem, error)
	UpdateProblem(ctx context.Context, userID, id string, in model.UpdateProblemInput) (*model.Problem, error)
	CloseProblem(ctx context.Context, userID, id string) (*model.Problem, error)
	VoteProblem(ctx context.Context, userID, id string) (model.VoteResult, error)
	MyProblems(ctx context.Context, userID string, q service.MyProblemsQuery) (*service.MyProblemsPage, error)
}

type ProblemHandler struct {
	problemService ProblemService
	auth           func(http.Handler) http.Handler
	limiter        middleware.Limiter
}

func NewProblemHandler(ps ProblemService, auth func(http.Handler) http.Handler, limiter middleware.Limiter) *ProblemHandler {
	return &ProblemHandler{problemService: ps, auth: auth, limiter: limiter}
}

func (h *ProblemHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RateLimit(h.limiter, middleware.ReadLimit)).Get("/", h.listProblems)
	r.With(middleware.RateLimit(h.limiter, middleware.ReadLimit)).Get("/{problemID}", h.getProblem)

	r.Group(func(authed chi.Router) {
		authed.Use(h.auth)
		authed.With(middleware.RateLimit(h.limiter, middleware.ReadLimit)).Get("/user/my-problems", h.myProblems)
		authed.With(middleware.RateLimit(h.limiter, middleware.CreateProblemLimit)).Post("/", h.createProblem)
		authed.With(middleware.RateLimit(h.limiter, middleware.WriteLimit)).Patch("/{problemID}", h.updateProblem)
		authed.With(middleware.RateLimit(h.limiter, middleware.WriteLimit)).Patch("/{problemID}/close", h.closeProblem)
		authed.With(middleware.RateLimit(h.limiter, middleware.VoteLimit)).Patch("/{problemID}/vote", h.voteProblem)
	})
}

func (h *ProblemHandler) createProblem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req model.CreateProblemInput
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.problemService.CreateProblem(r.Context(), userID, req)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusCreated, common.Envelope{
		"message":            "Problem posted successfully",
		"problem":            res.Problem,
		"remainingThisMonth": res.RemainingThisMonth,
	})
}

func (h *ProblemHandler) listProblems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.problemService.ListProblems(r.Context(), service.ListProblemsQuery{
		Category:  q.Get("category"),
		PainLevel: q.Get("painLevel"),
		Frequency: q.Get("frequency"),
		Audience:  queryList(r, "audience"),
		Search:    q.Get("search"),
		Status:    q.Get("status"),
		SortBy:    q.Get("sortBy"),
		Page:      queryInt(r, "page"),
		Limit:     queryInt(r, "limit"),
	})
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{
		"count":       len(page.Problems),
		"total":       page.Total,
		"totalPages":  page.TotalPages,
		"currentPage": page.Page,
		"problems":    page.Problems,
	})
}

func (h *ProblemHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	problem, err := h.problemService.GetProblem(r.Context(), chi.URLParam(r, "problemID"))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{"problem": problem})
}

func (h *ProblemHandler) updateProblem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req model.UpdateProblemInput
	if !decodeJSON(w, r, &req) {
		return
	}

	problem, err := h.problemService.UpdateProblem(r.Context(), userID, chi.URLParam(r, "problemID"), req)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{
		"message": "Problem updated successfully",
		"problem": problem,
	})
}

func (h *ProblemHandler) closeProblem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	problem, err := h.problemService.CloseProblem(r.Context(), userID, chi.URLParam(r, "problemID"))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{
		"message": "Problem closed",
		"problem": problem,
	})
}

func (h *ProblemHandler) voteProblem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	res, err := h.problemService.VoteProblem(r.Context(), userID, chi.URLParam(r, "problemID"))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	msg := "Upvote removed"
	if res.Voted {
		msg = "Problem upvoted"
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{
		"message":    msg,
		"upvotes":    res.Count,
		"hasUpvoted": res.Voted,
	})
}

func (h *ProblemHandler) myProblems(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, err := h.problemService.MyProblems(r.Context(), userID, service.MyProblemsQuery{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		SortBy:   q.Get("sortBy"),
		Order:    q.Get("order"),
		Page:     queryInt(r, "page"),
		Limit:    queryInt(r, "limit"),
	})
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{
		"count":       len(page.Problems),
		"total":       page.Total,
		"totalPages":  page.TotalPages,
		"currentPage": page.Page,
		"stats":       page.Stats,
		"problems":    page.Problems,
	})
}
