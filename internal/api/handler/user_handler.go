package handler

import (
	"context"
	"net/http"
	"strconv"

	"problem_market/internal/api/middleware"
	"problem_market/internal/app/service"
	"problem_market/internal/common"
	"problem_market/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type UserService interface {
	GetMe(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, in model.UpdateProfileInput) (*model.User, error)
}

type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, period string, limit int) (*service.Leaderboard, error)
}

type UserHandler struct {
	userService        UserService
	leaderboardService LeaderboardService
	auth               func(http.Handler) http.Handler
	limiter            middleware.Limiter
}

func NewUserHandler(us UserService, ls LeaderboardService, auth func(http.Handler) http.Handler, limiter middleware.Limiter) *UserHandler {
	return &UserHandler{userService: us, leaderboardService: ls, auth: auth, limiter: limiter}
}

func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RateLimit(h.limiter, middleware.ReadLimit)).Get("/leaderboard", h.getLeaderboard)

	r.Group(func(authed chi.Router) {
		authed.Use(h.auth)
		authed.With(middleware.RateLimit(h.limiter, middleware.ReadLimit)).Get("/me", h.getMe)
		authed.With(middleware.RateLimit(h.limiter, middleware.WriteLimit)).Patch("/profile", h.updateProfile)
	})
}

func (h *UserHandler) getMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetMe(r.Context(), userID)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{"user": user})
}

func (h *UserHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req model.UpdateProfileInput
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{
		"message": "Profile updated",
		"user":    user,
	})
}

func (h *UserHandler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	lb, err := h.leaderboardService.GetLeaderboard(r.Context(), r.URL.Query().Get("period"), limit)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithSuccess(w, http.StatusOK, common.Envelope{
		"count":       len(lb.Entries),
		"period":      lb.Period,
		"leaderboard": lb.Entries,
	})
}
