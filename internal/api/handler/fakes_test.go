package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"problem_market/internal/api/middleware"
	"problem_market/internal/app/service"
	"problem_market/internal/common"
	"problem_market/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const testUserHeader = "X-Test-User"

// testAuth stands in for the token authenticator: the caller is whoever the
// test header names.
func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(testUserHeader)
		if id == "" {
			common.RespondWithAppError(w, r, common.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), &model.User{ID: id})))
	})
}

type fakeProblemService struct {
	create func(ctx context.Context, userID string, in model.CreateProblemInput) (*service.CreateProblemResult, error)
	list   func(ctx context.Context, q service.ListProblemsQuery) (*service.ProblemPage, error)
	get    func(ctx context.Context, id string) (*model.Problem, error)
	update func(ctx context.Context, userID, id string, in model.UpdateProblemInput) (*model.Problem, error)
	close  func(ctx context.Context, userID, id string) (*model.Problem, error)
	vote   func(ctx context.Context, userID, id string) (model.VoteResult, error)
	mine   func(ctx context.Context, userID string, q service.MyProblemsQuery) (*service.MyProblemsPage, error)
}

func (f *fakeProblemService) CreateProblem(ctx context.Context, userID string, in model.CreateProblemInput) (*service.CreateProblemResult, error) {
	return f.create(ctx, userID, in)
}
func (f *fakeProblemService) ListProblems(ctx context.Context, q service.ListProblemsQuery) (*service.ProblemPage, error) {
	return f.list(ctx, q)
}
func (f *fakeProblemService) GetProblem(ctx context.Context, id string) (*model.Problem, error) {
	return f.get(ctx, id)
}
func (f *fakeProblemService) UpdateProblem(ctx context.Context, userID, id string, in model.UpdateProblemInput) (*model.Problem, error) {
	return f.update(ctx, userID, id, in)
}
func (f *fakeProblemService) CloseProblem(ctx context.Context, userID, id string) (*model.Problem, error) {
	return f.close(ctx, userID, id)
}
func (f *fakeProblemService) VoteProblem(ctx context.Context, userID, id string) (model.VoteResult, error) {
	return f.vote(ctx, userID, id)
}
func (f *fakeProblemService) MyProblems(ctx context.Context, userID string, q service.MyProblemsQuery) (*service.MyProblemsPage, error) {
	return f.mine(ctx, userID, q)
}

type fakeSubmissionService struct {
	create func(ctx context.Context, userID string, in model.CreateSubmissionInput) (*model.Submission, error)
	list   func(ctx context.Context, problemID string) ([]model.Submission, error)
	get    func(ctx context.Context, id string) (*model.Submission, error)
	update func(ctx context.Context, userID, id string, in model.UpdateSubmissionInput) (*model.Submission, error)
	delete func(ctx context.Context, userID, id string) error
	vote   func(ctx context.Context, userID, id string) (model.VoteResult, error)
	winner func(ctx context.Context, userID, submissionID string) (*model.Submission, error)
	mine   func(ctx context.Context, userID, status string, page, limit int) (*service.SubmissionPage, error)
}

func (f *fakeSubmissionService) CreateSubmission(ctx context.Context, userID string, in model.CreateSubmissionInput) (*model.Submission, error) {
	return f.create(ctx, userID, in)
}
func (f *fakeSubmissionService) ListByProblem(ctx context.Context, problemID string) ([]model.Submission, error) {
	return f.list(ctx, problemID)
}
func (f *fakeSubmissionService) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	return f.get(ctx, id)
}
func (f *fakeSubmissionService) UpdateSubmission(ctx context.Context, userID, id string, in model.UpdateSubmissionInput) (*model.Submission, error) {
	return f.update(ctx, userID, id, in)
}
func (f *fakeSubmissionService) DeleteSubmission(ctx context.Context, userID, id string) error {
	return f.delete(ctx, userID, id)
}
func (f *fakeSubmissionService) VoteSubmission(ctx context.Context, userID, id string) (model.VoteResult, error) {
	return f.vote(ctx, userID, id)
}
func (f *fakeSubmissionService) SelectWinner(ctx context.Context, userID, submissionID string) (*model.Submission, error) {
	return f.winner(ctx, userID, submissionID)
}
func (f *fakeSubmissionService) MySubmissions(ctx context.Context, userID, status string, page, limit int) (*service.SubmissionPage, error) {
	return f.mine(ctx, userID, status, page, limit)
}

type fakeUserService struct {
	getMe         func(ctx context.Context, userID string) (*model.User, error)
	updateProfile func(ctx context.Context, userID string, in model.UpdateProfileInput) (*model.User, error)
}

func (f *fakeUserService) GetMe(ctx context.Context, userID string) (*model.User, error) {
	return f.getMe(ctx, userID)
}
func (f *fakeUserService) UpdateProfile(ctx context.Context, userID string, in model.UpdateProfileInput) (*model.User, error) {
	return f.updateProfile(ctx, userID, in)
}

type fakeLeaderboardService struct {
	get func(ctx context.Context, period string, limit int) (*service.Leaderboard, error)
}

func (f *fakeLeaderboardService) GetLeaderboard(ctx context.Context, period string, limit int) (*service.Leaderboard, error) {
	return f.get(ctx, period, limit)
}

type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

func mount(prefix string, h routeRegistrar) http.Handler {
	r := chi.NewRouter()
	r.Route(prefix, h.RegisterRoutes)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, target, userID, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if userID != "" {
		req.Header.Set(testUserHeader, userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}
