package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"problem_market/internal/app/service"
	"problem_market/internal/common"
	"problem_market/internal/common/security"
	"problem_market/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIdentity struct{}

func (stubIdentity) Resolve(_ context.Context, externalID string) (*model.User, error) {
	if externalID == "user_ext" {
		return &model.User{ID: "local-1"}, nil
	}
	return nil, common.ErrUnauthorized
}

type stubUsers struct{}

func (stubUsers) GetMe(_ context.Context, userID string) (*model.User, error) {
	return &model.User{ID: userID, Name: "Ada"}, nil
}

func (stubUsers) UpdateProfile(context.Context, string, model.UpdateProfileInput) (*model.User, error) {
	return nil, common.ErrBadRequest
}

type stubLeaderboard struct{}

func (stubLeaderboard) GetLeaderboard(context.Context, string, int) (*service.Leaderboard, error) {
	return &service.Leaderboard{Period: model.PeriodAll, Entries: []model.LeaderboardEntry{}}, nil
}

func newTestRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	auth := security.NewTokenAuth([]byte("router-secret"))
	token, err := security.GenerateToken(auth, "user_ext", time.Hour)
	require.NoError(t, err)

	r := NewRouter(Dependencies{
		TokenAuth:          auth,
		Identity:           stubIdentity{},
		UserService:        stubUsers{},
		LeaderboardService: stubLeaderboard{},
		AllowedOrigins:     []string{"http://localhost:5173"},
	})
	return r, token
}

func TestRouter_Infrastructure(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, path := range []string{"/health", "/metrics", "/openapi.yaml"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	assert.Contains(t, rec.Body.String(), "/problems/{id}/vote")
}

func TestRouter_AuthenticatedRoute(t *testing.T) {
	r, token := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"local-1"`, jsonField(t, rec.Body.Bytes(), "user", "id"))
}

func TestRouter_PublicRouteIgnoresMissingToken(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/leaderboard", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/problems", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func jsonField(t *testing.T, body []byte, path ...string) string {
	t.Helper()
	var cur interface{}
	require.NoError(t, json.Unmarshal(body, &cur))
	for _, p := range path {
		m, ok := cur.(map[string]interface{})
		require.True(t, ok, "expected object at %q", p)
		cur = m[p]
	}
	out, err := json.Marshal(cur)
	require.NoError(t, err)
	return string(out)
}
