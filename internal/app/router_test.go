package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret-router-test-secret"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func testConfig() *config.Config {
	return &config.Config{
		Server:       config.ServerConfig{Port: "0", Mode: gin.TestMode},
		JWT:          config.JWTConfig{Secret: testSecret, ExpireTime: time.Hour},
		CORS:         config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		RateLimit:    config.RateLimitConfig{MaxRequests: 1000, WindowMinutes: 1},
		Progress:     config.DefaultProgress(),
		TimeTracking: config.DefaultTimeTracking(),
	}
}

type client struct {
	t      *testing.T
	router *gin.Engine
}

func (c *client) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func tokenFor(t *testing.T, u *model.User) string {
	t.Helper()
	s, err := util.GenerateJWT(u, testSecret, time.Hour)
	require.NoError(t, err)
	return s
}

func setup(t *testing.T) (*App, *client) {
	db := testutil.DB(t)
	a := New(testConfig(), db, nil)
	return a, &client{t: t, router: a.Router}
}

func TestHealth(t *testing.T) {
	_, c := setup(t)

	w, env := c.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","components":{"database":"up","redis":"disabled"}}`, string(env.Data))
}

func TestContentInteractionRoutes(t *testing.T) {
	a, c := setup(t)
	user := testutil.CreateUser(t, a.DB, "ann")
	ex := testutil.CreateExercise(t, a.DB, "two sum")
	token := tokenFor(t, user)
	base := fmt.Sprintf("/api/content/exercise/%d", ex.ID)

	w, _ := c.do(http.MethodPost, base+"/vote", "", map[string]int{"value": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := c.do(http.MethodPost, base+"/vote", token, map[string]int{"value": 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userVote":1,"voteCount":1}`, string(env.Data))

	w, _ = c.do(http.MethodPost, base+"/vote", token, map[string]int{"value": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 游客可以看统计，但没有个人状态
	w, env = c.do(http.MethodGet, base+"/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		VoteCount int64 `json:"voteCount"`
		UserVote  int   `json:"userVote"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.VoteCount)
	assert.Equal(t, 0, stats.UserVote)

	w, env = c.do(http.MethodGet, base+"/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.UserVote)

	w, _ = c.do(http.MethodPost, base+"/report", token, map[string]string{"reason": "spam"})
	assert.Equal(t, http.StatusCreated, w.Code)
	w, _ = c.do(http.MethodPost, base+"/report", token, map[string]string{"reason": "spam"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = c.do(http.MethodPost, "/api/content/podcast/1/vote", token, map[string]int{"value": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = c.do(http.MethodGet, "/api/content/exercise/999/stats", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimeTrackingRoutes(t *testing.T) {
	a, c := setup(t)
	user := testutil.CreateUser(t, a.DB, "bo")
	exam := testutil.CreateExam(t, a.DB, "final")
	token := tokenFor(t, user)
	base := fmt.Sprintf("/api/content/exam/%d", exam.ID)

	w, _ := c.do(http.MethodPost, base+"/sessions/save", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env := c.do(http.MethodPost, base+"/session-time", token, map[string]float64{"time_seconds": 95})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalTimeSeconds":0,"totalTimeFormatted":"0s","currentSessionSeconds":95,"isActive":true}`, string(env.Data))

	w, env = c.do(http.MethodPost, base+"/sessions/save", token, map[string]string{"session_type": "review"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalTimeSeconds":95,"totalTimeFormatted":"1m 35s","currentSessionSeconds":0,"isActive":false}`, string(env.Data))

	w, env = c.do(http.MethodPost, base+"/sessions/save", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No active session to save", env.Message)

	w, _ = c.do(http.MethodGet, base+"/sessions", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = c.do(http.MethodGet, "/api/me/time-statistics", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = c.do(http.MethodPost, "/api/content/comment/1/session-time", token, map[string]float64{"time_seconds": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminSweepRequiresAdmin(t *testing.T) {
	a, c := setup(t)
	student := testutil.CreateUser(t, a.DB, "cy")
	admin := &model.User{Name: "root", Email: "root@example.com", Role: model.Admin}
	require.NoError(t, a.DB.Create(admin).Error)

	w, _ := c.do(http.MethodPost, "/api/admin/time-tracking/sweep", tokenFor(t, student), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := c.do(http.MethodPost, "/api/admin/time-tracking/sweep", tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"closed":0}`, string(env.Data))
}

func TestReloadConfigUpdatesRewards(t *testing.T) {
	a, _ := setup(t)

	next := testConfig()
	next.Progress.VideoXP = 25
	a.ReloadConfig(next)

	assert.Equal(t, 25, a.services.progress.Rewards().VideoXP)
}
