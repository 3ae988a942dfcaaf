package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-test-secret-test-secret"

func testRouter(cfg *config.Config, mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": util.CurrentUserID(c)})
	})
	r.GET("/", handlers...)
	return r
}

func token(t *testing.T, id uint, role model.UserRole) string {
	t.Helper()
	u := &model.User{Email: "u@example.com", Role: role}
	u.ID = id
	s, err := util.GenerateJWT(u, testSecret, time.Hour)
	require.NoError(t, err)
	return s
}

func do(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	r := testRouter(cfg, AuthMiddleware(cfg))

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer garbage").Code)

	w := do(r, "Bearer "+token(t, 7, model.Student))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":7}`, w.Body.String())
}

func TestTryAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	r := testRouter(cfg, TryAuthMiddleware(cfg))

	w := do(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":0}`, w.Body.String())

	w = do(r, "Bearer garbage")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":0}`, w.Body.String())

	w = do(r, "Bearer "+token(t, 3, model.Student))
	assert.JSONEq(t, `{"user":3}`, w.Body.String())
}

func TestRoleMiddleware(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	r := testRouter(cfg, AuthMiddleware(cfg), RoleMiddleware(model.Teacher))

	assert.Equal(t, http.StatusForbidden, do(r, "Bearer "+token(t, 1, model.Student)).Code)
	assert.Equal(t, http.StatusOK, do(r, "Bearer "+token(t, 2, model.Teacher)).Code)
	assert.Equal(t, http.StatusOK, do(r, "Bearer "+token(t, 3, model.Admin)).Code)
}
