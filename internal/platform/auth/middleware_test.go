package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireAuth(testSecret), func(c *gin.Context) {
		id, _ := UserID(c)
		role, _ := Role(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id, "role": role})
	})
	r.GET("/admin", RequireAuth(testSecret), RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := newRouter()
	exp := time.Now().Add(time.Hour).Unix()

	t.Run("valid token", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "42", "role": "member", "exp": exp})
		w := do(r, "/me", tok)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":42,"role":"member"}`, w.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		w := do(r, "/me", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "42", "exp": exp})
		assert.Equal(t, http.StatusUnauthorized, do(r, "/me", tok).Code)
	})

	t.Run("expired", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "42", "exp": time.Now().Add(-time.Hour).Unix()})
		assert.Equal(t, http.StatusUnauthorized, do(r, "/me", tok).Code)
	})

	t.Run("non numeric sub", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "alice", "exp": exp})
		assert.Equal(t, http.StatusUnauthorized, do(r, "/me", tok).Code)
	})

	t.Run("other algorithm", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS512, testSecret, jwt.MapClaims{"sub": "42", "exp": exp})
		assert.Equal(t, http.StatusUnauthorized, do(r, "/me", tok).Code)
	})
}

func TestRequireRole(t *testing.T) {
	r := newRouter()
	exp := time.Now().Add(time.Hour).Unix()

	admin := sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "1", "role": "admin", "exp": exp})
	assert.Equal(t, http.StatusNoContent, do(r, "/admin", admin).Code)

	member := sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "2", "role": "member", "exp": exp})
	w := do(r, "/admin", member)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"FORBIDDEN"`)

	noRole := sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "3", "exp": exp})
	assert.Equal(t, http.StatusForbidden, do(r, "/admin", noRole).Code)
}
