package catalog

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// テストでは X-Role ヘッダで admin を模す
func fakeAdmin(c *gin.Context) {
	if c.GetHeader("X-Role") != "admin" {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.Next()
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, fakeAdmin, newTestService(t))

	do := func(method, path, role string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		if role != "" {
			req.Header.Set("X-Role", role)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/books", "member", CreateBookRequest{ISBN: "9784101010014", Title: "坊っちゃん"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(http.MethodPost, "/books", "admin", CreateBookRequest{ISBN: "9784101010014", Title: "坊っちゃん"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var book BookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &book))
	assert.Equal(t, "/books/1", w.Header().Get("Location"))

	w = do(http.MethodPost, "/books", "admin", CreateBookRequest{ISBN: "978-4-10-101001-4", Title: "again"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"CONFLICT"`)

	w = do(http.MethodPost, "/copies", "admin", CreateCopyRequest{BookID: book.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(http.MethodGet, "/copies?book_id=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = do(http.MethodGet, "/books/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodGet, "/books/42", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"NOT_FOUND"`)
}
