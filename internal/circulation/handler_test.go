package circulation

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"LIBRA-backend/internal/platform/auth"
)

var handlerSecret = []byte("handler-secret")

func token(t *testing.T, p Principal) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(p.UserID, 10),
		"role": string(p.Role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(handlerSecret)
	require.NoError(t, err)
	return s
}

func newTestRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1", auth.RequireAuth(handlerSecret))
	RegisterRoutes(api, auth.RequireRole(string(RoleAdmin)), f.svc)
	return r
}

func call(t *testing.T, r http.Handler, method, path string, p Principal, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token(t, p))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandler_LendingFlow(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	bookID := f.book(t, "9784101010151", "吾輩は猫である")
	copyID := f.copy(t, bookID)

	// 申請
	w := call(t, r, http.MethodPost, "/api/v1/requests", member7, CreateRequestRequest{BookID: bookID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	req := decode[IssueRequestResponse](t, w)
	assert.Equal(t, "pending", req.Status)
	assert.Equal(t, "/requests/"+req.ULID, w.Header().Get("Location"))

	w = call(t, r, http.MethodPost, "/api/v1/requests", member7, CreateRequestRequest{BookID: bookID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"DUPLICATE_REQUEST"`)

	// 承認は admin のみ
	w = call(t, r, http.MethodPut, "/api/v1/requests/"+req.ULID, member7, DecideRequestRequest{Status: "approved"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(t, r, http.MethodPut, "/api/v1/requests/"+req.ULID, admin, DecideRequestRequest{Status: "approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", decode[IssueRequestResponse](t, w).Status)

	// 貸出
	due := "2026-03-01"
	w = call(t, r, http.MethodPost, "/api/v1/issues", admin, CreateIssueRequest{CopyID: copyID, UserID: 7, ReturnDate: &due, RequestID: &req.ULID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	iss := decode[IssueResponse](t, w)
	assert.Equal(t, "issued", iss.Status)
	assert.Equal(t, "issued", iss.Copy.Status)
	assert.Equal(t, "0.00", iss.FineAmount)
	assert.False(t, iss.Overdue)

	w = call(t, r, http.MethodPost, "/api/v1/issues", admin, CreateIssueRequest{CopyID: copyID, UserID: 9})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"COPY_UNAVAILABLE"`)

	// 期限切れ後の参照では overdue が立つ
	f.clock.Set(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	w = call(t, r, http.MethodGet, "/api/v1/issues/"+iss.ULID, member7, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[IssueResponse](t, w).Overdue)

	w = call(t, r, http.MethodGet, "/api/v1/issues/"+iss.ULID, member9, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 返却
	w = call(t, r, http.MethodPost, "/api/v1/issues/"+iss.ULID+"/return", member7, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(t, r, http.MethodPost, "/api/v1/issues/"+iss.ULID+"/return", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ret := decode[IssueResponse](t, w)
	assert.Equal(t, "returned", ret.Status)
	assert.Equal(t, "30.00", ret.FineAmount)
	assert.True(t, ret.Overdue)
	assert.Equal(t, "available", ret.Copy.Status)

	w = call(t, r, http.MethodPost, "/api/v1/issues/"+iss.ULID+"/return", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"ALREADY_RETURNED"`)

	// 一覧
	w = call(t, r, http.MethodGet, "/api/v1/issues?limit=10", member9, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[IssueListResponse](t, w).Items)

	w = call(t, r, http.MethodGet, "/api/v1/requests?status=fulfilled", member7, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[RequestListResponse](t, w)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 0, list.NextOffset)
}

func TestHandler_BadInput(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	w := call(t, r, http.MethodPost, "/api/v1/issues", admin, map[string]any{"copy_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"INVALID_ARGUMENT"`)

	bad := "next tuesday"
	w = call(t, r, http.MethodPost, "/api/v1/issues", admin, CreateIssueRequest{CopyID: 1, UserID: 7, ReturnDate: &bad})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, r, http.MethodGet, "/api/v1/issues?status=lost", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, path := range []string{
		"/api/v1/issues?copy_id=abc",
		"/api/v1/issues?copy_id=0",
		"/api/v1/requests?book_id=abc",
		"/api/v1/exports/issues.csv?copy_id=abc",
	} {
		w = call(t, r, http.MethodGet, path, admin, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Contains(t, w.Body.String(), `"code":"INVALID_ARGUMENT"`, path)
	}

	w = call(t, r, http.MethodPatch, "/api/v1/copies/abc/status", admin, UpdateCopyStatusRequest{Status: "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, r, http.MethodPatch, "/api/v1/copies/42/status", admin, UpdateCopyStatusRequest{Status: "lost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"COPY_NOT_FOUND"`)

	w = call(t, r, http.MethodGet, "/api/v1/requests/unknown", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_UpdateCopyStatus(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	copyID := f.copy(t, f.book(t, "9784101010168", "こころ"))
	path := "/api/v1/copies/" + strconv.FormatInt(copyID, 10) + "/status"

	w := call(t, r, http.MethodPatch, path, admin, UpdateCopyStatusRequest{Status: "maintenance"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "maintenance", decode[CopyResponse](t, w).Status)

	w = call(t, r, http.MethodPatch, path, admin, UpdateCopyStatusRequest{Status: "issued"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"INVALID_TRANSITION"`)
}

func TestHandler_ExportIssues(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	bookID := f.book(t, "9784101010175", "吾輩は猫である")
	c1, c2 := f.copy(t, bookID), f.copy(t, bookID)

	_, err := f.svc.IssueCopy(context.Background(), admin, IssueInput{CopyID: c1, UserID: 7, DueDate: date(2026, 3, 1)})
	require.NoError(t, err)
	_, err = f.svc.IssueCopy(context.Background(), admin, IssueInput{CopyID: c2, UserID: 9})
	require.NoError(t, err)

	w := call(t, r, http.MethodGet, "/api/v1/exports/issues.csv", member7, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, r, http.MethodGet, "/api/v1/exports/issues.csv?encoding=ebcdic", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	t.Run("utf8", func(t *testing.T) {
		w := call(t, r, http.MethodGet, "/api/v1/exports/issues.csv", admin, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "issues_20260201.csv")

		records, err := csv.NewReader(w.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, exportHeader, records[0])
		assert.Equal(t, "吾輩は猫である", records[1][5])
		assert.Equal(t, "2026-03-01T00:00:00Z", records[1][8])
		assert.Equal(t, "", records[2][8])
		assert.Equal(t, "0.00", records[2][10])
	})

	t.Run("utf8bom", func(t *testing.T) {
		w := call(t, r, http.MethodGet, "/api/v1/exports/issues.csv?encoding=utf8bom", admin, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}))
	})

	t.Run("sjis", func(t *testing.T) {
		w := call(t, r, http.MethodGet, "/api/v1/exports/issues.csv?encoding=sjis&only_outstanding=true", admin, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv; charset=shift_jis", w.Header().Get("Content-Type"))
		assert.False(t, strings.Contains(w.Body.String(), "吾輩"), "body should not be utf-8")

		decoded := transform.NewReader(bytes.NewReader(w.Body.Bytes()), japanese.ShiftJIS.NewDecoder())
		records, err := csv.NewReader(decoded).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "吾輩は猫である", records[1][5])
	})
}
