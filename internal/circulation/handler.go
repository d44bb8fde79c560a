package circulation

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"LIBRA-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterRoutes は認証済みグループ r に貸出系のルートを登録する。
// admin は管理者専用ルートに挟むミドルウェア（auth.RequireRole("admin") など）
func RegisterRoutes(r gin.IRoutes, admin gin.HandlerFunc, svc *Service) {
	h := &Handler{svc: svc}

	// 申請
	r.POST("/requests", h.CreateRequest)
	r.GET("/requests", h.ListRequests)
	r.GET("/requests/:key", h.GetRequest)
	r.PUT("/requests/:key", admin, h.DecideRequest)

	// 貸出・返却
	r.POST("/issues", admin, h.CreateIssue)
	r.GET("/issues", h.ListIssues)
	r.GET("/issues/:key", h.GetIssue)
	r.POST("/issues/:key/return", admin, h.ReturnIssue)
	r.GET("/exports/issues.csv", admin, h.ExportIssues)

	// 蔵書ステータス
	r.PATCH("/copies/:id/status", admin, h.UpdateCopyStatus)
}

func principal(c *gin.Context) Principal {
	uid, _ := auth.UserID(c)
	role, _ := auth.Role(c)
	return Principal{UserID: uid, Role: Role(role)}
}

// ---------- requests ----------

// CreateRequest godoc
// @Summary  貸出申請
// @Tags     requests
// @Accept   json
// @Produce  json
// @Param    body body CreateRequestRequest true "申請内容"
// @Success  201 {object} IssueRequestResponse
// @Failure  404 {object} errorDTO
// @Failure  409 {object} errorDTO
// @Security BearerAuth
// @Router   /requests [post]
func (h *Handler) CreateRequest(c *gin.Context) {
	var req CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing book_id"))
		return
	}
	res, err := h.svc.RequestBook(c.Request.Context(), principal(c), req.BookID)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("Location", "/requests/"+res.ULID)
	c.JSON(http.StatusCreated, toRequestResponse(res))
}

// ListRequests godoc
// @Summary  貸出申請一覧（admin 以外は自分の申請のみ）
// @Tags     requests
// @Produce  json
// @Param    status  query string false "pending|approved|rejected|fulfilled"
// @Param    book_id query int    false "book id"
// @Param    limit   query int    false "default 100, max 500"
// @Param    offset  query int    false "offset"
// @Param    order   query string false "asc|desc"
// @Success  200 {object} RequestListResponse
// @Security BearerAuth
// @Router   /requests [get]
func (h *Handler) ListRequests(c *gin.Context) {
	var f RequestFilter
	if v := c.Query("status"); v != "" {
		st, ok := ParseRequestStatus(v)
		if !ok {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid status"))
			return
		}
		f.Status = &st
	}
	if v := c.Query("book_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid book_id"))
			return
		}
		f.BookID = &id
	}
	p := pageFromQuery(c)
	items, total, err := h.svc.ListRequests(c.Request.Context(), principal(c), f, p)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	out := make([]IssueRequestResponse, 0, len(items))
	for i := range items {
		out = append(out, toRequestResponse(&items[i]))
	}
	c.JSON(http.StatusOK, RequestListResponse{Items: out, Total: total, NextOffset: nextOffset(total, p)})
}

// GetRequest godoc
// @Summary  貸出申請取得（ID or ULID）
// @Tags     requests
// @Produce  json
// @Param    key path string true "id or ulid"
// @Success  200 {object} IssueRequestResponse
// @Failure  404 {object} errorDTO
// @Security BearerAuth
// @Router   /requests/{key} [get]
func (h *Handler) GetRequest(c *gin.Context) {
	res, err := h.svc.GetRequestByKey(c.Request.Context(), principal(c), c.Param("key"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(res))
}

// DecideRequest godoc
// @Summary  申請ステータス更新（admin）
// @Tags     requests
// @Accept   json
// @Produce  json
// @Param    key  path string               true "id or ulid"
// @Param    body body DecideRequestRequest true "approved|rejected|fulfilled"
// @Success  200 {object} IssueRequestResponse
// @Failure  400 {object} errorDTO
// @Failure  404 {object} errorDTO
// @Security BearerAuth
// @Router   /requests/{key} [put]
func (h *Handler) DecideRequest(c *gin.Context) {
	var req DecideRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.DecideRequest(c.Request.Context(), principal(c), c.Param("key"), RequestStatus(req.Status))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(res))
}

// ---------- issues ----------

// CreateIssue godoc
// @Summary  貸出登録（admin）
// @Tags     issues
// @Accept   json
// @Produce  json
// @Param    body body CreateIssueRequest true "貸出内容"
// @Success  201 {object} IssueResponse
// @Failure  404 {object} errorDTO
// @Failure  409 {object} errorDTO
// @Security BearerAuth
// @Router   /issues [post]
func (h *Handler) CreateIssue(c *gin.Context) {
	var req CreateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	in := IssueInput{CopyID: req.CopyID, UserID: req.UserID}
	if req.ReturnDate != nil && *req.ReturnDate != "" {
		t, err := parseDate(*req.ReturnDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid return_date, expected RFC3339 or YYYY-MM-DD"))
			return
		}
		in.DueDate = &t
	}
	if req.RequestID != nil {
		in.RequestKey = *req.RequestID
	}

	res, err := h.svc.IssueCopy(c.Request.Context(), principal(c), in)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("Location", "/issues/"+res.ULID)
	c.JSON(http.StatusCreated, toIssueResponse(res, h.svc.clock.Now()))
}

// ListIssues godoc
// @Summary  貸出一覧（admin 以外は自分の貸出のみ）
// @Tags     issues
// @Produce  json
// @Param    status           query string false "issued|returned|overdue"
// @Param    copy_id          query int    false "copy id"
// @Param    only_outstanding query bool   false "未返却のみ"
// @Param    limit            query int    false "default 100, max 500"
// @Param    offset           query int    false "offset"
// @Param    order            query string false "asc|desc"
// @Success  200 {object} IssueListResponse
// @Security BearerAuth
// @Router   /issues [get]
func (h *Handler) ListIssues(c *gin.Context) {
	f, ok := issueFilterFromQuery(c)
	if !ok {
		return
	}
	p := pageFromQuery(c)
	items, total, err := h.svc.ListIssues(c.Request.Context(), principal(c), f, p)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	now := h.svc.clock.Now()
	out := make([]IssueResponse, 0, len(items))
	for i := range items {
		out = append(out, toIssueResponse(&items[i], now))
	}
	c.JSON(http.StatusOK, IssueListResponse{Items: out, Total: total, NextOffset: nextOffset(total, p)})
}

// GetIssue godoc
// @Summary  貸出取得（ID or ULID）
// @Tags     issues
// @Produce  json
// @Param    key path string true "id or ulid"
// @Success  200 {object} IssueResponse
// @Failure  404 {object} errorDTO
// @Security BearerAuth
// @Router   /issues/{key} [get]
func (h *Handler) GetIssue(c *gin.Context) {
	res, err := h.svc.GetIssueByKey(c.Request.Context(), principal(c), c.Param("key"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, toIssueResponse(res, h.svc.clock.Now()))
}

// ReturnIssue godoc
// @Summary  返却（admin）。延滞罰金を確定する
// @Tags     issues
// @Produce  json
// @Param    key path string true "id or ulid"
// @Success  200 {object} IssueResponse
// @Failure  404 {object} errorDTO
// @Failure  409 {object} errorDTO
// @Security BearerAuth
// @Router   /issues/{key}/return [post]
func (h *Handler) ReturnIssue(c *gin.Context) {
	res, err := h.svc.ReturnCopy(c.Request.Context(), principal(c), c.Param("key"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, toIssueResponse(res, h.svc.clock.Now()))
}

// ExportIssues godoc
// @Summary  貸出履歴の CSV 出力（admin）
// @Tags     issues
// @Produce  text/csv
// @Param    encoding         query string false "utf8|utf8bom|sjis"
// @Param    only_outstanding query bool   false "未返却のみ"
// @Success  200 {file} file
// @Security BearerAuth
// @Router   /exports/issues.csv [get]
func (h *Handler) ExportIssues(c *gin.Context) {
	f, ok := issueFilterFromQuery(c)
	if !ok {
		return
	}
	enc := strings.ToLower(c.DefaultQuery("encoding", EncodingUTF8))

	var buf bytes.Buffer
	if err := h.svc.ExportIssues(c.Request.Context(), principal(c), f, enc, &buf); err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	charset := "utf-8"
	if enc == EncodingSJIS {
		charset = "shift_jis"
	}
	filename := "issues_" + h.svc.clock.Now().Format("20060102") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset="+charset, buf.Bytes())
}

// ---------- copies ----------

// UpdateCopyStatus godoc
// @Summary  蔵書ステータス変更（admin）
// @Tags     copies
// @Accept   json
// @Produce  json
// @Param    id   path int                     true "copy id"
// @Param    body body UpdateCopyStatusRequest true "available|maintenance|lost"
// @Success  200 {object} CopyResponse
// @Failure  404 {object} errorDTO
// @Failure  409 {object} errorDTO
// @Security BearerAuth
// @Router   /copies/{id}/status [patch]
func (h *Handler) UpdateCopyStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid copy id"))
		return
	}
	var req UpdateCopyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.SetCopyStatus(c.Request.Context(), principal(c), id, CopyStatus(req.Status))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, toCopyResponse(res))
}

// ---------- helpers ----------

func issueFilterFromQuery(c *gin.Context) (IssueFilter, bool) {
	var f IssueFilter
	if v := c.Query("status"); v != "" {
		st, ok := ParseIssueStatus(v)
		if !ok {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid status"))
			return f, false
		}
		f.Status = &st
	}
	if v := c.Query("copy_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid copy_id"))
			return f, false
		}
		f.CopyID = &id
	}
	if v := c.Query("only_outstanding"); v == "true" || v == "1" {
		f.OnlyOutstanding = true
	}
	return f, true
}

func pageFromQuery(c *gin.Context) Page {
	return Page{
		Limit:  parseIntDefault(c.Query("limit"), defaultLimit),
		Offset: parseIntDefault(c.Query("offset"), 0),
		Order:  strings.ToLower(c.DefaultQuery("order", "asc")),
	}.normalize()
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func nextOffset(total int64, p Page) int {
	n := p.Offset + p.Limit
	if n >= int(total) {
		return 0
	}
	return n
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	var api *APIError
	if errors.As(err, &api) {
		return errorBody(api.Code, api.Message)
	}
	return errorBody(CodeInternal, "internal error")
}
