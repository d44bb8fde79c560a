package catalog

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

// RegisterRoutes: 参照は認証済みなら誰でも、登録は admin ミドルウェアを挟む
func RegisterRoutes(r gin.IRoutes, admin gin.HandlerFunc, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/publishers", admin, h.CreatePublisher)
	r.GET("/publishers", h.ListPublishers)

	r.POST("/authors", admin, h.CreateAuthor)
	r.GET("/authors", h.ListAuthors)

	r.POST("/books", admin, h.CreateBook)
	r.GET("/books", h.ListBooks)
	r.GET("/books/:id", h.GetBook)

	r.POST("/copies", admin, h.CreateCopy)
	r.GET("/copies", h.ListCopies)
	r.GET("/copies/:id", h.GetCopy)
}

// ===== publishers / authors =====

// CreatePublisher godoc
// @Summary  出版社登録（admin）
// @Tags     catalog
// @Accept   json
// @Produce  json
// @Param    body body CreatePublisherRequest true "出版社"
// @Success  201 {object} PublisherResponse
// @Failure  409 {object} errDTO
// @Security BearerAuth
// @Router   /publishers [post]
func (h *Handler) CreatePublisher(c *gin.Context) {
	var req CreatePublisherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.CreatePublisher(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

// @Summary  出版社一覧
// @Tags     catalog
// @Produce  json
// @Success  200 {array} PublisherResponse
// @Security BearerAuth
// @Router   /publishers [get]
func (h *Handler) ListPublishers(c *gin.Context) {
	items, err := h.svc.ListPublishers(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary  著者登録（admin）
// @Tags     catalog
// @Accept   json
// @Produce  json
// @Param    body body CreateAuthorRequest true "著者"
// @Success  201 {object} AuthorResponse
// @Security BearerAuth
// @Router   /authors [post]
func (h *Handler) CreateAuthor(c *gin.Context) {
	var req CreateAuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.CreateAuthor(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

// @Summary  著者一覧
// @Tags     catalog
// @Produce  json
// @Param    limit  query int    false "default 100"
// @Param    offset query int    false "offset"
// @Param    order  query string false "asc|desc"
// @Security BearerAuth
// @Router   /authors [get]
func (h *Handler) ListAuthors(c *gin.Context) {
	p := pageFromQuery(c)
	items, total, err := h.svc.ListAuthors(c.Request.Context(), p)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, p)})
}

// ===== books =====

// @Summary  書籍登録（admin）。ISBN は全角・ハイフン入りでも可
// @Tags     catalog
// @Accept   json
// @Produce  json
// @Param    body body CreateBookRequest true "書籍"
// @Success  201 {object} BookResponse
// @Failure  400 {object} errDTO
// @Failure  409 {object} errDTO
// @Security BearerAuth
// @Router   /books [post]
func (h *Handler) CreateBook(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateBook(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Header("Location", "/books/"+strconv.FormatInt(res.ID, 10))
	c.JSON(http.StatusCreated, res)
}

// @Summary  書籍一覧
// @Tags     catalog
// @Produce  json
// @Param    limit  query int    false "default 100"
// @Param    offset query int    false "offset"
// @Param    order  query string false "asc|desc"
// @Security BearerAuth
// @Router   /books [get]
func (h *Handler) ListBooks(c *gin.Context) {
	p := pageFromQuery(c)
	items, total, err := h.svc.ListBooks(c.Request.Context(), p)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, p)})
}

// @Summary  書籍取得
// @Tags     catalog
// @Produce  json
// @Param    id path int true "book id"
// @Success  200 {object} BookResponse
// @Failure  404 {object} errDTO
// @Security BearerAuth
// @Router   /books/{id} [get]
func (h *Handler) GetBook(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	res, err := h.svc.GetBook(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ===== copies =====

// @Summary  蔵書登録（admin）
// @Tags     catalog
// @Accept   json
// @Produce  json
// @Param    body body CreateCopyRequest true "蔵書"
// @Success  201 {object} CopyResponse
// @Failure  404 {object} errDTO
// @Security BearerAuth
// @Router   /copies [post]
func (h *Handler) CreateCopy(c *gin.Context) {
	var req CreateCopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json or missing book_id"))
		return
	}
	res, err := h.svc.CreateCopy(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Header("Location", "/copies/"+strconv.FormatInt(res.ID, 10))
	c.JSON(http.StatusCreated, res)
}

// @Summary  蔵書一覧
// @Tags     catalog
// @Produce  json
// @Param    book_id query int    false "book id"
// @Param    status  query string false "available|issued|maintenance|lost"
// @Param    limit   query int    false "default 100"
// @Param    offset  query int    false "offset"
// @Security BearerAuth
// @Router   /copies [get]
func (h *Handler) ListCopies(c *gin.Context) {
	var f CopyFilter
	if v := c.Query("book_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.BookID = &id
		}
	}
	if v := c.Query("status"); v != "" {
		f.Status = &v
	}
	p := pageFromQuery(c)
	items, total, err := h.svc.ListCopies(c.Request.Context(), f, p)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, p)})
}

// @Summary  蔵書取得
// @Tags     catalog
// @Produce  json
// @Param    id path int true "copy id"
// @Success  200 {object} CopyResponse
// @Failure  404 {object} errDTO
// @Security BearerAuth
// @Router   /copies/{id} [get]
func (h *Handler) GetCopy(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	res, err := h.svc.GetCopy(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ===== helpers =====

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid id"))
		return 0, false
	}
	return id, true
}

func pageFromQuery(c *gin.Context) Page {
	return Page{
		Limit:  atoiDef(c.Query("limit"), 100),
		Offset: atoiDef(c.Query("offset"), 0),
		Order:  strings.ToLower(c.DefaultQuery("order", "asc")),
	}.normalize()
}

func atoiDef(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}

func nextOffset(total int64, p Page) int {
	n := p.Offset + p.Limit
	if n >= int(total) {
		return 0
	}
	return n
}

type errDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func apiErr(code Code, msg string) errDTO {
	var e errDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func apiErrFrom(err error) errDTO {
	if api, ok := err.(*APIError); ok {
		return apiErr(api.Code, api.Message)
	}
	return apiErr(CodeInternal, err.Error())
}
