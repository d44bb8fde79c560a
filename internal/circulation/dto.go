package circulation

import "time"

// 貸出申請リクエスト
type CreateRequestRequest struct {
	BookID int64 `json:"book_id" binding:"required"`
}

// 申請ステータス更新リクエスト
type DecideRequestRequest struct {
	Status string `json:"status" binding:"required" example:"approved"`
}

// 貸出登録リクエスト
type CreateIssueRequest struct {
	CopyID int64 `json:"copy_id" binding:"required"`
	UserID int64 `json:"user_id" binding:"required"`
	// RFC3339 または "2006-01-02"
	ReturnDate *string `json:"return_date,omitempty" example:"2026-03-01"`
	// 申請から貸し出す場合（ID or ULID）
	RequestID *string `json:"request_id,omitempty"`
}

// 蔵書ステータス変更リクエスト
type UpdateCopyStatusRequest struct {
	Status string `json:"status" binding:"required" example:"maintenance"`
}

type BookSummaryResponse struct {
	ID    int64  `json:"id"`
	ISBN  string `json:"isbn"`
	Title string `json:"title"`
}

type CopyResponse struct {
	ID            int64     `json:"id"`
	BookID        int64     `json:"book_id"`
	Status        string    `json:"status"`
	ShelfLocation *string   `json:"shelf_location,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type IssueRequestResponse struct {
	ID          int64               `json:"id"`
	ULID        string              `json:"ulid"`
	UserID      int64               `json:"user_id"`
	BookID      int64               `json:"book_id"`
	Status      string              `json:"status"`
	RequestTime time.Time           `json:"request_time"`
	Book        BookSummaryResponse `json:"book"`
}

type IssueResponse struct {
	ID               int64               `json:"id"`
	ULID             string              `json:"ulid"`
	UserID           int64               `json:"user_id"`
	CopyID           int64               `json:"copy_id"`
	IssueDate        time.Time           `json:"issue_date"`
	ReturnDate       *time.Time          `json:"return_date,omitempty"`
	ActualReturnDate *time.Time          `json:"actual_return_date,omitempty"`
	Status           string              `json:"status"`
	FineAmount       string              `json:"fine_amount" example:"30.00"`
	Overdue          bool                `json:"overdue"`
	Copy             CopyResponse        `json:"copy"`
	Book             BookSummaryResponse `json:"book"`
}

type RequestListResponse struct {
	Items      []IssueRequestResponse `json:"items"`
	Total      int64                  `json:"total"`
	NextOffset int                    `json:"next_offset"`
}

type IssueListResponse struct {
	Items      []IssueResponse `json:"items"`
	Total      int64           `json:"total"`
	NextOffset int             `json:"next_offset"`
}

// ---- builders ----

func toBookSummary(b BookSummary) BookSummaryResponse {
	return BookSummaryResponse{ID: b.ID, ISBN: b.ISBN, Title: b.Title}
}

func toCopyResponse(c *BookCopy) CopyResponse {
	resp := CopyResponse{
		ID:        c.ID,
		BookID:    c.BookID,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
	}
	if c.ShelfLocation.Valid {
		v := c.ShelfLocation.String
		resp.ShelfLocation = &v
	}
	return resp
}

func toRequestResponse(r *IssueRequest) IssueRequestResponse {
	return IssueRequestResponse{
		ID:          r.ID,
		ULID:        r.ULID,
		UserID:      r.UserID,
		BookID:      r.BookID,
		Status:      string(r.Status),
		RequestTime: r.RequestTime,
		Book:        toBookSummary(r.Book),
	}
}

func toIssueResponse(i *Issue, now time.Time) IssueResponse {
	resp := IssueResponse{
		ID:         i.ID,
		ULID:       i.ULID,
		UserID:     i.UserID,
		CopyID:     i.CopyID,
		IssueDate:  i.IssueDate,
		Status:     string(i.Status),
		FineAmount: i.FineAmount.StringFixed(2),
		Overdue:    i.Overdue(now),
		Copy:       toCopyResponse(&i.Copy),
		Book:       toBookSummary(i.Book),
	}
	if i.ReturnDate.Valid {
		v := i.ReturnDate.Time
		resp.ReturnDate = &v
	}
	if i.ActualReturnDate.Valid {
		v := i.ActualReturnDate.Time
		resp.ActualReturnDate = &v
	}
	return resp
}
