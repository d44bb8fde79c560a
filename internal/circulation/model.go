package circulation

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// ===== 列挙型 =====
// 文字列表現は SQL と JSON の境界でのみ使う

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestFulfilled RequestStatus = "fulfilled"
)

func ParseRequestStatus(s string) (RequestStatus, bool) {
	switch v := RequestStatus(s); v {
	case RequestPending, RequestApproved, RequestRejected, RequestFulfilled:
		return v, true
	}
	return "", false
}

type IssueStatus string

const (
	IssueIssued   IssueStatus = "issued"
	IssueReturned IssueStatus = "returned"
	IssueOverdue  IssueStatus = "overdue"
)

func ParseIssueStatus(s string) (IssueStatus, bool) {
	switch v := IssueStatus(s); v {
	case IssueIssued, IssueReturned, IssueOverdue:
		return v, true
	}
	return "", false
}

type CopyStatus string

const (
	CopyAvailable   CopyStatus = "available"
	CopyIssued      CopyStatus = "issued"
	CopyMaintenance CopyStatus = "maintenance"
	CopyLost        CopyStatus = "lost"
)

func ParseCopyStatus(s string) (CopyStatus, bool) {
	switch v := CopyStatus(s); v {
	case CopyAvailable, CopyIssued, CopyMaintenance, CopyLost:
		return v, true
	}
	return "", false
}

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func ParseRole(s string) (Role, bool) {
	switch v := Role(s); v {
	case RoleAdmin, RoleMember:
		return v, true
	}
	return "", false
}

// Principal は認証済みの呼び出し元
type Principal struct {
	UserID int64
	Role   Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// ===== エンティティ =====

type BookSummary struct {
	ID    int64
	ISBN  string
	Title string
}

// BookCopy は book_copies テーブルの1行
type BookCopy struct {
	ID            int64
	BookID        int64
	Status        CopyStatus
	ShelfLocation sql.NullString
	CreatedAt     time.Time
}

// IssueRequest は issue_requests テーブルの1行（books を JOIN）
type IssueRequest struct {
	ID          int64
	ULID        string
	UserID      int64
	BookID      int64
	Status      RequestStatus
	RequestTime time.Time
	Book        BookSummary
}

// Issue は issues テーブルの1行（book_copies, books を JOIN）
type Issue struct {
	ID               int64
	ULID             string
	UserID           int64
	CopyID           int64
	IssueDate        time.Time
	ReturnDate       sql.NullTime // 返却期限
	ActualReturnDate sql.NullTime
	Status           IssueStatus
	FineAmount       decimal.Decimal

	Copy BookCopy
	Book BookSummary
}

// Active は未返却かどうか
func (i *Issue) Active() bool { return i.Status != IssueReturned }

// Overdue は now 時点で期限を過ぎた未返却か、期限後に返却されたか
func (i *Issue) Overdue(now time.Time) bool {
	if !i.ReturnDate.Valid {
		return false
	}
	if i.ActualReturnDate.Valid {
		return i.ActualReturnDate.Time.After(i.ReturnDate.Time)
	}
	return now.After(i.ReturnDate.Time)
}

// ===== 検索条件 =====

type RequestFilter struct {
	UserID *int64
	BookID *int64
	Status *RequestStatus
}

type IssueFilter struct {
	UserID          *int64
	CopyID          *int64
	Status          *IssueStatus
	OnlyOutstanding bool
}

type Page struct {
	Limit  int
	Offset int
	Order  string // "asc" or "desc"
}

const (
	defaultLimit = 100
	maxLimit     = 500
)

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Order != "desc" {
		p.Order = "asc"
	}
	return p
}
