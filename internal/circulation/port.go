package circulation

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoRecord は該当行なし
	ErrNoRecord = errors.New("circulation: no record")
	// ErrDuplicate は一意制約違反
	ErrDuplicate = errors.New("circulation: duplicate key")
)

// Reader は Tx の内外どちらからでも使える参照系
type Reader interface {
	FindCopy(ctx context.Context, id int64) (*BookCopy, error)
	FindRequest(ctx context.Context, id int64) (*IssueRequest, error)
	FindRequestByULID(ctx context.Context, ulid string) (*IssueRequest, error)
	FindIssue(ctx context.Context, id int64) (*Issue, error)
	FindIssueByULID(ctx context.Context, ulid string) (*Issue, error)
}

// Repository は永続化ポート。更新はすべて RunAtomic の中で行う。
type Repository interface {
	Reader
	FindRequests(ctx context.Context, f RequestFilter, p Page) ([]IssueRequest, int64, error)
	FindIssues(ctx context.Context, f IssueFilter, p Page) ([]Issue, int64, error)
	RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx は1トランザクション内の操作
type Tx interface {
	Reader
	BookExists(ctx context.Context, bookID int64) (bool, error)
	FindPendingRequest(ctx context.Context, userID, bookID int64) (*IssueRequest, error)
	InsertRequest(ctx context.Context, r *IssueRequest) error
	UpdateRequestStatus(ctx context.Context, id int64, status RequestStatus) error
	CountActiveIssues(ctx context.Context, copyID int64) (int, error)
	InsertIssue(ctx context.Context, i *Issue) error
	// CloseIssue は未返却のときだけ返却済みにする。更新できなければ false
	CloseIssue(ctx context.Context, id int64, returnedAt time.Time, fine decimal.Decimal) (bool, error)
	// SwapCopyStatus は現在値が from のときだけ to に変える。更新できなければ false
	SwapCopyStatus(ctx context.Context, copyID int64, from, to CopyStatus) (bool, error)
}
