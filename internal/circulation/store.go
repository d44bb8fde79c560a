package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"LIBRA-backend/internal/platform/db"
)

// Store は Repository の database/sql 実装（MySQL / SQLite 共通の SQL）
type Store struct {
	db *sql.DB
	queries
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn, queries: queries{q: conn}}
}

func (s *Store) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, queries{q: tx})
	})
}

// queries は *sql.DB でも *sql.Tx でも動く
type queries struct {
	q db.DBTX
}

var _ Tx = queries{}

func mapWriteErr(err error) error {
	if db.IsDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// ---------- copies ----------

const selectCopy = `SELECT id, book_id, status, shelf_location, created_at FROM book_copies`

func (r queries) FindCopy(ctx context.Context, id int64) (*BookCopy, error) {
	var c BookCopy
	var st string
	err := r.q.QueryRowContext(ctx, selectCopy+` WHERE id = ?`, id).
		Scan(&c.ID, &c.BookID, &st, &c.ShelfLocation, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("find copy %d: %w", id, err)
	}
	c.Status = CopyStatus(st)
	return &c, nil
}

func (r queries) SwapCopyStatus(ctx context.Context, copyID int64, from, to CopyStatus) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE book_copies SET status = ? WHERE id = ? AND status = ?`, string(to), copyID, string(from))
	if err != nil {
		return false, fmt.Errorf("swap copy status %d: %w", copyID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r queries) BookExists(ctx context.Context, bookID int64) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx, `SELECT 1 FROM books WHERE id = ?`, bookID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("book exists %d: %w", bookID, err)
	}
	return true, nil
}

// ---------- requests ----------

const selectRequest = `
SELECT r.id, r.request_ulid, r.user_id, r.book_id, r.status, r.request_time,
       b.id, b.isbn, b.title
FROM issue_requests r
JOIN books b ON b.id = r.book_id`

func scanRequest(sc interface{ Scan(...any) error }) (*IssueRequest, error) {
	var r IssueRequest
	var st string
	if err := sc.Scan(&r.ID, &r.ULID, &r.UserID, &r.BookID, &st, &r.RequestTime,
		&r.Book.ID, &r.Book.ISBN, &r.Book.Title); err != nil {
		return nil, err
	}
	r.Status = RequestStatus(st)
	return &r, nil
}

func (r queries) findRequest(ctx context.Context, where string, args ...any) (*IssueRequest, error) {
	req, err := scanRequest(r.q.QueryRowContext(ctx, selectRequest+" WHERE "+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("find request: %w", err)
	}
	return req, nil
}

func (r queries) FindRequest(ctx context.Context, id int64) (*IssueRequest, error) {
	return r.findRequest(ctx, "r.id = ?", id)
}

func (r queries) FindRequestByULID(ctx context.Context, ulid string) (*IssueRequest, error) {
	return r.findRequest(ctx, "r.request_ulid = ?", ulid)
}

func (r queries) FindPendingRequest(ctx context.Context, userID, bookID int64) (*IssueRequest, error) {
	return r.findRequest(ctx, "r.user_id = ? AND r.book_id = ? AND r.status = ?", userID, bookID, string(RequestPending))
}

func (r queries) InsertRequest(ctx context.Context, req *IssueRequest) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO issue_requests (request_ulid, user_id, book_id, status, request_time)
		VALUES (?, ?, ?, ?, ?)`,
		req.ULID, req.UserID, req.BookID, string(req.Status), req.RequestTime)
	if err != nil {
		return mapWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = id
	return nil
}

func (r queries) UpdateRequestStatus(ctx context.Context, id int64, status RequestStatus) error {
	res, err := r.q.ExecContext(ctx, `UPDATE issue_requests SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return mapWriteErr(err)
	}
	// 同じ値への更新は MySQL だと 0 行になるので 0 も許容する
	if _, err := res.RowsAffected(); err != nil {
		return err
	}
	return nil
}

// ---------- issues ----------

// 蔵書行が消えていても貸出は引けるように LEFT JOIN
const selectIssue = `
SELECT i.id, i.issue_ulid, i.user_id, i.copy_id, i.issue_date, i.return_date, i.actual_return_date,
       i.status, i.fine_amount,
       c.id, c.book_id, c.status, c.shelf_location, c.created_at,
       b.id, b.isbn, b.title
FROM issues i
LEFT JOIN book_copies c ON c.id = i.copy_id
LEFT JOIN books b ON b.id = c.book_id`

func scanIssue(sc interface{ Scan(...any) error }) (*Issue, error) {
	var i Issue
	var st string
	var (
		copyID, copyBookID, bookID sql.NullInt64
		copyStatus, isbn, title    sql.NullString
		copyCreatedAt              sql.NullTime
	)
	if err := sc.Scan(&i.ID, &i.ULID, &i.UserID, &i.CopyID, &i.IssueDate, &i.ReturnDate, &i.ActualReturnDate,
		&st, &i.FineAmount,
		&copyID, &copyBookID, &copyStatus, &i.Copy.ShelfLocation, &copyCreatedAt,
		&bookID, &isbn, &title); err != nil {
		return nil, err
	}
	i.Status = IssueStatus(st)
	if copyID.Valid {
		i.Copy.ID = copyID.Int64
		i.Copy.BookID = copyBookID.Int64
		i.Copy.Status = CopyStatus(copyStatus.String)
		i.Copy.CreatedAt = copyCreatedAt.Time
	}
	if bookID.Valid {
		i.Book = BookSummary{ID: bookID.Int64, ISBN: isbn.String, Title: title.String}
	}
	return &i, nil
}

func (r queries) findIssue(ctx context.Context, where string, args ...any) (*Issue, error) {
	iss, err := scanIssue(r.q.QueryRowContext(ctx, selectIssue+" WHERE "+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("find issue: %w", err)
	}
	return iss, nil
}

func (r queries) FindIssue(ctx context.Context, id int64) (*Issue, error) {
	return r.findIssue(ctx, "i.id = ?", id)
}

func (r queries) FindIssueByULID(ctx context.Context, ulid string) (*Issue, error) {
	return r.findIssue(ctx, "i.issue_ulid = ?", ulid)
}

func (r queries) CountActiveIssues(ctx context.Context, copyID int64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issues WHERE copy_id = ? AND status <> ?`, copyID, string(IssueReturned)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active issues %d: %w", copyID, err)
	}
	return n, nil
}

func (r queries) InsertIssue(ctx context.Context, i *Issue) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO issues (issue_ulid, user_id, copy_id, issue_date, return_date, status, fine_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		i.ULID, i.UserID, i.CopyID, i.IssueDate, i.ReturnDate, string(i.Status), i.FineAmount)
	if err != nil {
		return mapWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	i.ID = id
	return nil
}

func (r queries) CloseIssue(ctx context.Context, id int64, returnedAt time.Time, fine decimal.Decimal) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE issues
		SET status = ?, actual_return_date = ?, fine_amount = ?
		WHERE id = ? AND status <> ?`,
		string(IssueReturned), returnedAt, fine, id, string(IssueReturned))
	if err != nil {
		return false, fmt.Errorf("close issue %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ---------- listing ----------

// FindRequests は条件に合う申請を id 順で返す（total は件数）
func (s *Store) FindRequests(ctx context.Context, f RequestFilter, p Page) ([]IssueRequest, int64, error) {
	p = p.normalize()
	var where []string
	var args []any
	if f.UserID != nil {
		where = append(where, "r.user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.BookID != nil {
		where = append(where, "r.book_id = ?")
		args = append(args, *f.BookID)
	}
	if f.Status != nil {
		where = append(where, "r.status = ?")
		args = append(args, string(*f.Status))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var (
		items []IssueRequest
		total int64
	)
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM issue_requests r`+cond, args...).Scan(&total); err != nil {
			return err
		}
		q := selectRequest + cond + " ORDER BY r.id " + strings.ToUpper(p.Order) + " LIMIT ? OFFSET ?"
		rows, err := tx.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			req, err := scanRequest(rows)
			if err != nil {
				return err
			}
			items = append(items, *req)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	return items, total, nil
}

// FindIssues は条件に合う貸出を id 順で返す（total は件数）
func (s *Store) FindIssues(ctx context.Context, f IssueFilter, p Page) ([]Issue, int64, error) {
	p = p.normalize()
	var where []string
	var args []any
	if f.UserID != nil {
		where = append(where, "i.user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.CopyID != nil {
		where = append(where, "i.copy_id = ?")
		args = append(args, *f.CopyID)
	}
	if f.Status != nil {
		where = append(where, "i.status = ?")
		args = append(args, string(*f.Status))
	}
	if f.OnlyOutstanding {
		where = append(where, "i.status <> ?")
		args = append(args, string(IssueReturned))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var (
		items []Issue
		total int64
	)
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues i`+cond, args...).Scan(&total); err != nil {
			return err
		}
		q := selectIssue + cond + " ORDER BY i.id " + strings.ToUpper(p.Order) + " LIMIT ? OFFSET ?"
		rows, err := tx.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			iss, err := scanIssue(rows)
			if err != nil {
				return err
			}
			items = append(items, *iss)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list issues: %w", err)
	}
	return items, total, nil
}
