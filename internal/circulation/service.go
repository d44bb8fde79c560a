package circulation

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"
)

// -------------- Clock & ID --------------

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface {
	NewULID(t time.Time) (string, error)
}
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// -------------- Service --------------

type Service struct {
	repo  Repository
	fines FinePolicy
	clock Clock
	id    IDGen
	log   *slog.Logger
}

type Option func(*Service)

func WithClock(c Clock) Option         { return func(s *Service) { s.clock = c } }
func WithIDGen(g IDGen) Option         { return func(s *Service) { s.id = g } }
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func NewService(repo Repository, fines FinePolicy, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		fines: fines,
		clock: realClock{},
		id:    ulidGen{},
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// fail は APIError はそのまま、それ以外は INTERNAL に包んでログに残す
func (s *Service) fail(ctx context.Context, op string, err error) error {
	var api *APIError
	if errors.As(err, &api) {
		return api
	}
	s.log.ErrorContext(ctx, "circulation operation failed", "op", op, "error", err)
	return ErrInternal(err)
}

// -------------- Requests --------------

// RequestBook: 利用者が本の貸出を申請する（pending で作成）
func (s *Service) RequestBook(ctx context.Context, p Principal, bookID int64) (*IssueRequest, error) {
	if err := authorize(p, actRequestBook); err != nil {
		return nil, err
	}
	if bookID <= 0 {
		return nil, ErrInvalid("book_id must be > 0")
	}

	now := s.clock.Now()
	idStr, err := s.id.NewULID(now)
	if err != nil {
		return nil, s.fail(ctx, "request book", err)
	}
	req := &IssueRequest{
		ULID:        idStr,
		UserID:      p.UserID,
		BookID:      bookID,
		Status:      RequestPending,
		RequestTime: now,
	}

	var created *IssueRequest
	err = s.repo.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		ok, err := tx.BookExists(ctx, bookID)
		if err != nil {
			return err
		}
		if !ok {
			return errBookNotFound()
		}

		if _, err := tx.FindPendingRequest(ctx, p.UserID, bookID); err == nil {
			return errDuplicateRequest()
		} else if !errors.Is(err, ErrNoRecord) {
			return err
		}

		if err := tx.InsertRequest(ctx, req); err != nil {
			// 同時申請は一意インデックスで弾かれる
			if errors.Is(err, ErrDuplicate) {
				return errDuplicateRequest()
			}
			return err
		}
		created, err = tx.FindRequest(ctx, req.ID)
		return err
	})
	if err != nil {
		if CodeOf(err) == CodeDuplicateRequest {
			s.log.InfoContext(ctx, "duplicate pending request", "user_id", p.UserID, "book_id", bookID)
		}
		return nil, s.fail(ctx, "request book", err)
	}

	s.log.InfoContext(ctx, "issue request created", "request_ulid", created.ULID, "user_id", p.UserID, "book_id", bookID)
	return created, nil
}

// DecideRequest: 申請ステータスを approved / rejected / fulfilled に変更（管理者のみ）
func (s *Service) DecideRequest(ctx context.Context, p Principal, key string, status RequestStatus) (*IssueRequest, error) {
	if err := authorize(p, actDecideRequest); err != nil {
		return nil, err
	}
	switch status {
	case RequestApproved, RequestRejected, RequestFulfilled:
	default:
		return nil, ErrInvalid("status must be one of approved, rejected, fulfilled")
	}

	var updated *IssueRequest
	err := s.repo.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		req, err := findRequestByKey(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := tx.UpdateRequestStatus(ctx, req.ID, status); err != nil {
			return err
		}
		updated, err = tx.FindRequest(ctx, req.ID)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "decide request", err)
	}

	s.log.InfoContext(ctx, "issue request updated", "request_ulid", updated.ULID, "status", status)
	return updated, nil
}

// GetRequestByKey: ID or ULID で1件取得。本人以外（admin 除く）には見えない
func (s *Service) GetRequestByKey(ctx context.Context, p Principal, key string) (*IssueRequest, error) {
	req, err := findRequestByKey(ctx, s.repo, key)
	if err != nil {
		return nil, s.fail(ctx, "get request", err)
	}
	if !visibleTo(p, req.UserID) {
		return nil, errRequestNotFound()
	}
	return req, nil
}

func (s *Service) ListRequests(ctx context.Context, p Principal, f RequestFilter, page Page) ([]IssueRequest, int64, error) {
	if !p.IsAdmin() {
		uid := p.UserID
		f.UserID = &uid
	}
	items, total, err := s.repo.FindRequests(ctx, f, page)
	if err != nil {
		return nil, 0, s.fail(ctx, "list requests", err)
	}
	return items, total, nil
}

// -------------- Issues --------------

type IssueInput struct {
	CopyID  int64
	UserID  int64
	DueDate *time.Time
	// 申請から貸し出す場合は申請キー（ID or ULID）。貸出と同時に fulfilled になる
	RequestKey string
}

// IssueCopy: 蔵書を貸し出す。available -> issued の切り替えと貸出行の作成は同一Tx
func (s *Service) IssueCopy(ctx context.Context, p Principal, in IssueInput) (*Issue, error) {
	if err := authorize(p, actIssueCopy); err != nil {
		return nil, err
	}
	if in.CopyID <= 0 {
		return nil, ErrInvalid("copy_id must be > 0")
	}
	if in.UserID <= 0 {
		return nil, ErrInvalid("user_id must be > 0")
	}

	now := s.clock.Now()
	idStr, err := s.id.NewULID(now)
	if err != nil {
		return nil, s.fail(ctx, "issue copy", err)
	}
	iss := &Issue{
		ULID:      idStr,
		UserID:    in.UserID,
		CopyID:    in.CopyID,
		IssueDate: now,
		Status:    IssueIssued,
	}
	if in.DueDate != nil {
		iss.ReturnDate = sql.NullTime{Time: in.DueDate.UTC(), Valid: true}
	}

	var created *Issue
	err = s.repo.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		cp, err := tx.FindCopy(ctx, in.CopyID)
		if errors.Is(err, ErrNoRecord) {
			return errCopyNotFound()
		}
		if err != nil {
			return err
		}
		if cp.Status != CopyAvailable {
			return errCopyUnavailable(cp.Status)
		}

		if in.RequestKey != "" {
			if err := fulfilRequest(ctx, tx, in, cp); err != nil {
				return err
			}
		}

		swapped, err := tx.SwapCopyStatus(ctx, cp.ID, CopyAvailable, CopyIssued)
		if err != nil {
			return err
		}
		if !swapped {
			// 読んだ後に他の貸出に取られた
			return errCopyUnavailable(CopyIssued)
		}

		if err := tx.InsertIssue(ctx, iss); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return errCopyUnavailable(CopyIssued)
			}
			return err
		}
		created, err = tx.FindIssue(ctx, iss.ID)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "issue copy", err)
	}

	s.log.InfoContext(ctx, "copy issued", "issue_ulid", created.ULID, "copy_id", in.CopyID, "user_id", in.UserID)
	return created, nil
}

func fulfilRequest(ctx context.Context, tx Tx, in IssueInput, cp *BookCopy) error {
	req, err := findRequestByKey(ctx, tx, in.RequestKey)
	if err != nil {
		return err
	}
	if req.UserID != in.UserID || req.BookID != cp.BookID {
		return ErrInvalid("request does not match user_id and copy's book")
	}
	if req.Status != RequestPending && req.Status != RequestApproved {
		return ErrInvalid("request is already " + string(req.Status))
	}
	return tx.UpdateRequestStatus(ctx, req.ID, RequestFulfilled)
}

// ReturnCopy: 返却。罰金を確定し、issued の蔵書を available に戻す
func (s *Service) ReturnCopy(ctx context.Context, p Principal, key string) (*Issue, error) {
	if err := authorize(p, actReturnCopy); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var returned *Issue
	err := s.repo.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		iss, err := findIssueByKey(ctx, tx, key)
		if err != nil {
			return err
		}
		if !iss.Active() {
			return errAlreadyReturned()
		}

		var due *time.Time
		if iss.ReturnDate.Valid {
			due = &iss.ReturnDate.Time
		}
		fine := s.fines.Calculate(due, now)

		closed, err := tx.CloseIssue(ctx, iss.ID, now, fine)
		if err != nil {
			return err
		}
		if !closed {
			return errAlreadyReturned()
		}

		swapped, err := tx.SwapCopyStatus(ctx, iss.CopyID, CopyIssued, CopyAvailable)
		if err != nil {
			return err
		}
		if !swapped {
			// 蔵書側が issued でない（紛失・整備中に変更済み等）。貸出は閉じる
			s.log.WarnContext(ctx, "copy was not issued at return; left unchanged",
				"issue_ulid", iss.ULID, "copy_id", iss.CopyID)
		}

		returned, err = tx.FindIssue(ctx, iss.ID)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "return copy", err)
	}

	s.log.InfoContext(ctx, "copy returned", "issue_ulid", returned.ULID, "copy_id", returned.CopyID,
		"fine", returned.FineAmount.StringFixed(2))
	return returned, nil
}

func (s *Service) GetIssueByKey(ctx context.Context, p Principal, key string) (*Issue, error) {
	iss, err := findIssueByKey(ctx, s.repo, key)
	if err != nil {
		return nil, s.fail(ctx, "get issue", err)
	}
	if !visibleTo(p, iss.UserID) {
		return nil, errIssueNotFound()
	}
	return iss, nil
}

func (s *Service) ListIssues(ctx context.Context, p Principal, f IssueFilter, page Page) ([]Issue, int64, error) {
	if !p.IsAdmin() {
		uid := p.UserID
		f.UserID = &uid
	}
	items, total, err := s.repo.FindIssues(ctx, f, page)
	if err != nil {
		return nil, 0, s.fail(ctx, "list issues", err)
	}
	return items, total, nil
}

// -------------- Copy ledger --------------

// SetCopyStatus: 管理者による蔵書ステータス変更（整備中・紛失など）
func (s *Service) SetCopyStatus(ctx context.Context, p Principal, copyID int64, to CopyStatus) (*BookCopy, error) {
	if err := authorize(p, actSetCopyStatus); err != nil {
		return nil, err
	}
	if copyID <= 0 {
		return nil, ErrInvalid("copy_id must be > 0")
	}
	if _, ok := ParseCopyStatus(string(to)); !ok {
		return nil, ErrInvalid("unknown copy status")
	}

	var updated *BookCopy
	err := s.repo.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		cp, err := tx.FindCopy(ctx, copyID)
		if errors.Is(err, ErrNoRecord) {
			return errCopyNotFound()
		}
		if err != nil {
			return err
		}
		if cp.Status == to {
			updated = cp
			return nil
		}
		if !canSetCopyStatus(cp.Status, to) {
			return errInvalidTransition(cp.Status, to)
		}
		if to == CopyAvailable {
			n, err := tx.CountActiveIssues(ctx, copyID)
			if err != nil {
				return err
			}
			if n > 0 {
				return &APIError{Code: CodeCopyUnavailable, Message: "copy still has an active issue"}
			}
		}

		swapped, err := tx.SwapCopyStatus(ctx, copyID, cp.Status, to)
		if err != nil {
			return err
		}
		if !swapped {
			return errInvalidTransition(cp.Status, to)
		}
		updated, err = tx.FindCopy(ctx, copyID)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "set copy status", err)
	}

	s.log.InfoContext(ctx, "copy status changed", "copy_id", copyID, "status", updated.Status)
	return updated, nil
}

// -------------- helpers --------------

// 数値なら id、それ以外は ULID として引く
func findRequestByKey(ctx context.Context, r Reader, key string) (*IssueRequest, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalid("id or ulid is required")
	}
	var (
		req *IssueRequest
		err error
	)
	if id, perr := strconv.ParseInt(key, 10, 64); perr == nil && id > 0 {
		req, err = r.FindRequest(ctx, id)
	} else {
		req, err = r.FindRequestByULID(ctx, key)
	}
	if errors.Is(err, ErrNoRecord) {
		return nil, errRequestNotFound()
	}
	return req, err
}

func findIssueByKey(ctx context.Context, r Reader, key string) (*Issue, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalid("id or ulid is required")
	}
	var (
		iss *Issue
		err error
	)
	if id, perr := strconv.ParseInt(key, 10, 64); perr == nil && id > 0 {
		iss, err = r.FindIssue(ctx, id)
	} else {
		iss, err = r.FindIssueByULID(ctx, key)
	}
	if errors.Is(err, ErrNoRecord) {
		return nil, errIssueNotFound()
	}
	return iss, err
}
