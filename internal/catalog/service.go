package catalog

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"LIBRA-backend/internal/circulation"
	"LIBRA-backend/internal/platform/db"
)

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type Service struct {
	store *Store
	clock Clock
	log   *slog.Logger
}

func NewService(conn *sql.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: NewStore(conn), clock: realClock{}, log: logger}
}

// internal は想定外のエラーをログに残して INTERNAL にする
func (s *Service) internal(ctx context.Context, op string, err error) error {
	var api *APIError
	if errors.As(err, &api) {
		return api
	}
	s.log.ErrorContext(ctx, "catalog operation failed", "op", op, "error", err)
	return ErrInternal("internal error")
}

// ===== publishers / authors =====

func (s *Service) CreatePublisher(ctx context.Context, in CreatePublisherRequest) (PublisherResponse, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return PublisherResponse{}, ErrInvalid("name required")
	}
	id, err := s.store.InsertPublisher(ctx, name)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return PublisherResponse{}, ErrConflict("publisher already exists")
		}
		return PublisherResponse{}, s.internal(ctx, "create publisher", err)
	}
	return PublisherResponse{ID: id, Name: name}, nil
}

func (s *Service) ListPublishers(ctx context.Context) ([]PublisherResponse, error) {
	ps, err := s.store.ListPublishers(ctx)
	if err != nil {
		return nil, s.internal(ctx, "list publishers", err)
	}
	out := make([]PublisherResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, PublisherResponse{ID: p.ID, Name: p.Name})
	}
	return out, nil
}

func (s *Service) CreateAuthor(ctx context.Context, in CreateAuthorRequest) (AuthorResponse, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return AuthorResponse{}, ErrInvalid("name required")
	}
	id, err := s.store.InsertAuthor(ctx, name)
	if err != nil {
		return AuthorResponse{}, s.internal(ctx, "create author", err)
	}
	return AuthorResponse{ID: id, Name: name}, nil
}

func (s *Service) ListAuthors(ctx context.Context, p Page) ([]AuthorResponse, int64, error) {
	as, total, err := s.store.ListAuthors(ctx, p)
	if err != nil {
		return nil, 0, s.internal(ctx, "list authors", err)
	}
	out := make([]AuthorResponse, 0, len(as))
	for _, a := range as {
		out = append(out, AuthorResponse{ID: a.ID, Name: a.Name})
	}
	return out, total, nil
}

// ===== books =====

func (s *Service) CreateBook(ctx context.Context, in CreateBookRequest) (BookResponse, error) {
	isbn, ok := NormalizeISBN(in.ISBN)
	if !ok {
		return BookResponse{}, ErrInvalid("isbn must be 10 or 13 digits")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return BookResponse{}, ErrInvalid("title required")
	}

	now := s.clock.Now()
	b := &Book{ISBN: isbn, Title: title, CreatedAt: now}
	if in.PublicationYear != nil {
		y := *in.PublicationYear
		if y <= 0 || y > now.Year()+1 {
			return BookResponse{}, ErrInvalid("publication_year out of range")
		}
		b.PublicationYear = sql.NullInt64{Int64: int64(y), Valid: true}
	}
	if in.PublisherID != nil {
		b.PublisherID = sql.NullInt64{Int64: *in.PublisherID, Valid: true}
	}

	// 重複は除く
	seen := make(map[int64]bool, len(in.AuthorIDs))
	var authorIDs []int64
	for _, id := range in.AuthorIDs {
		if !seen[id] {
			seen[id] = true
			authorIDs = append(authorIDs, id)
		}
	}

	if err := s.store.InsertBook(ctx, b, authorIDs); err != nil {
		switch {
		case db.IsDuplicateKey(err):
			return BookResponse{}, ErrConflict("isbn already registered")
		case db.IsForeignKeyViolation(err):
			return BookResponse{}, ErrInvalid("unknown publisher_id or author_ids")
		}
		return BookResponse{}, s.internal(ctx, "create book", err)
	}
	s.log.InfoContext(ctx, "book created", "book_id", b.ID, "isbn", isbn)

	got, err := s.store.GetBook(ctx, b.ID)
	if err != nil {
		return BookResponse{}, s.internal(ctx, "create book", err)
	}
	return toBookResponse(got), nil
}

func (s *Service) GetBook(ctx context.Context, id int64) (BookResponse, error) {
	b, err := s.store.GetBook(ctx, id)
	if err != nil {
		return BookResponse{}, s.internal(ctx, "get book", err)
	}
	return toBookResponse(b), nil
}

func (s *Service) ListBooks(ctx context.Context, p Page) ([]BookResponse, int64, error) {
	bs, total, err := s.store.ListBooks(ctx, p)
	if err != nil {
		return nil, 0, s.internal(ctx, "list books", err)
	}
	out := make([]BookResponse, 0, len(bs))
	for i := range bs {
		out = append(out, toBookResponse(&bs[i]))
	}
	return out, total, nil
}

// ===== copies =====

// 新規登録で指定できる初期ステータス（issued は貸出でのみ）
func initialCopyStatus(s *string) (string, bool) {
	if s == nil || *s == "" {
		return string(circulation.CopyAvailable), true
	}
	st, ok := circulation.ParseCopyStatus(*s)
	if !ok || st == circulation.CopyIssued {
		return "", false
	}
	return string(st), true
}

func (s *Service) CreateCopy(ctx context.Context, in CreateCopyRequest) (CopyResponse, error) {
	if in.BookID <= 0 {
		return CopyResponse{}, ErrInvalid("book_id must be > 0")
	}
	status, ok := initialCopyStatus(in.Status)
	if !ok {
		return CopyResponse{}, ErrInvalid("status must be available, maintenance or lost")
	}

	c := &Copy{BookID: in.BookID, Status: status, CreatedAt: s.clock.Now()}
	if in.ShelfLocation != nil && strings.TrimSpace(*in.ShelfLocation) != "" {
		c.ShelfLocation = sql.NullString{String: strings.TrimSpace(*in.ShelfLocation), Valid: true}
	}
	if err := s.store.InsertCopy(ctx, c); err != nil {
		if db.IsForeignKeyViolation(err) {
			return CopyResponse{}, ErrNotFound("book not found")
		}
		return CopyResponse{}, s.internal(ctx, "create copy", err)
	}
	s.log.InfoContext(ctx, "copy created", "copy_id", c.ID, "book_id", c.BookID, "status", c.Status)
	return toCopyResponse(c), nil
}

func (s *Service) GetCopy(ctx context.Context, id int64) (CopyResponse, error) {
	c, err := s.store.GetCopy(ctx, id)
	if err != nil {
		return CopyResponse{}, s.internal(ctx, "get copy", err)
	}
	return toCopyResponse(c), nil
}

func (s *Service) ListCopies(ctx context.Context, f CopyFilter, p Page) ([]CopyResponse, int64, error) {
	if f.Status != nil {
		if _, ok := circulation.ParseCopyStatus(*f.Status); !ok {
			return nil, 0, ErrInvalid("unknown status")
		}
	}
	cs, total, err := s.store.ListCopies(ctx, f, p)
	if err != nil {
		return nil, 0, s.internal(ctx, "list copies", err)
	}
	out := make([]CopyResponse, 0, len(cs))
	for i := range cs {
		out = append(out, toCopyResponse(&cs[i]))
	}
	return out, total, nil
}
