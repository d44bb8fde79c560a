package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"LIBRA-backend/internal/platform/db"
)

type Store struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

// ===== publishers =====

func (s *Store) InsertPublisher(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO publishers (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetPublisher(ctx context.Context, id int64) (*Publisher, error) {
	var p Publisher
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM publishers WHERE id = ?`, id).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound("publisher not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPublishers(ctx context.Context) ([]Publisher, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM publishers ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Publisher
	for rows.Next() {
		var p Publisher
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ===== authors =====

func (s *Store) InsertAuthor(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO authors (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) ListAuthors(ctx context.Context, p Page) ([]Author, int64, error) {
	p = p.normalize()
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM authors`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM authors ORDER BY id `+strings.ToUpper(p.Order)+` LIMIT ? OFFSET ?`, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// ===== books =====

// books と book_authors をまとめて登録する
func insertBookTx(ctx context.Context, tx db.DBTX, b *Book, authorIDs []int64) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO books (isbn, title, publication_year, publisher_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		b.ISBN, b.Title, b.PublicationYear, b.PublisherID, b.CreatedAt)
	if err != nil {
		return err
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	for _, aid := range authorIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO book_authors (book_id, author_id) VALUES (?, ?)`, b.ID, aid); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) InsertBook(ctx context.Context, b *Book, authorIDs []int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		return insertBookTx(ctx, tx, b, authorIDs)
	})
}

const selectBook = `
SELECT b.id, b.isbn, b.title, b.publication_year, b.publisher_id, b.created_at, p.name
FROM books b
LEFT JOIN publishers p ON p.id = b.publisher_id`

func scanBook(sc interface{ Scan(...any) error }) (*Book, error) {
	var b Book
	var pubName sql.NullString
	if err := sc.Scan(&b.ID, &b.ISBN, &b.Title, &b.PublicationYear, &b.PublisherID, &b.CreatedAt, &pubName); err != nil {
		return nil, err
	}
	if b.PublisherID.Valid {
		b.Publisher = &Publisher{ID: b.PublisherID.Int64, Name: pubName.String}
	}
	return &b, nil
}

func (s *Store) GetBook(ctx context.Context, id int64) (*Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx, selectBook+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound("book not found")
	}
	if err != nil {
		return nil, err
	}
	if b.Authors, err = s.authorsOf(ctx, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) authorsOf(ctx context.Context, bookID int64) ([]Author, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.name
		FROM book_authors ba
		JOIN authors a ON a.id = ba.author_id
		WHERE ba.book_id = ?
		ORDER BY a.id`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListBooks(ctx context.Context, p Page) ([]Book, int64, error) {
	p = p.normalize()
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx,
		selectBook+` ORDER BY b.id `+strings.ToUpper(p.Order)+` LIMIT ? OFFSET ?`, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	var out []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		out = append(out, *b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// 著者は1冊ずつ引く（rows を閉じてから。SQLite は接続1本）
	for i := range out {
		if out[i].Authors, err = s.authorsOf(ctx, out[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// ===== copies =====

func (s *Store) InsertCopy(ctx context.Context, c *Copy) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO book_copies (book_id, status, shelf_location, created_at)
		VALUES (?, ?, ?, ?)`,
		c.BookID, c.Status, c.ShelfLocation, c.CreatedAt)
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

const selectCopy = `SELECT id, book_id, status, shelf_location, created_at FROM book_copies`

func scanCopy(sc interface{ Scan(...any) error }) (*Copy, error) {
	var c Copy
	if err := sc.Scan(&c.ID, &c.BookID, &c.Status, &c.ShelfLocation, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCopy(ctx context.Context, id int64) (*Copy, error) {
	c, err := scanCopy(s.db.QueryRowContext(ctx, selectCopy+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound("book copy not found")
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) ListCopies(ctx context.Context, f CopyFilter, p Page) ([]Copy, int64, error) {
	p = p.normalize()
	var where []string
	var args []any
	if f.BookID != nil {
		where = append(where, "book_id = ?")
		args = append(args, *f.BookID)
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *f.Status)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM book_copies`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count copies: %w", err)
	}
	rows, err := s.db.QueryContext(ctx,
		selectCopy+cond+` ORDER BY id `+strings.ToUpper(p.Order)+` LIMIT ? OFFSET ?`, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Copy
	for rows.Next() {
		c, err := scanCopy(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}
