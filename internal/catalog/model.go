package catalog

import (
	"database/sql"
	"time"
)

type Publisher struct {
	ID   int64
	Name string
}

type Author struct {
	ID   int64
	Name string
}

// Book は books テーブルの1行（出版社・著者を JOIN）
type Book struct {
	ID              int64
	ISBN            string
	Title           string
	PublicationYear sql.NullInt64
	PublisherID     sql.NullInt64
	CreatedAt       time.Time

	Publisher *Publisher
	Authors   []Author
}

// Copy は book_copies テーブルの1行
type Copy struct {
	ID            int64
	BookID        int64
	Status        string
	ShelfLocation sql.NullString
	CreatedAt     time.Time
}

type CopyFilter struct {
	BookID *int64
	Status *string
}

type Page struct {
	Limit  int
	Offset int
	Order  string // "asc" or "desc"
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Order != "desc" {
		p.Order = "asc"
	}
	return p
}
