package catalog

import "time"

type CreatePublisherRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateAuthorRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateBookRequest struct {
	ISBN            string  `json:"isbn" binding:"required" example:"978-4-00-310101-8"`
	Title           string  `json:"title" binding:"required"`
	PublicationYear *int    `json:"publication_year,omitempty"`
	PublisherID     *int64  `json:"publisher_id,omitempty"`
	AuthorIDs       []int64 `json:"author_ids,omitempty"`
}

type CreateCopyRequest struct {
	BookID int64 `json:"book_id" binding:"required"`
	// available（既定）| maintenance | lost
	Status        *string `json:"status,omitempty"`
	ShelfLocation *string `json:"shelf_location,omitempty"`
}

type PublisherResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type AuthorResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type BookResponse struct {
	ID              int64              `json:"id"`
	ISBN            string             `json:"isbn"`
	Title           string             `json:"title"`
	PublicationYear *int64             `json:"publication_year,omitempty"`
	Publisher       *PublisherResponse `json:"publisher,omitempty"`
	Authors         []AuthorResponse   `json:"authors"`
	CreatedAt       time.Time          `json:"created_at"`
}

type CopyResponse struct {
	ID            int64     `json:"id"`
	BookID        int64     `json:"book_id"`
	Status        string    `json:"status"`
	ShelfLocation *string   `json:"shelf_location,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toBookResponse(b *Book) BookResponse {
	resp := BookResponse{
		ID:        b.ID,
		ISBN:      b.ISBN,
		Title:     b.Title,
		Authors:   make([]AuthorResponse, 0, len(b.Authors)),
		CreatedAt: b.CreatedAt,
	}
	if b.PublicationYear.Valid {
		v := b.PublicationYear.Int64
		resp.PublicationYear = &v
	}
	if b.Publisher != nil {
		resp.Publisher = &PublisherResponse{ID: b.Publisher.ID, Name: b.Publisher.Name}
	}
	for _, a := range b.Authors {
		resp.Authors = append(resp.Authors, AuthorResponse{ID: a.ID, Name: a.Name})
	}
	return resp
}

func toCopyResponse(c *Copy) CopyResponse {
	resp := CopyResponse{
		ID:        c.ID,
		BookID:    c.BookID,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
	}
	if c.ShelfLocation.Valid {
		v := c.ShelfLocation.String
		resp.ShelfLocation = &v
	}
	return resp
}
