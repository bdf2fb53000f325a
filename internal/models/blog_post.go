package models

import (
	"time"

	"github.com/google/uuid"
)

// BlogPost - запись блога. Slug уникален и используется в публичных URL.
type BlogPost struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AuthorID  uuid.UUID `db:"author_id" json:"author_id"`
	Title     string    `db:"title" json:"title"`
	Slug      string    `db:"slug" json:"slug"`
	Content   string    `db:"content" json:"content"`
	Published bool      `db:"published" json:"published"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
