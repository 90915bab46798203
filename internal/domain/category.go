package domain

import "context"

// Category is a user-curated label that can be assigned to documents.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CategoryProvider exposes the read-only category catalogue.
type CategoryProvider interface {
	Categories(ctx context.Context) ([]Category, error)
}

// StaticCategories is a CategoryProvider over a fixed list.
type StaticCategories []Category

// Categories returns a copy of the list.
func (s StaticCategories) Categories(_ context.Context) ([]Category, error) {
	out := make([]Category, len(s))
	copy(out, s)
	return out, nil
}
