package analytics

import "context"

// Page is the envelope shared by every paginated listing.
type Page[T any] struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Items []T   `json:"items"`
}

// FetchFunc loads one window of a listing and the size of the whole listing.
type FetchFunc[T any] func(ctx context.Context, offset, limit int) ([]T, int64, error)

// Offset converts a 1-indexed page number into a row offset.
func Offset(page, limit int) int {
	return (page - 1) * limit
}

// Paginate runs fetch for the requested page and wraps the result. page and
// limit are expected to be validated by the caller.
func Paginate[T any](ctx context.Context, page, limit int, fetch FetchFunc[T]) (Page[T], error) {
	items, total, err := fetch(ctx, Offset(page, limit), limit)
	if err != nil {
		return Page[T]{}, err
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Page: page, Limit: limit, Total: total, Items: items}, nil
}
