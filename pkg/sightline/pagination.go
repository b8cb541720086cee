package sightline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sightline-io/sightline-go/internal/constants"
)

// ListClient fetches one page of a cursor-paginated listing.
type ListClient[T any] interface {
	ListWithPath(ctx context.Context, path string, query *ListQuery) (*Page[T], error)
}

// PaginationIterator walks a cursor-paginated listing item by item, fetching
// pages lazily. Iterators are not safe for concurrent use.
type PaginationIterator[T any] struct {
	ctx     context.Context
	client  ListClient[T]
	path    string
	query   *ListQuery
	buffer  []T
	index   int
	cursor  string
	started bool
}

// NewPaginationIterator creates an iterator over the listing at path.
func NewPaginationIterator[T any](ctx context.Context, client ListClient[T], path string, query *ListQuery) *PaginationIterator[T] {
	return &PaginationIterator[T]{
		ctx:    ctx,
		client: client,
		path:   path,
		query:  query.clone(),
	}
}

// HasNext reports whether another item may be available. Before the first
// fetch it is always true; the first Next call settles it.
func (it *PaginationIterator[T]) HasNext() bool {
	if !it.started {
		return true
	}

	return it.index < len(it.buffer) || it.cursor != ""
}

// Next returns the next item, fetching the next page when the buffered one
// is exhausted. It returns ErrNoMoreItems once the listing ends.
func (it *PaginationIterator[T]) Next() (T, error) {
	var zero T

	for {
		if it.index < len(it.buffer) {
			item := it.buffer[it.index]
			it.index++

			return item, nil
		}

		if it.started && it.cursor == "" {
			return zero, ErrNoMoreItems
		}

		if err := it.fetch(); err != nil {
			return zero, err
		}
	}
}

func (it *PaginationIterator[T]) fetch() error {
	query := it.query.clone()
	if it.started {
		query.Cursor = it.cursor
	}

	page, err := it.client.ListWithPath(it.ctx, it.path, query)
	if err != nil {
		return err
	}

	it.started = true
	it.buffer = page.Items
	it.index = 0
	it.cursor = page.NextCursor

	return nil
}

// All drains the iterator and returns the remaining items.
func (it *PaginationIterator[T]) All() ([]T, error) {
	var items []T

	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				break
			}

			return nil, err
		}

		items = append(items, item)
	}

	return items, nil
}

// ForEach applies fn to each remaining item, stopping at the first error.
func (it *PaginationIterator[T]) ForEach(fn func(T) error) error {
	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				return nil
			}

			return err
		}

		if err := fn(item); err != nil {
			return err
		}
	}

	return nil
}

// PaginationOptions tunes bulk page fetching.
type PaginationOptions struct {
	// PageSize overrides the per-page limit sent to the server.
	PageSize int
	// MaxPages caps how many pages are fetched. Zero applies a safety cap.
	MaxPages int
}

// DefaultPaginationOptions returns the default page size and page cap.
func DefaultPaginationOptions() *PaginationOptions {
	return &PaginationOptions{
		PageSize: constants.DefaultPageLimit,
		MaxPages: constants.MaxPages,
	}
}

// FetchAllPages follows cursors until the listing ends and returns every
// item. The page cap guards against unbounded listings.
func FetchAllPages[T any](ctx context.Context, client ListClient[T], path string, query *ListQuery, options *PaginationOptions) ([]T, error) {
	pageSize, maxPages := paginationSettings(options)

	query = query.clone()
	if pageSize > 0 {
		query.Limit = pageSize
	}

	var items []T

	for fetched := 0; fetched < maxPages; fetched++ {
		page, err := client.ListWithPath(ctx, path, query)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", fetched+1, err)
		}

		items = append(items, page.Items...)

		if !page.HasMore() {
			return items, nil
		}

		query = query.clone()
		query.Cursor = page.NextCursor
	}

	return items, nil
}

// PageResult is one streamed page, or the error that ended the stream.
type PageResult[T any] struct {
	Items  []T
	Cursor string
	Err    error
}

// StreamPages fetches pages in a goroutine and delivers them on the returned
// channel. The channel is closed when the listing ends, an error occurs, or
// the context is cancelled.
func StreamPages[T any](ctx context.Context, client ListClient[T], path string, query *ListQuery, options *PaginationOptions) <-chan PageResult[T] {
	pageSize, maxPages := paginationSettings(options)

	query = query.clone()
	if pageSize > 0 {
		query.Limit = pageSize
	}

	results := make(chan PageResult[T])

	go func() {
		defer close(results)

		current := query

		for fetched := 0; fetched < maxPages; fetched++ {
			page, err := client.ListWithPath(ctx, path, current)
			if err != nil {
				select {
				case results <- PageResult[T]{Err: err}:
				case <-ctx.Done():
				}

				return
			}

			select {
			case results <- PageResult[T]{Items: page.Items, Cursor: page.NextCursor}:
			case <-ctx.Done():
				return
			}

			if !page.HasMore() {
				return
			}

			current = current.clone()
			current.Cursor = page.NextCursor
		}
	}()

	return results
}

func paginationSettings(options *PaginationOptions) (pageSize, maxPages int) {
	maxPages = constants.MaxPages
	if options != nil {
		pageSize = options.PageSize
		if options.MaxPages > 0 {
			maxPages = options.MaxPages
		}
	}

	return pageSize, maxPages
}
