package sightline

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ListQuery carries parameters for listing and forecast endpoints. The zero
// value lists from the beginning with server defaults. Builder methods
// return the query for chaining.
type ListQuery struct {
	Limit   int
	Cursor  string
	Filters map[string][]string
}

// NewListQuery creates an empty list query.
func NewListQuery() *ListQuery {
	return &ListQuery{Filters: make(map[string][]string)}
}

// WithLimit sets the page size.
func (q *ListQuery) WithLimit(limit int) *ListQuery {
	q.Limit = limit

	return q
}

// WithCursor resumes the listing from an opaque cursor.
func (q *ListQuery) WithCursor(cursor string) *ListQuery {
	q.Cursor = cursor

	return q
}

// WithFilter appends values to a raw filter key.
func (q *ListQuery) WithFilter(key string, values ...string) *ListQuery {
	if q.Filters == nil {
		q.Filters = make(map[string][]string)
	}

	q.Filters[key] = append(q.Filters[key], values...)

	return q
}

// setFilter replaces a filter with a single value.
func (q *ListQuery) setFilter(key, value string) *ListQuery {
	if q.Filters == nil {
		q.Filters = make(map[string][]string)
	}

	q.Filters[key] = []string{value}

	return q
}

// WithEntity keeps only observations mentioning the entity.
func (q *ListQuery) WithEntity(id uuid.UUID) *ListQuery {
	return q.setFilter("entityUUID", id.String())
}

// WithDataSource keeps only observations attributed to the data source.
func (q *ListQuery) WithDataSource(id uuid.UUID) *ListQuery {
	return q.setFilter("dataSourceUUID", id.String())
}

// WithReporter keeps only observations registered by the reporter.
func (q *ListQuery) WithReporter(id uuid.UUID) *ListQuery {
	return q.setFilter("reporterUUID", id.String())
}

// WithSeenBefore keeps only observations seen strictly before the time.
func (q *ListQuery) WithSeenBefore(t time.Time) *ListQuery {
	return q.setFilter("seenBefore", t.UTC().Format(time.RFC3339Nano))
}

// WithSeenAfter keeps only observations seen strictly after the time.
func (q *ListQuery) WithSeenAfter(t time.Time) *ListQuery {
	return q.setFilter("seenAfter", t.UTC().Format(time.RFC3339Nano))
}

// WithForecastAt asks forecast endpoints for the state at a past moment.
func (q *ListQuery) WithForecastAt(t time.Time) *ListQuery {
	return q.setFilter("forecastAt", t.UTC().Format(time.RFC3339Nano))
}

// WithValuableFacts asks forecast endpoints to include contributing facts.
func (q *ListQuery) WithValuableFacts(include bool) *ListQuery {
	return q.setFilter("valuableFacts", strconv.FormatBool(include))
}

// WithRelationKinds restricts a link forecast to the given kinds.
func (q *ListQuery) WithRelationKinds(kinds ...RelationshipKind) *ListQuery {
	values := make([]string, len(kinds))
	for i, kind := range kinds {
		values[i] = string(kind)
	}

	return q.setFilter("kind", strings.Join(values, ","))
}

// WithConfidenceThreshold drops forecast entries below the threshold.
func (q *ListQuery) WithConfidenceThreshold(threshold float64) *ListQuery {
	return q.setFilter("confidenceThreshold", strconv.FormatFloat(threshold, 'f', -1, 64))
}

// ToValues renders the query as URL parameters. Multi-valued filters are
// comma-joined.
func (q *ListQuery) ToValues() url.Values {
	values := url.Values{}
	if q == nil {
		return values
	}

	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}

	if q.Cursor != "" {
		values.Set("cursor", q.Cursor)
	}

	for key, filterValues := range q.Filters {
		if len(filterValues) > 0 {
			values.Set(key, strings.Join(filterValues, ","))
		}
	}

	return values
}

// clone returns a copy that can be mutated without affecting the original.
func (q *ListQuery) clone() *ListQuery {
	out := NewListQuery()
	if q == nil {
		return out
	}

	out.Limit = q.Limit
	out.Cursor = q.Cursor

	for key, filterValues := range q.Filters {
		out.Filters[key] = append([]string(nil), filterValues...)
	}

	return out
}
