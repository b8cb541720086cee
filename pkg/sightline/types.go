package sightline

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// RefView is a bare reference to a registered resource.
type RefView struct {
	UUID uuid.UUID `json:"uuid"          yaml:"uuid"`
	URL  string    `json:"url,omitempty" yaml:"url,omitempty"`
}

// Page is one page of a cursor-paginated listing. An empty NextCursor means
// the listing is exhausted. Cursors are opaque and must be passed back
// unmodified.
type Page[T any] struct {
	Items      []T    `json:"items"                yaml:"items"`
	NextCursor string `json:"nextCursor,omitempty" yaml:"nextCursor,omitempty"`
}

// HasMore reports whether another page can be fetched.
func (p *Page[T]) HasMore() bool {
	return p != nil && p.NextCursor != ""
}

// DataSourceView is the read-only representation of a data source.
type DataSourceView struct {
	UUID       uuid.UUID `json:"uuid"                 yaml:"uuid"`
	URL        string    `json:"url,omitempty"        yaml:"url,omitempty"`
	Name       string    `json:"name"                 yaml:"name"`
	LongName   string    `json:"longName,omitempty"   yaml:"longName,omitempty"`
	Type       *RefView  `json:"type,omitempty"       yaml:"type,omitempty"`
	Confidence float64   `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// marshalForCache renders the view the way the server would, so cache
// priming and real responses decode identically.
func (v DataSourceView) marshalForCache() ([]byte, error) {
	return json.Marshal(v)
}

// ParseDataSourceView decodes a data source response body.
func ParseDataSourceView(data []byte) (*DataSourceView, error) {
	var raw struct {
		UUID       *uuid.UUID  `json:"uuid"`
		URL        string      `json:"url"`
		Name       string      `json:"name"`
		LongName   string      `json:"longName"`
		Type       *rawRefView `json:"type"`
		Confidence float64     `json:"confidence"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedResponseError{Field: "data source", Reason: err.Error()}
	}

	if raw.UUID == nil || *raw.UUID == uuid.Nil {
		return nil, &MalformedResponseError{Field: "uuid", Reason: "missing or nil"}
	}

	if raw.Name == "" {
		return nil, &MalformedResponseError{Field: "name", Reason: "missing"}
	}

	view := &DataSourceView{
		UUID:       *raw.UUID,
		URL:        raw.URL,
		Name:       raw.Name,
		LongName:   raw.LongName,
		Confidence: raw.Confidence,
	}

	if raw.Type != nil {
		ref, err := raw.Type.validate("type")
		if err != nil {
			return nil, err
		}

		view.Type = &ref
	}

	return view, nil
}

// ParseGenericObservationPage decodes one page of an observation listing.
func ParseGenericObservationPage(data []byte) (*Page[GenericObservationView], error) {
	return parsePage(data, "observations page", func(item json.RawMessage) (GenericObservationView, error) {
		view, err := ParseGenericObservationView(item)
		if err != nil {
			return GenericObservationView{}, err
		}

		return *view, nil
	})
}

// ParseDataSourcePage decodes one page of a data source listing.
func ParseDataSourcePage(data []byte) (*Page[DataSourceView], error) {
	return parsePage(data, "data sources page", func(item json.RawMessage) (DataSourceView, error) {
		view, err := ParseDataSourceView(item)
		if err != nil {
			return DataSourceView{}, err
		}

		return *view, nil
	})
}

// parsePage decodes a paginated envelope, applying parse to each item.
func parsePage[T any](data []byte, what string, parse func(json.RawMessage) (T, error)) (*Page[T], error) {
	var raw struct {
		Items      []json.RawMessage `json:"items"`
		NextCursor string            `json:"nextCursor"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedResponseError{Field: what, Reason: err.Error()}
	}

	page := &Page[T]{NextCursor: raw.NextCursor}

	for i, item := range raw.Items {
		decoded, err := parse(item)
		if err != nil {
			return nil, fmt.Errorf("parsing %s item %d: %w", what, i, err)
		}

		page.Items = append(page.Items, decoded)
	}

	return page, nil
}
