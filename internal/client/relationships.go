package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sightline-io/sightline-go/internal/http"
	"github.com/sightline-io/sightline-go/pkg/sightline"
)

// RelationshipsClient implements sightline.RelationshipsClient
type RelationshipsClient struct {
	httpClient *http.Client
}

// NewRelationshipsClient creates a new relationships client
func NewRelationshipsClient(httpClient *http.Client) *RelationshipsClient {
	return &RelationshipsClient{
		httpClient: httpClient,
	}
}

// Forecast implements sightline.RelationshipsClient.Forecast. The kind is
// rendered as its kebab-case path segment.
func (c *RelationshipsClient) Forecast(ctx context.Context, source uuid.UUID, kind sightline.RelationshipKind, target uuid.UUID, query *sightline.ListQuery) (*sightline.RelationshipForecastView, error) {
	if !kind.Valid() {
		return nil, &sightline.ValidationError{Field: "relationship kind", Message: fmt.Sprintf("unknown relationship kind %q", string(kind))}
	}

	path := fmt.Sprintf("/observable/relationships/%s/%s/%s", source, kind.PathSegment(), target)

	resp, err := c.httpClient.Get(ctx, path, query.ToValues())
	if err != nil {
		return nil, fmt.Errorf("getting relationship forecast: %w", annotateNotFound(err, "relationship", source))
	}

	view, err := sightline.ParseRelationshipForecastView(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing relationship forecast response: %w", err)
	}

	return view, nil
}
