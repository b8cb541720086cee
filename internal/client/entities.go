package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sightline-io/sightline-go/internal/http"
	"github.com/sightline-io/sightline-go/pkg/sightline"
)

// EntitiesClient implements sightline.EntitiesClient
type EntitiesClient struct {
	httpClient *http.Client
}

// NewEntitiesClient creates a new entities client
func NewEntitiesClient(httpClient *http.Client) *EntitiesClient {
	return &EntitiesClient{
		httpClient: httpClient,
	}
}

// Register implements sightline.EntitiesClient.Register. Incomplete
// entities are rejected locally.
func (c *EntitiesClient) Register(ctx context.Context, entity *sightline.Entity) (*sightline.RefView, error) {
	if entity == nil {
		return nil, &sightline.ValidationError{Field: "entity", Message: "must not be nil"}
	}

	if !entity.Complete() {
		return nil, &sightline.IncompleteEntityError{EntityType: entity.Type()}
	}

	resp, err := c.httpClient.Post(ctx, "/observable/entities", entity)
	if err != nil {
		return nil, fmt.Errorf("registering entity: %w", err)
	}

	ref, err := sightline.ParseRefView(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing entity reference: %w", err)
	}

	return ref, nil
}

// Get implements sightline.EntitiesClient.Get
func (c *EntitiesClient) Get(ctx context.Context, id uuid.UUID) (*sightline.EntityView, error) {
	path := fmt.Sprintf("/observable/entities/%s", id)

	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting entity: %w", annotateNotFound(err, "entity", id))
	}

	view, err := sightline.ParseEntityView(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing entity response: %w", err)
	}

	return view, nil
}

// ForecastAttribute implements sightline.EntitiesClient.ForecastAttribute.
// Attributes outside the known vocabulary are passed through so the server
// can answer for newer vocabularies.
func (c *EntitiesClient) ForecastAttribute(ctx context.Context, id uuid.UUID, attribute sightline.AttributeName, query *sightline.ListQuery) (*sightline.AttributeForecastView, error) {
	path := fmt.Sprintf("/observable/entities/%s/forecasts/attributes/%s", id, attribute)

	resp, err := c.httpClient.Get(ctx, path, query.ToValues())
	if err != nil {
		return nil, fmt.Errorf("getting attribute forecast: %w", annotateNotFound(err, "entity", id))
	}

	view, err := sightline.ParseAttributeForecastView(attribute, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing attribute forecast response: %w", err)
	}

	return view, nil
}

// ForecastLinks implements sightline.EntitiesClient.ForecastLinks
func (c *EntitiesClient) ForecastLinks(ctx context.Context, id uuid.UUID, query *sightline.ListQuery) (*sightline.Page[sightline.LinkForecastView], error) {
	path := fmt.Sprintf("/observable/entities/%s/forecasts/links", id)

	resp, err := c.httpClient.Get(ctx, path, query.ToValues())
	if err != nil {
		return nil, fmt.Errorf("getting link forecast: %w", annotateNotFound(err, "entity", id))
	}

	page, err := sightline.ParseLinkForecastPage(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing link forecast response: %w", err)
	}

	return page, nil
}
