package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sightline-io/sightline-go/internal/http"
	"github.com/sightline-io/sightline-go/pkg/sightline"
)

// DataSourcesClient implements sightline.DataSourcesClient
type DataSourcesClient struct {
	httpClient *http.Client
}

// NewDataSourcesClient creates a new data sources client
func NewDataSourcesClient(httpClient *http.Client) *DataSourcesClient {
	return &DataSourcesClient{
		httpClient: httpClient,
	}
}

// Get implements sightline.DataSourcesClient.Get
func (c *DataSourcesClient) Get(ctx context.Context, id uuid.UUID) (*sightline.DataSourceView, error) {
	path := fmt.Sprintf("/data-sources/%s", id)

	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting data source: %w", annotateNotFound(err, "data source", id))
	}

	view, err := sightline.ParseDataSourceView(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing data source response: %w", err)
	}

	return view, nil
}

// List implements sightline.DataSourcesClient.List
func (c *DataSourcesClient) List(ctx context.Context, query *sightline.ListQuery) (*sightline.Page[sightline.DataSourceView], error) {
	resp, err := c.httpClient.Get(ctx, "/data-sources", query.ToValues())
	if err != nil {
		return nil, fmt.Errorf("listing data sources: %w", err)
	}

	page, err := sightline.ParseDataSourcePage(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing data sources list response: %w", err)
	}

	return page, nil
}
