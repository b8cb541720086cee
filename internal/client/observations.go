package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sightline-io/sightline-go/internal/http"
	"github.com/sightline-io/sightline-go/pkg/sightline"
)

// ObservationsClient implements sightline.ObservationsClient
type ObservationsClient struct {
	httpClient *http.Client
}

// NewObservationsClient creates a new observations client
func NewObservationsClient(httpClient *http.Client) *ObservationsClient {
	return &ObservationsClient{
		httpClient: httpClient,
	}
}

// Register implements sightline.ObservationsClient.Register. The form is
// finalized locally first; an incomplete form never reaches the wire.
func (c *ObservationsClient) Register(ctx context.Context, form *sightline.GenericObservationForm) (*sightline.ObservationRef, error) {
	if form == nil {
		return nil, &sightline.ValidationError{Field: "form", Message: "must not be nil"}
	}

	observation, err := form.Finalize()
	if err != nil {
		return nil, fmt.Errorf("finalizing observation: %w", err)
	}

	resp, err := c.httpClient.Post(ctx, "/observations/generic", observation)
	if err != nil {
		return nil, fmt.Errorf("registering observation: %w", err)
	}

	ref, err := sightline.ParseObservationRef(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing registration response: %w", err)
	}

	return ref, nil
}

// Get implements sightline.ObservationsClient.Get
func (c *ObservationsClient) Get(ctx context.Context, id uuid.UUID) (*sightline.GenericObservationView, error) {
	path := fmt.Sprintf("/observations/generic/%s", id)

	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting observation: %w", annotateNotFound(err, "observation", id))
	}

	view, err := sightline.ParseGenericObservationView(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing observation response: %w", err)
	}

	return view, nil
}

// List implements sightline.ObservationsClient.List
func (c *ObservationsClient) List(ctx context.Context, query *sightline.ListQuery) (*sightline.Page[sightline.GenericObservationView], error) {
	return c.ListWithPath(ctx, "/observations/generic", query)
}

// ListWithPath implements sightline.ObservationsClient.ListWithPath. The
// pagination iterator calls it with a cursor-carrying query.
func (c *ObservationsClient) ListWithPath(ctx context.Context, path string, query *sightline.ListQuery) (*sightline.Page[sightline.GenericObservationView], error) {
	resp, err := c.httpClient.Get(ctx, path, query.ToValues())
	if err != nil {
		return nil, fmt.Errorf("listing observations: %w", err)
	}

	page, err := sightline.ParseGenericObservationPage(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing observations list response: %w", err)
	}

	return page, nil
}
