package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sightline-io/sightline-go/internal/http"
	"github.com/sightline-io/sightline-go/pkg/sightline"
)

// NewTestClient creates a client against the given base URL without
// authentication.
func NewTestClient(baseURL string) *Client {
	// Create HTTP client without token manager for testing
	httpClient := http.NewClient(baseURL, nil)

	client := &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}

	// Initialize resource clients
	client.initializeResourceClients()

	return client
}

// testDomainEntity builds a complete domain name entity.
func testDomainEntity(t *testing.T) *sightline.Entity {
	t.Helper()

	entity := sightline.NewEntity(sightline.EntityTypeDomainName)
	require.NoError(t, entity.AddKey(sightline.EntityKeyTypeString, "test.com"))

	return entity
}

// testObservationForm builds a form that passes finalization.
func testObservationForm(t *testing.T) *sightline.GenericObservationForm {
	t.Helper()

	form := sightline.NewGenericObservationForm()
	require.NoError(t, form.SetShareLevel(sightline.ShareLevelGreen))
	require.NoError(t, form.SetSeenAt(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)))
	require.NoError(t, form.AddAttributeFact(testDomainEntity(t), sightline.AttributeIsIoC, true, 0.9))

	return form
}

// entityViewBody renders a server-side entity document.
func entityViewBody(id, entityType, keyValue string) map[string]interface{} {
	return map[string]interface{}{
		"uuid": id,
		"url":  "/observable/entities/" + id,
		"type": entityType,
		"keys": []map[string]interface{}{
			{"type": "String", "value": keyValue},
		},
	}
}

// observationViewBody renders a server-side observation document with a
// single attribute fact.
func observationViewBody(id string) map[string]interface{} {
	return map[string]interface{}{
		"uuid":         id,
		"url":          "/observations/generic/" + id,
		"reporter":     map[string]interface{}{"uuid": "0be31c2e-2f2b-4b31-b279-ae75c3e9e6a0"},
		"dataSource":   map[string]interface{}{"uuid": "7b7e9580-7f29-44f3-a1a9-6a2fd1b5a3cd"},
		"shareLevel":   "Green",
		"seenAt":       "2024-01-15T10:30:00Z",
		"registeredAt": "2024-01-15T10:31:02Z",
		"content": map[string]interface{}{
			"entityAttributeValues": []map[string]interface{}{
				{
					"entity":        entityViewBody("57d90d42-4a09-4d9b-b413-3e4e3cbf16d0", "DomainName", "test.com"),
					"attributeName": "IsIoC",
					"value":         true,
					"confidence":    0.9,
				},
			},
			"entityRelationships": []map[string]interface{}{},
		},
	}
}
