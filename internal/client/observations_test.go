package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-io/sightline-go/pkg/sightline"
)

func TestObservationsClient_Register(t *testing.T) {
	t.Parallel()

	observationID := uuid.MustParse("31b7a9f0-14d3-4896-9e1a-332bbb52acaa")

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/observations/generic", request.URL.Path)
		assert.Equal(t, "POST", request.Method)
		assert.Equal(t, "application/json", request.Header.Get("Content-Type"))

		var body map[string]interface{}

		require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
		assert.Equal(t, "Green", body["shareLevel"])
		assert.Equal(t, "2024-01-15T10:30:00Z", body["seenAt"])

		content, ok := body["content"].(map[string]interface{})
		require.True(t, ok)

		facts, ok := content["entityAttributeValues"].([]interface{})
		require.True(t, ok)
		require.Len(t, facts, 1)

		fact, ok := facts[0].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "IsIoC", fact["attributeName"])
		assert.Equal(t, true, fact["value"])
		assert.InDelta(t, 0.9, fact["confidence"], 0.0001)

		entity, ok := fact["entity"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "DomainName", entity["type"])

		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(writer).Encode(map[string]string{
			"uuid":         observationID.String(),
			"registeredAt": "2024-01-15T10:31:02Z",
		})
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	ref, err := client.Observations().Register(context.Background(), testObservationForm(t))
	require.NoError(t, err)
	assert.Equal(t, observationID, ref.UUID)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 31, 2, 0, time.UTC), ref.RegisteredAt.UTC())
}

func TestObservationsClient_Register_IncompleteForm(t *testing.T) {
	t.Parallel()

	requests := 0

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requests++

		writer.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	// An empty form fails finalization before any request is made.
	_, err := client.Observations().Register(context.Background(), sightline.NewGenericObservationForm())
	require.Error(t, err)
	assert.True(t, sightline.IsValidation(err))

	var incomplete *sightline.IncompleteObservationError

	require.ErrorAs(t, err, &incomplete)
	assert.Contains(t, incomplete.Missing, "seenAt")
	assert.Equal(t, 0, requests)
}

func TestObservationsClient_Register_NilForm(t *testing.T) {
	t.Parallel()

	requests := 0

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requests++
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	_, err := client.Observations().Register(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, sightline.IsValidation(err))
	assert.Equal(t, 0, requests)
}

func TestObservationsClient_Get(t *testing.T) {
	t.Parallel()

	observationID := uuid.MustParse("31b7a9f0-14d3-4896-9e1a-332bbb52acaa")

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/observations/generic/"+observationID.String(), request.URL.Path)
		assert.Equal(t, "GET", request.Method)

		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(observationViewBody(observationID.String()))
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	view, err := client.Observations().Get(context.Background(), observationID)
	require.NoError(t, err)
	assert.Equal(t, observationID, view.UUID)
	assert.Equal(t, sightline.ShareLevelGreen, view.ShareLevel)
	require.Len(t, view.Content.EntityAttributeValues, 1)

	fact := view.Content.EntityAttributeValues[0]
	assert.Equal(t, sightline.AttributeIsIoC, fact.Attribute)
	assert.Equal(t, true, fact.Value)
	assert.Equal(t, sightline.EntityTypeDomainName, fact.Entity.Type)
}

func TestObservationsClient_Get_NotFound(t *testing.T) {
	t.Parallel()

	observationID := uuid.MustParse("31b7a9f0-14d3-4896-9e1a-332bbb52acaa")

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(writer).Encode(map[string]string{
			"code":    "NotFound",
			"message": "observation does not exist",
		})
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	_, err := client.Observations().Get(context.Background(), observationID)
	require.Error(t, err)

	var notFound *sightline.NotFoundError

	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "observation", notFound.Resource)
	assert.Equal(t, observationID, notFound.UUID)
	require.NotNil(t, notFound.Detail)
	assert.Equal(t, "NotFound", notFound.Detail.Code)
}

func TestObservationsClient_List(t *testing.T) {
	t.Parallel()

	entityID := uuid.MustParse("57d90d42-4a09-4d9b-b413-3e4e3cbf16d0")

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/observations/generic", request.URL.Path)
		assert.Equal(t, "GET", request.Method)
		assert.Equal(t, "20", request.URL.Query().Get("limit"))
		assert.Equal(t, entityID.String(), request.URL.Query().Get("entityUUID"))

		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]interface{}{
			"items": []interface{}{
				observationViewBody("31b7a9f0-14d3-4896-9e1a-332bbb52acaa"),
				observationViewBody("4715f107-65d6-4d1e-8e8f-9f0b1c2d3e4f"),
			},
			"nextCursor": "cursor-2",
		})
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	query := sightline.NewListQuery().WithLimit(20).WithEntity(entityID)

	page, err := client.Observations().List(context.Background(), query)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, "cursor-2", page.NextCursor)
	assert.True(t, page.HasMore())
}

func TestObservationsClient_ListWithPath(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/observations/generic", request.URL.Path)
		assert.Equal(t, "cursor-2", request.URL.Query().Get("cursor"))

		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]interface{}{
			"items": []interface{}{observationViewBody("31b7a9f0-14d3-4896-9e1a-332bbb52acaa")},
		})
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	query := sightline.NewListQuery().WithCursor("cursor-2")

	page, err := client.Observations().ListWithPath(context.Background(), "/observations/generic", query)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Empty(t, page.NextCursor)
	assert.False(t, page.HasMore())
}
