package sightline_test

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sightline-io/sightline-go/pkg/sightline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildObservation(t *testing.T) *sightline.GenericObservation {
	t.Helper()

	form := sightline.NewGenericObservationForm()
	require.NoError(t, form.SetShareLevel(sightline.ShareLevelGreen))
	require.NoError(t, form.SetSeenAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, form.AddAttributeFact(domainEntity(t, "test.com"), sightline.AttributeIsIoC, true, 0.9))

	observation, err := form.Finalize()
	require.NoError(t, err)

	return observation
}

func TestGenericObservation_Encode(t *testing.T) {
	t.Parallel()

	observation := buildObservation(t)

	data, err := observation.Encode()
	require.NoError(t, err)

	expected := `{
		"shareLevel": "Green",
		"seenAt": "2024-01-01T00:00:00Z",
		"content": {
			"entityAttributeValues": [
				{
					"entity": {"type": "DomainName", "keys": [{"type": "String", "value": "test.com"}]},
					"attributeName": "IsIoC",
					"value": true,
					"confidence": 0.9
				}
			]
		}
	}`
	assert.JSONEq(t, expected, string(data))
}

func TestGenericObservation_EncodeDeterministic(t *testing.T) {
	t.Parallel()

	build := func(reversed bool) *sightline.GenericObservation {
		file := sightline.NewEntity(sightline.EntityTypeFile)
		if reversed {
			require.NoError(t, file.AddKey(sightline.EntityKeyTypeSHA256, "aa"))
			require.NoError(t, file.AddKey(sightline.EntityKeyTypeMD5, "bb"))
		} else {
			require.NoError(t, file.AddKey(sightline.EntityKeyTypeMD5, "bb"))
			require.NoError(t, file.AddKey(sightline.EntityKeyTypeSHA256, "aa"))
		}

		form := sightline.NewGenericObservationForm()
		require.NoError(t, form.SetShareLevel(sightline.ShareLevelAmber))
		require.NoError(t, form.SetSeenAt(time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)))
		require.NoError(t, form.AddAttributeFact(file, sightline.AttributeIsMalicious, true, 1))

		observation, err := form.Finalize()
		require.NoError(t, err)

		return observation
	}

	first, err := build(false).Encode()
	require.NoError(t, err)

	second, err := build(true).Encode()
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))

	// Encoding the same observation twice yields identical bytes.
	again, err := build(false).Encode()
	require.NoError(t, err)
	assert.Equal(t, string(first), string(again))
}

func TestGenericObservation_EncodeNormalizesToUTC(t *testing.T) {
	t.Parallel()

	offset := time.FixedZone("UTC+2", 2*60*60)

	form := sightline.NewGenericObservationForm()
	require.NoError(t, form.SetShareLevel(sightline.ShareLevelGreen))
	require.NoError(t, form.SetSeenAt(time.Date(2024, 1, 1, 14, 0, 0, 0, offset)))
	require.NoError(t, form.AddAttributeFact(domainEntity(t, "test.com"), sightline.AttributeIsIoC, true, 1))

	observation, err := form.Finalize()
	require.NoError(t, err)

	data, err := observation.Encode()
	require.NoError(t, err)

	var decoded map[string]any

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2024-01-01T12:00:00Z", decoded["seenAt"])
}

func TestGenericObservation_EncodeWithDataSourceAndRelationships(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("99999999-8888-7777-6666-555555555555")

	form := sightline.NewGenericObservationForm().SetDataSource(id)
	require.NoError(t, form.SetShareLevel(sightline.ShareLevelRed))
	require.NoError(t, form.SetSeenAt(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, form.AddEntityRelationship(
		domainEntity(t, "test.com"), sightline.RelationshipResolvesTo, ipEntity(t, "192.0.2.7"), 0.8))

	observation, err := form.Finalize()
	require.NoError(t, err)

	data, err := observation.Encode()
	require.NoError(t, err)

	expected := `{
		"shareLevel": "Red",
		"seenAt": "2024-03-01T00:00:00Z",
		"dataSourceUUID": "99999999-8888-7777-6666-555555555555",
		"content": {
			"entityRelationships": [
				{
					"source": {"type": "DomainName", "keys": [{"type": "String", "value": "test.com"}]},
					"kind": "ResolvesTo",
					"target": {"type": "IPAddress", "keys": [{"type": "String", "value": "192.0.2.7"}]},
					"confidence": 0.8
				}
			]
		}
	}`
	assert.JSONEq(t, expected, string(data))
}

func TestGenericObservation_MarshalJSON(t *testing.T) {
	t.Parallel()

	observation := buildObservation(t)

	direct, err := observation.Encode()
	require.NoError(t, err)

	viaMarshal, err := json.Marshal(observation)
	require.NoError(t, err)

	assert.Equal(t, string(direct), string(viaMarshal))
}

func TestParseObservationRef(t *testing.T) {
	t.Parallel()

	body := `{"uuid":"11111111-2222-3333-4444-555555555555","registeredAt":"2024-01-02T03:04:05Z"}`

	ref, err := sightline.ParseObservationRef([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, uuid.MustParse("11111111-2222-3333-4444-555555555555"), ref.UUID)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), ref.RegisteredAt.UTC())
}

func TestParseObservationRef_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html></html>"},
		{name: "missing uuid", body: `{"registeredAt":"2024-01-02T03:04:05Z"}`},
		{name: "nil uuid", body: `{"uuid":"00000000-0000-0000-0000-000000000000","registeredAt":"2024-01-02T03:04:05Z"}`},
		{name: "missing registeredAt", body: `{"uuid":"11111111-2222-3333-4444-555555555555"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := sightline.ParseObservationRef([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, sightline.IsMalformedResponse(err))
		})
	}
}

func TestParseRefView(t *testing.T) {
	t.Parallel()

	body := `{"uuid":"11111111-2222-3333-4444-555555555555","url":"https://api.sightline.example/observable/entities/11111111-2222-3333-4444-555555555555"}`

	view, err := sightline.ParseRefView([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, uuid.MustParse("11111111-2222-3333-4444-555555555555"), view.UUID)
	assert.Contains(t, view.URL, "/observable/entities/")

	_, err = sightline.ParseRefView([]byte(`{"url":"https://x"}`))
	assert.True(t, sightline.IsMalformedResponse(err))
}

func TestParseEntityView(t *testing.T) {
	t.Parallel()

	body := `{
		"uuid": "11111111-2222-3333-4444-555555555555",
		"type": "DomainName",
		"keys": [{"type": "String", "value": "test.com"}]
	}`

	view, err := sightline.ParseEntityView([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, sightline.EntityTypeDomainName, view.Type)
	require.Len(t, view.Keys, 1)
	assert.Equal(t, "test.com", view.Keys[0].Value)
}

func TestParseEntityView_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "unknown type", body: `{"type":"Sandwich","keys":[{"type":"String","value":"x"}]}`},
		{name: "no keys", body: `{"uuid":"11111111-2222-3333-4444-555555555555","type":"DomainName"}`},
		{name: "key missing value", body: `{"type":"DomainName","keys":[{"type":"String"}]}`},
		{name: "neither uuid nor type", body: `{"keys":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := sightline.ParseEntityView([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, sightline.IsMalformedResponse(err))
		})
	}
}

func observationViewBody() map[string]any {
	return map[string]any{
		"uuid": "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		"url":  "https://api.sightline.example/observations/generic/aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		"reporter": map[string]any{
			"uuid": "11111111-1111-1111-1111-111111111111",
		},
		"dataSource": map[string]any{
			"uuid": "22222222-2222-2222-2222-222222222222",
		},
		"shareLevel":   "Green",
		"seenAt":       "2024-01-01T00:00:00Z",
		"registeredAt": "2024-01-01T00:00:05Z",
		"content": map[string]any{
			"entityAttributeValues": []any{
				map[string]any{
					"entity": map[string]any{
						"uuid": "33333333-3333-3333-3333-333333333333",
						"type": "DomainName",
						"keys": []any{map[string]any{"type": "String", "value": "test.com"}},
					},
					"attributeName": "IsIoC",
					"value":         true,
					"confidence":    0.9,
				},
			},
		},
	}
}

func TestParseGenericObservationView(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(observationViewBody())
	require.NoError(t, err)

	view, err := sightline.ParseGenericObservationView(data)
	require.NoError(t, err)

	assert.Equal(t, uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"), view.UUID)
	assert.Equal(t, uuid.MustParse("11111111-1111-1111-1111-111111111111"), view.Reporter.UUID)
	assert.Equal(t, uuid.MustParse("22222222-2222-2222-2222-222222222222"), view.DataSource.UUID)
	assert.Equal(t, sightline.ShareLevelGreen, view.ShareLevel)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), view.SeenAt.UTC())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC), view.RegisteredAt.UTC())

	require.Len(t, view.Content.EntityAttributeValues, 1)
	fact := view.Content.EntityAttributeValues[0]
	assert.Equal(t, sightline.AttributeIsIoC, fact.Attribute)
	assert.Equal(t, true, fact.Value)
	assert.InDelta(t, 0.9, fact.Confidence, 1e-9)
	assert.Equal(t, sightline.EntityTypeDomainName, fact.Entity.Type)
}

//nolint:funlen // Test functions can be longer for detailed testing
func TestParseGenericObservationView_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(body map[string]any)
	}{
		{
			name:   "missing reporter",
			mutate: func(body map[string]any) { delete(body, "reporter") },
		},
		{
			name:   "missing dataSource",
			mutate: func(body map[string]any) { delete(body, "dataSource") },
		},
		{
			name:   "unknown share level",
			mutate: func(body map[string]any) { body["shareLevel"] = "Purple" },
		},
		{
			name:   "missing seenAt",
			mutate: func(body map[string]any) { delete(body, "seenAt") },
		},
		{
			name:   "missing registeredAt",
			mutate: func(body map[string]any) { delete(body, "registeredAt") },
		},
		{
			name:   "missing content",
			mutate: func(body map[string]any) { delete(body, "content") },
		},
		{
			name: "fact missing confidence",
			mutate: func(body map[string]any) {
				content, ok := body["content"].(map[string]any)
				require.True(t, ok)
				values, ok := content["entityAttributeValues"].([]any)
				require.True(t, ok)
				fact, ok := values[0].(map[string]any)
				require.True(t, ok)
				delete(fact, "confidence")
			},
		},
		{
			name: "fact value type mismatch",
			mutate: func(body map[string]any) {
				content, ok := body["content"].(map[string]any)
				require.True(t, ok)
				values, ok := content["entityAttributeValues"].([]any)
				require.True(t, ok)
				fact, ok := values[0].(map[string]any)
				require.True(t, ok)
				fact["value"] = "definitely"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			body := observationViewBody()
			tt.mutate(body)

			data, err := json.Marshal(body)
			require.NoError(t, err)

			_, err = sightline.ParseGenericObservationView(data)
			require.Error(t, err)
			assert.True(t, sightline.IsMalformedResponse(err))
		})
	}
}

func TestParseGenericObservationView_RefOnlyNestedEntity(t *testing.T) {
	t.Parallel()

	body := observationViewBody()
	content, ok := body["content"].(map[string]any)
	require.True(t, ok)
	content["entityAttributeValues"] = []any{
		map[string]any{
			"entity":        map[string]any{"uuid": "33333333-3333-3333-3333-333333333333"},
			"attributeName": "IsIoC",
			"value":         true,
			"confidence":    0.9,
		},
	}

	data, err := json.Marshal(body)
	require.NoError(t, err)

	view, err := sightline.ParseGenericObservationView(data)
	require.NoError(t, err)
	require.Len(t, view.Content.EntityAttributeValues, 1)
	assert.Equal(t,
		uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		view.Content.EntityAttributeValues[0].Entity.UUID)
	assert.Empty(t, view.Content.EntityAttributeValues[0].Entity.Keys)
}

func TestParseGenericObservationView_IntValueCoercion(t *testing.T) {
	t.Parallel()

	body := observationViewBody()
	content, ok := body["content"].(map[string]any)
	require.True(t, ok)
	content["entityAttributeValues"] = []any{
		map[string]any{
			"entity":        map[string]any{"uuid": "33333333-3333-3333-3333-333333333333"},
			"attributeName": "ASN",
			"value":         64512,
			"confidence":    1,
		},
	}

	data, err := json.Marshal(body)
	require.NoError(t, err)

	view, err := sightline.ParseGenericObservationView(data)
	require.NoError(t, err)
	require.Len(t, view.Content.EntityAttributeValues, 1)
	assert.Equal(t, int64(64512), view.Content.EntityAttributeValues[0].Value)
}

func TestParseGenericObservationView_UnknownAttributePassesThrough(t *testing.T) {
	t.Parallel()

	body := observationViewBody()
	content, ok := body["content"].(map[string]any)
	require.True(t, ok)
	content["entityAttributeValues"] = []any{
		map[string]any{
			"entity":        map[string]any{"uuid": "33333333-3333-3333-3333-333333333333"},
			"attributeName": "BrandNewAttribute",
			"value":         "whatever",
			"confidence":    0.4,
		},
	}

	data, err := json.Marshal(body)
	require.NoError(t, err)

	view, err := sightline.ParseGenericObservationView(data)
	require.NoError(t, err)
	require.Len(t, view.Content.EntityAttributeValues, 1)
	assert.Equal(t, sightline.AttributeName("BrandNewAttribute"), view.Content.EntityAttributeValues[0].Attribute)
	assert.Equal(t, "whatever", view.Content.EntityAttributeValues[0].Value)
}

func TestObservationRoundTrip(t *testing.T) {
	t.Parallel()

	observation := buildObservation(t)

	encoded, err := observation.Encode()
	require.NoError(t, err)

	// Simulate the server echoing the registration back as a view with
	// server-assigned fields added.
	var body map[string]any

	require.NoError(t, json.Unmarshal(encoded, &body))

	body["uuid"] = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	body["reporter"] = map[string]any{"uuid": "11111111-1111-1111-1111-111111111111"}
	body["dataSource"] = map[string]any{"uuid": "22222222-2222-2222-2222-222222222222"}
	body["registeredAt"] = "2024-01-01T00:00:05Z"

	viewData, err := json.Marshal(body)
	require.NoError(t, err)

	view, err := sightline.ParseGenericObservationView(viewData)
	require.NoError(t, err)

	assert.Equal(t, observation.ShareLevel(), view.ShareLevel)
	assert.True(t, observation.SeenAt().Equal(view.SeenAt))

	require.Len(t, view.Content.EntityAttributeValues, 1)

	original := observation.AttributeFacts()[0]
	decoded := view.Content.EntityAttributeValues[0]
	assert.Equal(t, original.Attribute, decoded.Attribute)
	assert.Equal(t, original.Value, decoded.Value)
	assert.InDelta(t, original.Confidence, decoded.Confidence, 1e-9)
	assert.True(t, original.Entity.Equal(decoded.Entity.Form()))
}

func TestObservationRoundTrip_RandomForms(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 50; run++ {
		observation, err := randomForm(t, rng).Finalize()
		require.NoError(t, err, "run %d", run)

		encoded, err := observation.Encode()
		require.NoError(t, err, "run %d", run)

		var body map[string]any

		require.NoError(t, json.Unmarshal(encoded, &body))

		body["uuid"] = uuid.New().String()
		body["reporter"] = map[string]any{"uuid": uuid.New().String()}
		body["dataSource"] = map[string]any{"uuid": uuid.New().String()}
		body["registeredAt"] = "2024-01-01T00:00:05Z"

		viewData, err := json.Marshal(body)
		require.NoError(t, err)

		view, err := sightline.ParseGenericObservationView(viewData)
		require.NoError(t, err, "run %d: %s", run, viewData)

		assert.Equal(t, observation.ShareLevel(), view.ShareLevel)
		assert.True(t, observation.SeenAt().Equal(view.SeenAt), "run %d", run)

		facts := observation.AttributeFacts()
		require.Len(t, view.Content.EntityAttributeValues, len(facts))

		for i, fact := range facts {
			decoded := view.Content.EntityAttributeValues[i]
			assert.Equal(t, fact.Attribute, decoded.Attribute)
			assert.Equal(t, fact.Value, decoded.Value)
			assert.InDelta(t, fact.Confidence, decoded.Confidence, 1e-9)
			assert.True(t, fact.Entity.Equal(decoded.Entity.Form()), "run %d fact %d", run, i)
		}

		relationships := observation.EntityRelationships()
		require.Len(t, view.Content.EntityRelationships, len(relationships))

		for i, relationship := range relationships {
			decoded := view.Content.EntityRelationships[i]
			assert.Equal(t, relationship.Kind, decoded.Kind)
			assert.InDelta(t, relationship.Confidence, decoded.Confidence, 1e-9)
			assert.True(t, relationship.Source.Equal(decoded.Source.Form()), "run %d relationship %d", run, i)
			assert.True(t, relationship.Target.Equal(decoded.Target.Form()), "run %d relationship %d", run, i)
		}
	}
}

func randomForm(t *testing.T, rng *rand.Rand) *sightline.GenericObservationForm {
	t.Helper()

	form := sightline.NewGenericObservationForm()

	levels := []sightline.ShareLevel{
		sightline.ShareLevelWhite,
		sightline.ShareLevelGreen,
		sightline.ShareLevelAmber,
		sightline.ShareLevelRed,
	}
	require.NoError(t, form.SetShareLevel(levels[rng.Intn(len(levels))]))

	seenAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Duration(rng.Intn(86400)) * time.Second)
	require.NoError(t, form.SetSeenAt(seenAt))

	for i := 0; i < 1+rng.Intn(3); i++ {
		attribute, value := randomAttributeValue(rng)
		require.NoError(t, form.AddAttributeFact(randomEntity(t, rng), attribute, value, rng.Float64()))
	}

	if rng.Intn(2) == 0 {
		kinds := []sightline.RelationshipKind{
			sightline.RelationshipResolvesTo,
			sightline.RelationshipContains,
			sightline.RelationshipUses,
		}
		require.NoError(t, form.AddEntityRelationship(
			randomEntity(t, rng), kinds[rng.Intn(len(kinds))], randomEntity(t, rng), rng.Float64()))
	}

	return form
}

func randomEntity(t *testing.T, rng *rand.Rand) *sightline.Entity {
	t.Helper()

	switch rng.Intn(3) {
	case 0:
		return domainEntity(t, fmt.Sprintf("host-%d.example", rng.Intn(1000)))
	case 1:
		return ipEntity(t, fmt.Sprintf("10.0.%d.%d", rng.Intn(256), rng.Intn(256)))
	default:
		file := sightline.NewEntity(sightline.EntityTypeFile)
		require.NoError(t, file.AddKey(sightline.EntityKeyTypeSHA256, fmt.Sprintf("%064x", rng.Uint64())))

		return file
	}
}

func randomAttributeValue(rng *rand.Rand) (sightline.AttributeName, any) {
	switch rng.Intn(3) {
	case 0:
		attributes := []sightline.AttributeName{
			sightline.AttributeIsIoC,
			sightline.AttributeIsMalicious,
			sightline.AttributeIsDGA,
		}

		return attributes[rng.Intn(len(attributes))], rng.Intn(2) == 0
	case 1:
		attributes := []sightline.AttributeName{sightline.AttributeSize, sightline.AttributeASN}

		return attributes[rng.Intn(len(attributes))], rng.Intn(1 << 20)
	default:
		attributes := []sightline.AttributeName{
			sightline.AttributeNames,
			sightline.AttributeClass,
			sightline.AttributeThreatCategory,
		}

		return attributes[rng.Intn(len(attributes))], fmt.Sprintf("value-%d", rng.Intn(1000))
	}
}
