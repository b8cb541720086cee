package sightline_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sightline-io/sightline-go/pkg/sightline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func domainEntity(t *testing.T, name string) *sightline.Entity {
	t.Helper()

	entity := sightline.NewEntity(sightline.EntityTypeDomainName)
	require.NoError(t, entity.AddKey(sightline.EntityKeyTypeString, name))

	return entity
}

func ipEntity(t *testing.T, addr string) *sightline.Entity {
	t.Helper()

	entity := sightline.NewEntity(sightline.EntityTypeIPAddress)
	require.NoError(t, entity.AddKey(sightline.EntityKeyTypeString, addr))

	return entity
}

func TestGenericObservationForm_Complete(t *testing.T) {
	t.Parallel()

	form := sightline.NewGenericObservationForm()
	require.NoError(t, form.SetShareLevel(sightline.ShareLevelGreen))
	require.NoError(t, form.SetSeenAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, form.AddAttributeFact(domainEntity(t, "test.com"), sightline.AttributeIsIoC, true, 0.9))

	observation, err := form.Finalize()
	require.NoError(t, err)
	require.NotNil(t, observation)

	assert.Equal(t, sightline.ShareLevelGreen, observation.ShareLevel())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), observation.SeenAt())

	facts := observation.AttributeFacts()
	require.Len(t, facts, 1)
	assert.Equal(t, sightline.AttributeIsIoC, facts[0].Attribute)
	assert.Equal(t, true, facts[0].Value)
	assert.InDelta(t, 0.9, facts[0].Confidence, 1e-9)

	_, ok := observation.DataSource()
	assert.False(t, ok)
}

func TestGenericObservationForm_SetSeenAt(t *testing.T) {
	t.Parallel()

	form := sightline.NewGenericObservationForm()

	err := form.SetSeenAt(time.Time{})
	require.Error(t, err)

	var tsErr *sightline.InvalidTimestampError

	require.ErrorAs(t, err, &tsErr)
	assert.True(t, sightline.IsValidation(err))

	// Far-future timestamps are rejected.
	err = form.SetSeenAt(time.Now().Add(24 * time.Hour))
	require.ErrorAs(t, err, &tsErr)

	// Slight clock skew is tolerated.
	require.NoError(t, form.SetSeenAt(time.Now().Add(2*time.Minute)))

	// Past timestamps are always fine.
	require.NoError(t, form.SetSeenAt(time.Now().Add(-365*24*time.Hour)))
}

func TestGenericObservationForm_SkewTolerance(t *testing.T) {
	t.Parallel()

	form := sightline.NewGenericObservationForm().WithSkewTolerance(time.Second)

	err := form.SetSeenAt(time.Now().Add(2 * time.Minute))
	require.Error(t, err)

	wide := sightline.NewGenericObservationForm().WithSkewTolerance(time.Hour)
	require.NoError(t, wide.SetSeenAt(time.Now().Add(30*time.Minute)))
}

func TestGenericObservationForm_SetShareLevel(t *testing.T) {
	t.Parallel()

	form := sightline.NewGenericObservationForm()
	require.NoError(t, form.SetShareLevel(sightline.ShareLevelAmber))

	err := form.SetShareLevel(sightline.ShareLevel("Purple"))
	require.Error(t, err)
	assert.True(t, sightline.IsValidation(err))
}

//nolint:funlen // Test functions can be longer for detailed testing
func TestGenericObservationForm_AddAttributeFact(t *testing.T) {
	t.Parallel()

	domain := domainEntity(t, "test.com")

	tests := []struct {
		name       string
		entity     *sightline.Entity
		attribute  sightline.AttributeName
		value      any
		confidence float64
		check      func(t *testing.T, err error)
	}{
		{
			name:       "valid bool fact",
			entity:     domain,
			attribute:  sightline.AttributeIsIoC,
			value:      true,
			confidence: 0.9,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.NoError(t, err)
			},
		},
		{
			name:       "valid int fact",
			entity:     domain,
			attribute:  sightline.AttributeASN,
			value:      64512,
			confidence: 1,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.NoError(t, err)
			},
		},
		{
			name:       "valid string fact",
			entity:     domain,
			attribute:  sightline.AttributeThreatCategory,
			value:      "phishing",
			confidence: 0.5,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.NoError(t, err)
			},
		},
		{
			name:       "nil entity",
			entity:     nil,
			attribute:  sightline.AttributeIsIoC,
			value:      true,
			confidence: 0.9,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, sightline.IsValidation(err))
			},
		},
		{
			name:       "entity without keys",
			entity:     sightline.NewEntity(sightline.EntityTypeDomainName),
			attribute:  sightline.AttributeIsIoC,
			value:      true,
			confidence: 0.9,
			check: func(t *testing.T, err error) {
				t.Helper()

				var incompleteErr *sightline.IncompleteEntityError

				assert.ErrorAs(t, err, &incompleteErr)
			},
		},
		{
			name:       "confidence below range",
			entity:     domain,
			attribute:  sightline.AttributeIsIoC,
			value:      true,
			confidence: -0.1,
			check: func(t *testing.T, err error) {
				t.Helper()

				var confErr *sightline.InvalidConfidenceError

				assert.ErrorAs(t, err, &confErr)
			},
		},
		{
			name:       "confidence above range",
			entity:     domain,
			attribute:  sightline.AttributeIsIoC,
			value:      true,
			confidence: 1.5,
			check: func(t *testing.T, err error) {
				t.Helper()

				var confErr *sightline.InvalidConfidenceError

				assert.ErrorAs(t, err, &confErr)
			},
		},
		{
			name:       "unknown attribute",
			entity:     domain,
			attribute:  sightline.AttributeName("FavoriteColor"),
			value:      "blue",
			confidence: 0.9,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, sightline.IsValidation(err))
			},
		},
		{
			name:       "bool attribute with string value",
			entity:     domain,
			attribute:  sightline.AttributeIsIoC,
			value:      "yes",
			confidence: 0.9,
			check: func(t *testing.T, err error) {
				t.Helper()

				var mismatchErr *sightline.TypeMismatchError

				require.ErrorAs(t, err, &mismatchErr)
				assert.Equal(t, sightline.AttributeIsIoC, mismatchErr.Attribute)
			},
		},
		{
			name:       "int attribute with float value",
			entity:     domain,
			attribute:  sightline.AttributeSize,
			value:      1.5,
			confidence: 0.9,
			check: func(t *testing.T, err error) {
				t.Helper()

				var mismatchErr *sightline.TypeMismatchError

				assert.ErrorAs(t, err, &mismatchErr)
			},
		},
		{
			name:       "string attribute with empty value",
			entity:     domain,
			attribute:  sightline.AttributeThreatCategory,
			value:      "",
			confidence: 0.9,
			check: func(t *testing.T, err error) {
				t.Helper()

				var emptyErr *sightline.EmptyValueError

				assert.ErrorAs(t, err, &emptyErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			form := sightline.NewGenericObservationForm()
			tt.check(t, form.AddAttributeFact(tt.entity, tt.attribute, tt.value, tt.confidence))
		})
	}
}

func TestGenericObservationForm_AddAttributeFactBoundaryConfidence(t *testing.T) {
	t.Parallel()

	form := sightline.NewGenericObservationForm()
	require.NoError(t, form.AddAttributeFact(domainEntity(t, "a.com"), sightline.AttributeIsIoC, true, 0))
	require.NoError(t, form.AddAttributeFact(domainEntity(t, "b.com"), sightline.AttributeIsIoC, true, 1))
}

func TestGenericObservationForm_RejectedFactNotAppended(t *testing.T) {
	t.Parallel()

	form := sightline.NewGenericObservationForm()
	require.NoError(t, form.SetSeenAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, form.SetShareLevel(sightline.ShareLevelGreen))

	domain := domainEntity(t, "test.com")
	require.NoError(t, form.AddAttributeFact(domain, sightline.AttributeIsIoC, true, 0.9))

	err := form.AddAttributeFact(domain, sightline.AttributeIsMalicious, true, 1.5)

	var confErr *sightline.InvalidConfidenceError

	require.ErrorAs(t, err, &confErr)

	// The rejected fact left the form untouched.
	observation, err := form.Finalize()
	require.NoError(t, err)
	require.Len(t, observation.AttributeFacts(), 1)
	assert.Equal(t, sightline.AttributeIsIoC, observation.AttributeFacts()[0].Attribute)
}

func TestGenericObservationForm_AddAttributeFactIntWidths(t *testing.T) {
	t.Parallel()

	form := sightline.NewGenericObservationForm()
	entity := domainEntity(t, "test.com")

	require.NoError(t, form.AddAttributeFact(entity, sightline.AttributeASN, int32(65000), 1))
	require.NoError(t, form.AddAttributeFact(entity, sightline.AttributeASN, int64(4200000000), 1))
	require.NoError(t, form.AddAttributeFact(entity, sightline.AttributeASN, uint16(65000), 1))
}

func TestGenericObservationForm_AddEntityRelationship(t *testing.T) {
	t.Parallel()

	domain := domainEntity(t, "test.com")
	addr := ipEntity(t, "192.0.2.7")

	form := sightline.NewGenericObservationForm()
	require.NoError(t, form.AddEntityRelationship(domain, sightline.RelationshipResolvesTo, addr, 0.8))

	err := form.AddEntityRelationship(nil, sightline.RelationshipResolvesTo, addr, 0.8)
	assert.True(t, sightline.IsValidation(err))

	err = form.AddEntityRelationship(domain, sightline.RelationshipResolvesTo, nil, 0.8)
	assert.True(t, sightline.IsValidation(err))

	err = form.AddEntityRelationship(domain, sightline.RelationshipKind("Likes"), addr, 0.8)
	assert.True(t, sightline.IsValidation(err))

	var confErr *sightline.InvalidConfidenceError

	err = form.AddEntityRelationship(domain, sightline.RelationshipResolvesTo, addr, 2)
	assert.ErrorAs(t, err, &confErr)

	var incompleteErr *sightline.IncompleteEntityError

	incomplete := sightline.NewEntity(sightline.EntityTypeDomainName)
	err = form.AddEntityRelationship(incomplete, sightline.RelationshipResolvesTo, addr, 0.8)
	assert.ErrorAs(t, err, &incompleteErr)
}

func TestGenericObservationForm_FinalizeCollectsAllMissing(t *testing.T) {
	t.Parallel()

	form := sightline.NewGenericObservationForm()

	_, err := form.Finalize()
	require.Error(t, err)

	var incompleteErr *sightline.IncompleteObservationError

	require.ErrorAs(t, err, &incompleteErr)
	assert.ElementsMatch(t, []string{"seenAt", "shareLevel", "facts"}, incompleteErr.Missing)
	assert.True(t, sightline.IsValidation(err))
}

func TestGenericObservationForm_FinalizePartiallyMissing(t *testing.T) {
	t.Parallel()

	form := sightline.NewGenericObservationForm()
	require.NoError(t, form.SetShareLevel(sightline.ShareLevelGreen))

	_, err := form.Finalize()

	var incompleteErr *sightline.IncompleteObservationError

	require.ErrorAs(t, err, &incompleteErr)
	assert.ElementsMatch(t, []string{"seenAt", "facts"}, incompleteErr.Missing)
}

func TestGenericObservationForm_FinalizeRelationshipsSatisfyContent(t *testing.T) {
	t.Parallel()

	form := sightline.NewGenericObservationForm()
	require.NoError(t, form.SetShareLevel(sightline.ShareLevelGreen))
	require.NoError(t, form.SetSeenAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, form.AddEntityRelationship(
		domainEntity(t, "test.com"), sightline.RelationshipResolvesTo, ipEntity(t, "192.0.2.7"), 0.8))

	observation, err := form.Finalize()
	require.NoError(t, err)
	assert.Empty(t, observation.AttributeFacts())
	assert.Len(t, observation.EntityRelationships(), 1)
}

func TestGenericObservationForm_DataSource(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	form := sightline.NewGenericObservationForm().SetDataSource(id)
	require.NoError(t, form.SetShareLevel(sightline.ShareLevelWhite))
	require.NoError(t, form.SetSeenAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, form.AddAttributeFact(domainEntity(t, "test.com"), sightline.AttributeIsIoC, true, 1))

	observation, err := form.Finalize()
	require.NoError(t, err)

	got, ok := observation.DataSource()
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestGenericObservation_ImmutableAfterFinalize(t *testing.T) {
	t.Parallel()

	entity := domainEntity(t, "test.com")

	form := sightline.NewGenericObservationForm()
	require.NoError(t, form.SetShareLevel(sightline.ShareLevelGreen))
	require.NoError(t, form.SetSeenAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, form.AddAttributeFact(entity, sightline.AttributeIsIoC, true, 0.9))

	observation, err := form.Finalize()
	require.NoError(t, err)

	// Mutating the form after finalization must not leak into the snapshot.
	require.NoError(t, form.AddAttributeFact(domainEntity(t, "other.com"), sightline.AttributeIsMalicious, true, 0.5))
	assert.Len(t, observation.AttributeFacts(), 1)

	// Mutating the entity used to build the fact must not either.
	require.NoError(t, entity.AddKey(sightline.EntityKeyTypeString, "alias.test.com"))
	facts := observation.AttributeFacts()
	require.Len(t, facts, 1)
	assert.Len(t, facts[0].Entity.Keys(), 1)

	// Mutating a returned slice must not affect subsequent reads.
	facts[0].Confidence = 0
	again := observation.AttributeFacts()
	assert.InDelta(t, 0.9, again[0].Confidence, 1e-9)
}

func TestGenericObservationForm_FinalizeTwice(t *testing.T) {
	t.Parallel()

	form := sightline.NewGenericObservationForm()
	require.NoError(t, form.SetShareLevel(sightline.ShareLevelGreen))
	require.NoError(t, form.SetSeenAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, form.AddAttributeFact(domainEntity(t, "test.com"), sightline.AttributeIsIoC, true, 0.9))

	first, err := form.Finalize()
	require.NoError(t, err)

	second, err := form.Finalize()
	require.NoError(t, err)

	assert.Equal(t, first.SeenAt(), second.SeenAt())
	assert.Len(t, second.AttributeFacts(), len(first.AttributeFacts()))
}
