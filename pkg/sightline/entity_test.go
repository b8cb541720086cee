package sightline_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/sightline-io/sightline-go/pkg/sightline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_AddKey(t *testing.T) {
	t.Parallel()

	entity := sightline.NewEntity(sightline.EntityTypeDomainName)
	require.False(t, entity.Complete())

	err := entity.AddKey(sightline.EntityKeyTypeString, "test.com")
	require.NoError(t, err)
	assert.True(t, entity.Complete())
	assert.Equal(t, []sightline.EntityKey{
		{Type: sightline.EntityKeyTypeString, Value: "test.com"},
	}, entity.Keys())
}

func TestEntity_AddKeyRejectsWrongKeyType(t *testing.T) {
	t.Parallel()

	entity := sightline.NewEntity(sightline.EntityTypeDomainName)

	err := entity.AddKey(sightline.EntityKeyTypeMD5, "d41d8cd98f00b204e9800998ecf8427e")
	require.Error(t, err)

	var keyTypeErr *sightline.InvalidKeyTypeError

	require.ErrorAs(t, err, &keyTypeErr)
	assert.Equal(t, sightline.EntityTypeDomainName, keyTypeErr.EntityType)
	assert.Equal(t, sightline.EntityKeyTypeMD5, keyTypeErr.KeyType)
	assert.True(t, sightline.IsValidation(err))
	assert.False(t, entity.Complete())
}

func TestEntity_AddKeyFullMatrix(t *testing.T) {
	t.Parallel()

	entityTypes := []sightline.EntityType{
		sightline.EntityTypeIPAddress,
		sightline.EntityTypeDomainName,
		sightline.EntityTypeFile,
		sightline.EntityTypeEmailAddress,
		sightline.EntityTypePhoneNumber,
		sightline.EntityTypeIdentity,
		sightline.EntityTypeURL,
	}
	keyTypes := []sightline.EntityKeyType{
		sightline.EntityKeyTypeString,
		sightline.EntityKeyTypeMD5,
		sightline.EntityKeyTypeSHA1,
		sightline.EntityKeyTypeSHA256,
		sightline.EntityKeyTypeIANAID,
		sightline.EntityKeyTypeNICHandle,
		sightline.EntityKeyTypeRIPEID,
	}

	// Every pair: allowed ones accept a key, all others fail typed.
	for _, entityType := range entityTypes {
		for _, keyType := range keyTypes {
			entity := sightline.NewEntity(entityType)
			err := entity.AddKey(keyType, "value")

			if entityType.AllowsKeyType(keyType) {
				assert.NoErrorf(t, err, "%s/%s should be allowed", entityType, keyType)
				assert.True(t, entity.Complete())

				continue
			}

			var keyTypeErr *sightline.InvalidKeyTypeError

			require.ErrorAsf(t, err, &keyTypeErr, "%s/%s should be rejected", entityType, keyType)
			assert.Equal(t, entityType, keyTypeErr.EntityType)
			assert.Equal(t, keyType, keyTypeErr.KeyType)
		}
	}
}

func TestEntity_AddKeyRejectsEmptyValue(t *testing.T) {
	t.Parallel()

	entity := sightline.NewEntity(sightline.EntityTypeIPAddress)

	for _, value := range []string{"", "   ", "\t\n"} {
		err := entity.AddKey(sightline.EntityKeyTypeString, value)
		require.Error(t, err)

		var emptyErr *sightline.EmptyValueError

		assert.ErrorAs(t, err, &emptyErr)
	}

	assert.False(t, entity.Complete())
}

func TestEntity_AddKeyRejectsUnknownEntityType(t *testing.T) {
	t.Parallel()

	entity := sightline.NewEntity(sightline.EntityType("Sandwich"))

	err := entity.AddKey(sightline.EntityKeyTypeString, "blt")
	require.Error(t, err)
	assert.True(t, sightline.IsValidation(err))
}

func TestEntity_AddKeyDuplicateIsNoOp(t *testing.T) {
	t.Parallel()

	entity := sightline.NewEntity(sightline.EntityTypeFile)
	require.NoError(t, entity.AddKey(sightline.EntityKeyTypeMD5, "d41d8cd98f00b204e9800998ecf8427e"))
	require.NoError(t, entity.AddKey(sightline.EntityKeyTypeMD5, "d41d8cd98f00b204e9800998ecf8427e"))

	assert.Len(t, entity.Keys(), 1)
}

func TestEntity_MultipleKeys(t *testing.T) {
	t.Parallel()

	entity := sightline.NewEntity(sightline.EntityTypeFile)
	require.NoError(t, entity.AddKey(sightline.EntityKeyTypeSHA256, "aa"))
	require.NoError(t, entity.AddKey(sightline.EntityKeyTypeMD5, "bb"))
	require.NoError(t, entity.AddKey(sightline.EntityKeyTypeSHA1, "cc"))

	keys := entity.Keys()
	require.Len(t, keys, 3)

	// Keys come back in canonical order regardless of insertion order.
	assert.Equal(t, sightline.EntityKeyTypeMD5, keys[0].Type)
	assert.Equal(t, sightline.EntityKeyTypeSHA1, keys[1].Type)
	assert.Equal(t, sightline.EntityKeyTypeSHA256, keys[2].Type)
}

func TestEntity_Equal(t *testing.T) {
	t.Parallel()

	left := sightline.NewEntity(sightline.EntityTypeFile)
	require.NoError(t, left.AddKey(sightline.EntityKeyTypeMD5, "aa"))
	require.NoError(t, left.AddKey(sightline.EntityKeyTypeSHA1, "bb"))

	right := sightline.NewEntity(sightline.EntityTypeFile)
	require.NoError(t, right.AddKey(sightline.EntityKeyTypeSHA1, "bb"))
	require.NoError(t, right.AddKey(sightline.EntityKeyTypeMD5, "aa"))

	assert.True(t, left.Equal(right), "insertion order must not matter")
	assert.True(t, right.Equal(left))

	other := sightline.NewEntity(sightline.EntityTypeFile)
	require.NoError(t, other.AddKey(sightline.EntityKeyTypeMD5, "aa"))
	assert.False(t, left.Equal(other))

	domain := sightline.NewEntity(sightline.EntityTypeDomainName)
	require.NoError(t, domain.AddKey(sightline.EntityKeyTypeString, "aa"))
	assert.False(t, other.Equal(domain))
}

func TestEntity_EqualRefs(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	ref1 := sightline.NewEntityRef(id)
	ref2 := sightline.NewEntityRef(id)
	ref3 := sightline.NewEntityRef(uuid.New())

	assert.True(t, ref1.Equal(ref2))
	assert.False(t, ref1.Equal(ref3))

	keyed := sightline.NewEntity(sightline.EntityTypeDomainName)
	require.NoError(t, keyed.AddKey(sightline.EntityKeyTypeString, "test.com"))
	assert.False(t, ref1.Equal(keyed))
}

func TestEntityRef(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	ref := sightline.NewEntityRef(id)

	assert.True(t, ref.IsRef())
	assert.True(t, ref.Complete())
	assert.Equal(t, id, ref.RefUUID())
	assert.Empty(t, ref.Keys())

	err := ref.AddKey(sightline.EntityKeyTypeString, "test.com")
	require.Error(t, err)
	assert.True(t, sightline.IsValidation(err))
}

func TestEntity_MarshalJSON(t *testing.T) {
	t.Parallel()

	entity := sightline.NewEntity(sightline.EntityTypeDomainName)
	require.NoError(t, entity.AddKey(sightline.EntityKeyTypeString, "test.com"))

	data, err := json.Marshal(entity)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"DomainName","keys":[{"type":"String","value":"test.com"}]}`, string(data))
}

func TestEntity_MarshalJSONDeterministic(t *testing.T) {
	t.Parallel()

	first := sightline.NewEntity(sightline.EntityTypeFile)
	require.NoError(t, first.AddKey(sightline.EntityKeyTypeSHA256, "aa"))
	require.NoError(t, first.AddKey(sightline.EntityKeyTypeMD5, "bb"))

	second := sightline.NewEntity(sightline.EntityTypeFile)
	require.NoError(t, second.AddKey(sightline.EntityKeyTypeMD5, "bb"))
	require.NoError(t, second.AddKey(sightline.EntityKeyTypeSHA256, "aa"))

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)

	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestEntityRef_MarshalJSON(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	ref := sightline.NewEntityRef(id)

	data, err := json.Marshal(ref)
	require.NoError(t, err)
	assert.JSONEq(t, `{"uuid":"11111111-2222-3333-4444-555555555555"}`, string(data))
}

func TestEntityView_Form(t *testing.T) {
	t.Parallel()

	view := &sightline.EntityView{
		UUID: uuid.New(),
		Type: sightline.EntityTypeDomainName,
		Keys: []sightline.EntityKey{
			{Type: sightline.EntityKeyTypeString, Value: "test.com"},
		},
	}

	entity := view.Form()
	require.NotNil(t, entity)
	assert.False(t, entity.IsRef())
	assert.Equal(t, sightline.EntityTypeDomainName, entity.Type())
	assert.Equal(t, view.Keys, entity.Keys())
}

func TestEntityView_FormRefOnly(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	view := &sightline.EntityView{UUID: id}

	entity := view.Form()
	require.NotNil(t, entity)
	assert.True(t, entity.IsRef())
	assert.Equal(t, id, entity.RefUUID())
}
