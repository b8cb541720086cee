package sightline

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// EntityKey is one typed key of an entity.
type EntityKey struct {
	Type  EntityKeyType `json:"type"  yaml:"type"`
	Value string        `json:"value" yaml:"value"`
}

// Entity identifies an observable by its type plus one or more typed keys.
// Entities are value objects: two entities with the same type and key set are
// interchangeable regardless of key insertion order.
//
// An entity may instead reference an already registered observable by UUID,
// see NewEntityRef.
type Entity struct {
	entityType EntityType
	keys       []EntityKey
	ref        uuid.UUID
}

// NewEntity creates a keyed entity of the given type. Keys are added with
// AddKey; an entity without keys cannot be used in a fact.
func NewEntity(entityType EntityType) *Entity {
	return &Entity{entityType: entityType}
}

// NewEntityRef creates an entity referencing a registered observable by UUID.
// Reference entities carry no keys and serialize as their UUID alone.
func NewEntityRef(id uuid.UUID) *Entity {
	return &Entity{ref: id}
}

// AddKey adds a typed key to the entity. The key type must be in the allowed
// set for the entity's type and the value must contain non-whitespace
// content. Adding a key the entity already holds is a no-op.
func (e *Entity) AddKey(keyType EntityKeyType, value string) error {
	if e.IsRef() {
		return &ValidationError{Field: "entity", Message: "reference entities cannot hold keys"}
	}

	if !e.entityType.Valid() {
		return &ValidationError{Field: "entity type", Message: fmt.Sprintf("unknown entity type %q", string(e.entityType))}
	}

	if !e.entityType.AllowsKeyType(keyType) {
		return &InvalidKeyTypeError{EntityType: e.entityType, KeyType: keyType}
	}

	if strings.TrimSpace(value) == "" {
		return &EmptyValueError{Field: "key value"}
	}

	for _, k := range e.keys {
		if k.Type == keyType && k.Value == value {
			return nil
		}
	}

	e.keys = append(e.keys, EntityKey{Type: keyType, Value: value})

	return nil
}

// Type returns the entity's type. Reference entities have no type.
func (e *Entity) Type() EntityType {
	return e.entityType
}

// Keys returns the entity's keys in canonical order.
func (e *Entity) Keys() []EntityKey {
	return canonicalKeys(e.keys)
}

// IsRef reports whether the entity references a registered observable by
// UUID rather than carrying keys.
func (e *Entity) IsRef() bool {
	return e.ref != uuid.Nil
}

// RefUUID returns the referenced observable's UUID, or uuid.Nil for keyed
// entities.
func (e *Entity) RefUUID() uuid.UUID {
	return e.ref
}

// Complete reports whether the entity can be used in a fact: a reference, or
// a keyed entity with at least one key.
func (e *Entity) Complete() bool {
	return e.IsRef() || len(e.keys) > 0
}

// Equal reports whether two entities have the same identity: equal reference
// UUIDs, or equal type and key set regardless of insertion order.
func (e *Entity) Equal(other *Entity) bool {
	if e == nil || other == nil {
		return e == other
	}

	if e.IsRef() || other.IsRef() {
		return e.ref == other.ref
	}

	if e.entityType != other.entityType || len(e.keys) != len(other.keys) {
		return false
	}

	a, b := canonicalKeys(e.keys), canonicalKeys(other.keys)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// MarshalJSON implements json.Marshaler. Keys serialize in canonical order
// so equal entities produce identical bytes.
func (e *Entity) MarshalJSON() ([]byte, error) {
	if e.IsRef() {
		return json.Marshal(entityRefWire{UUID: e.ref})
	}

	return json.Marshal(entityWire{Type: e.entityType, Keys: canonicalKeys(e.keys)})
}

type entityWire struct {
	Type EntityType  `json:"type"`
	Keys []EntityKey `json:"keys"`
}

type entityRefWire struct {
	UUID uuid.UUID `json:"uuid"`
}

// canonicalKeys returns a copy of keys sorted by type, then value.
func canonicalKeys(keys []EntityKey) []EntityKey {
	out := make([]EntityKey, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}

		return out[i].Value < out[j].Value
	})

	return out
}

// EntityView is the read-only representation of an entity in API responses.
// The UUID may be the zero UUID when the entity's keys were invalid at
// registration time.
type EntityView struct {
	UUID uuid.UUID   `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	URL  string      `json:"url,omitempty"  yaml:"url,omitempty"`
	Type EntityType  `json:"type,omitempty" yaml:"type,omitempty"`
	Keys []EntityKey `json:"keys,omitempty" yaml:"keys,omitempty"`
}

// Form converts the view back into a keyed entity, or a reference entity
// when the view carries only a UUID.
func (v *EntityView) Form() *Entity {
	if v.Type == "" {
		return NewEntityRef(v.UUID)
	}

	entity := NewEntity(v.Type)
	entity.keys = canonicalKeys(v.Keys)

	return entity
}
