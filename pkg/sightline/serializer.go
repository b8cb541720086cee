package sightline

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Wire forms mirror the API's request schema. Field order is fixed so that
// identical observations always encode to identical bytes.
type genericObservationWire struct {
	ShareLevel     ShareLevel             `json:"shareLevel"`
	SeenAt         string                 `json:"seenAt"`
	DataSourceUUID *uuid.UUID             `json:"dataSourceUUID,omitempty"`
	Content        observationContentWire `json:"content"`
}

type observationContentWire struct {
	EntityAttributeValues []attributeFactWire      `json:"entityAttributeValues,omitempty"`
	EntityRelationships   []entityRelationshipWire `json:"entityRelationships,omitempty"`
}

type attributeFactWire struct {
	Entity        *Entity       `json:"entity"`
	AttributeName AttributeName `json:"attributeName"`
	Value         any           `json:"value"`
	Confidence    float64       `json:"confidence"`
}

type entityRelationshipWire struct {
	Source     *Entity          `json:"source"`
	Kind       RelationshipKind `json:"kind"`
	Target     *Entity          `json:"target"`
	Confidence float64          `json:"confidence"`
}

// Encode serializes the observation into the registration request body.
// Encoding is deterministic: entity keys are sorted, timestamps are rendered
// in UTC, and field order never varies.
func (o *GenericObservation) Encode() ([]byte, error) {
	wire := genericObservationWire{
		ShareLevel: o.shareLevel,
		SeenAt:     o.seenAt.UTC().Format(time.RFC3339Nano),
	}

	if o.dataSource != uuid.Nil {
		ds := o.dataSource
		wire.DataSourceUUID = &ds
	}

	for _, fact := range o.facts {
		wire.Content.EntityAttributeValues = append(wire.Content.EntityAttributeValues, attributeFactWire{
			Entity:        fact.Entity,
			AttributeName: fact.Attribute,
			Value:         fact.Value,
			Confidence:    fact.Confidence,
		})
	}

	for _, rel := range o.relationships {
		wire.Content.EntityRelationships = append(wire.Content.EntityRelationships, entityRelationshipWire{
			Source:     rel.Source,
			Kind:       rel.Kind,
			Target:     rel.Target,
			Confidence: rel.Confidence,
		})
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding observation: %w", err)
	}

	return data, nil
}

// MarshalJSON encodes the observation as its registration request body.
func (o *GenericObservation) MarshalJSON() ([]byte, error) {
	return o.Encode()
}

// ParseObservationRef decodes a registration response body.
func ParseObservationRef(data []byte) (*ObservationRef, error) {
	var raw struct {
		UUID         *uuid.UUID `json:"uuid"`
		RegisteredAt *time.Time `json:"registeredAt"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedResponseError{Field: "observation reference", Reason: err.Error()}
	}

	if raw.UUID == nil || *raw.UUID == uuid.Nil {
		return nil, &MalformedResponseError{Field: "uuid", Reason: "missing or nil"}
	}

	if raw.RegisteredAt == nil {
		return nil, &MalformedResponseError{Field: "registeredAt", Reason: "missing"}
	}

	return &ObservationRef{UUID: *raw.UUID, RegisteredAt: *raw.RegisteredAt}, nil
}

// ParseRefView decodes a bare reference response body.
func ParseRefView(data []byte) (*RefView, error) {
	var raw struct {
		UUID *uuid.UUID `json:"uuid"`
		URL  string     `json:"url"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedResponseError{Field: "reference", Reason: err.Error()}
	}

	if raw.UUID == nil || *raw.UUID == uuid.Nil {
		return nil, &MalformedResponseError{Field: "uuid", Reason: "missing or nil"}
	}

	return &RefView{UUID: *raw.UUID, URL: raw.URL}, nil
}

// ParseEntityView decodes an entity response body. The entity type must be
// part of the known vocabulary and at least one key must be present.
func ParseEntityView(data []byte) (*EntityView, error) {
	var raw rawEntityView
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedResponseError{Field: "entity", Reason: err.Error()}
	}

	view, err := raw.validate("entity")
	if err != nil {
		return nil, err
	}

	if len(view.Keys) == 0 {
		return nil, &MalformedResponseError{Field: "entity.keys", Reason: "missing or empty"}
	}

	return view, nil
}

// ParseGenericObservationView decodes a full observation response body.
func ParseGenericObservationView(data []byte) (*GenericObservationView, error) {
	var raw rawGenericObservationView
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedResponseError{Field: "observation", Reason: err.Error()}
	}

	return raw.validate()
}

type rawEntityView struct {
	UUID *uuid.UUID     `json:"uuid"`
	URL  string         `json:"url"`
	Type EntityType     `json:"type"`
	Keys []rawEntityKey `json:"keys"`
}

type rawEntityKey struct {
	Type  *EntityKeyType `json:"type"`
	Value *string        `json:"value"`
}

// validate converts the raw entity into a view. Embedded entities in fact
// content may be either full entities or bare references, so key presence is
// checked by the caller where it is required.
func (r *rawEntityView) validate(field string) (*EntityView, error) {
	view := &EntityView{URL: r.URL}
	if r.UUID != nil {
		view.UUID = *r.UUID
	}

	if r.Type != "" {
		if !r.Type.Valid() {
			return nil, &MalformedResponseError{Field: field + ".type", Reason: fmt.Sprintf("unknown entity type %q", string(r.Type))}
		}

		view.Type = r.Type
	}

	if view.UUID == uuid.Nil && r.Type == "" {
		return nil, &MalformedResponseError{Field: field, Reason: "neither uuid nor type present"}
	}

	for i, key := range r.Keys {
		if key.Type == nil || key.Value == nil {
			return nil, &MalformedResponseError{
				Field:  fmt.Sprintf("%s.keys[%d]", field, i),
				Reason: "missing type or value",
			}
		}

		view.Keys = append(view.Keys, EntityKey{Type: *key.Type, Value: *key.Value})
	}

	return view, nil
}

type rawGenericObservationView struct {
	UUID         *uuid.UUID             `json:"uuid"`
	URL          string                 `json:"url"`
	Reporter     *rawRefView            `json:"reporter"`
	DataSource   *rawRefView            `json:"dataSource"`
	ShareLevel   ShareLevel             `json:"shareLevel"`
	SeenAt       *time.Time             `json:"seenAt"`
	RegisteredAt *time.Time             `json:"registeredAt"`
	Content      *rawObservationContent `json:"content"`
}

type rawRefView struct {
	UUID *uuid.UUID `json:"uuid"`
	URL  string     `json:"url"`
}

func (r *rawRefView) validate(field string) (RefView, error) {
	if r == nil || r.UUID == nil || *r.UUID == uuid.Nil {
		return RefView{}, &MalformedResponseError{Field: field, Reason: "missing or nil uuid"}
	}

	return RefView{UUID: *r.UUID, URL: r.URL}, nil
}

type rawObservationContent struct {
	EntityAttributeValues []rawAttributeValue     `json:"entityAttributeValues"`
	EntityRelationships   []rawEntityRelationship `json:"entityRelationships"`
}

type rawAttributeValue struct {
	Entity        *rawEntityView `json:"entity"`
	AttributeName AttributeName  `json:"attributeName"`
	Value         any            `json:"value"`
	Confidence    *float64       `json:"confidence"`
}

type rawEntityRelationship struct {
	Source     *rawEntityView   `json:"source"`
	Kind       RelationshipKind `json:"kind"`
	Target     *rawEntityView   `json:"target"`
	Confidence *float64         `json:"confidence"`
}

//nolint:funlen
func (r *rawGenericObservationView) validate() (*GenericObservationView, error) {
	view := &GenericObservationView{URL: r.URL}
	if r.UUID != nil {
		view.UUID = *r.UUID
	}

	reporter, err := r.Reporter.validate("reporter")
	if err != nil {
		return nil, err
	}

	view.Reporter = reporter

	dataSource, err := r.DataSource.validate("dataSource")
	if err != nil {
		return nil, err
	}

	view.DataSource = dataSource

	if !r.ShareLevel.Valid() {
		return nil, &MalformedResponseError{Field: "shareLevel", Reason: fmt.Sprintf("unknown share level %q", string(r.ShareLevel))}
	}

	view.ShareLevel = r.ShareLevel

	if r.SeenAt == nil {
		return nil, &MalformedResponseError{Field: "seenAt", Reason: "missing"}
	}

	view.SeenAt = *r.SeenAt

	if r.RegisteredAt == nil {
		return nil, &MalformedResponseError{Field: "registeredAt", Reason: "missing"}
	}

	view.RegisteredAt = *r.RegisteredAt

	if r.Content == nil {
		return nil, &MalformedResponseError{Field: "content", Reason: "missing"}
	}

	for i, fact := range r.Content.EntityAttributeValues {
		field := fmt.Sprintf("content.entityAttributeValues[%d]", i)

		decoded, err := fact.validate(field)
		if err != nil {
			return nil, err
		}

		view.Content.EntityAttributeValues = append(view.Content.EntityAttributeValues, decoded)
	}

	for i, rel := range r.Content.EntityRelationships {
		field := fmt.Sprintf("content.entityRelationships[%d]", i)

		decoded, err := rel.validate(field)
		if err != nil {
			return nil, err
		}

		view.Content.EntityRelationships = append(view.Content.EntityRelationships, decoded)
	}

	return view, nil
}

func (r *rawAttributeValue) validate(field string) (AttributeValueView, error) {
	if r.Entity == nil {
		return AttributeValueView{}, &MalformedResponseError{Field: field + ".entity", Reason: "missing"}
	}

	entity, err := r.Entity.validate(field + ".entity")
	if err != nil {
		return AttributeValueView{}, err
	}

	if r.AttributeName == "" {
		return AttributeValueView{}, &MalformedResponseError{Field: field + ".attributeName", Reason: "missing"}
	}

	if r.Confidence == nil {
		return AttributeValueView{}, &MalformedResponseError{Field: field + ".confidence", Reason: "missing"}
	}

	value, err := coerceAttributeValue(field+".value", r.AttributeName, r.Value)
	if err != nil {
		return AttributeValueView{}, err
	}

	return AttributeValueView{
		Entity:     *entity,
		Attribute:  r.AttributeName,
		Value:      value,
		Confidence: *r.Confidence,
	}, nil
}

func (r *rawEntityRelationship) validate(field string) (RelationshipFactView, error) {
	if r.Source == nil || r.Target == nil {
		return RelationshipFactView{}, &MalformedResponseError{Field: field, Reason: "missing source or target"}
	}

	source, err := r.Source.validate(field + ".source")
	if err != nil {
		return RelationshipFactView{}, err
	}

	target, err := r.Target.validate(field + ".target")
	if err != nil {
		return RelationshipFactView{}, err
	}

	if !r.Kind.Valid() {
		return RelationshipFactView{}, &MalformedResponseError{
			Field:  field + ".kind",
			Reason: fmt.Sprintf("unknown relationship kind %q", string(r.Kind)),
		}
	}

	if r.Confidence == nil {
		return RelationshipFactView{}, &MalformedResponseError{Field: field + ".confidence", Reason: "missing"}
	}

	return RelationshipFactView{
		Source:     *source,
		Kind:       r.Kind,
		Target:     *target,
		Confidence: *r.Confidence,
	}, nil
}

// coerceAttributeValue converts a decoded JSON value to the canonical Go
// type for the attribute. Attributes outside the known vocabulary keep their
// raw value so that new server-side attributes do not break decoding.
func coerceAttributeValue(field string, attribute AttributeName, value any) (any, error) {
	kind, known := attribute.ValueKind()
	if !known {
		return value, nil
	}

	switch kind {
	case AttributeValueBool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	case AttributeValueInt:
		if v, ok := value.(float64); ok && v == math.Trunc(v) {
			return int64(v), nil
		}
	case AttributeValueString:
		if v, ok := value.(string); ok {
			return v, nil
		}
	}

	return nil, &MalformedResponseError{
		Field:  field,
		Reason: fmt.Sprintf("attribute %s expects a %s value", string(attribute), kind),
	}
}
