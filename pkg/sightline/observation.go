package sightline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sightline-io/sightline-go/internal/constants"
)

// AttributeFact is a claim that an entity has a given attribute value, with a
// confidence score in [0, 1].
type AttributeFact struct {
	Entity     *Entity
	Attribute  AttributeName
	Value      any
	Confidence float64
}

// EntityRelationship is a directed relationship fact between two entities,
// with a confidence score in [0, 1].
type EntityRelationship struct {
	Source     *Entity
	Kind       RelationshipKind
	Target     *Entity
	Confidence float64
}

// GenericObservationForm accumulates attribute facts and entity relationships
// together with observation-level metadata. Fill the form with the Set and
// Add methods, then call Finalize to obtain the immutable observation that
// can be registered.
//
// Forms are not safe for concurrent mutation.
type GenericObservationForm struct {
	seenAt        time.Time
	shareLevel    ShareLevel
	dataSource    uuid.UUID
	facts         []AttributeFact
	relationships []EntityRelationship
	skewTolerance time.Duration
}

// NewGenericObservationForm creates an empty observation form.
func NewGenericObservationForm() *GenericObservationForm {
	return &GenericObservationForm{skewTolerance: constants.SeenAtSkewTolerance}
}

// WithSkewTolerance overrides how far into the future a seen-at time may lie.
func (f *GenericObservationForm) WithSkewTolerance(d time.Duration) *GenericObservationForm {
	f.skewTolerance = d

	return f
}

// SetSeenAt records when the facts were seen. The zero time is rejected, as
// is any time further in the future than the skew tolerance. Times are
// stored as given and serialized in UTC.
func (f *GenericObservationForm) SetSeenAt(seenAt time.Time) error {
	if seenAt.IsZero() {
		return &InvalidTimestampError{Value: seenAt, Reason: "zero timestamp"}
	}

	if seenAt.After(time.Now().Add(f.skewTolerance)) {
		return &InvalidTimestampError{Value: seenAt, Reason: "timestamp lies in the future"}
	}

	f.seenAt = seenAt

	return nil
}

// SetShareLevel records the observation's disclosure tag.
func (f *GenericObservationForm) SetShareLevel(level ShareLevel) error {
	if !level.Valid() {
		return &ValidationError{Field: "share level", Message: fmt.Sprintf("unknown share level %q", string(level))}
	}

	f.shareLevel = level

	return nil
}

// SetDataSource attributes the observation to a data source other than the
// reporting one.
func (f *GenericObservationForm) SetDataSource(id uuid.UUID) *GenericObservationForm {
	f.dataSource = id

	return f
}

// AddAttributeFact appends an attribute fact to the form. The entity must be
// complete, the confidence must lie in [0, 1], and the value's shape must
// match the attribute's expected kind. On error the form is unchanged.
func (f *GenericObservationForm) AddAttributeFact(entity *Entity, attribute AttributeName, value any, confidence float64) error {
	if entity == nil {
		return &ValidationError{Field: "entity", Message: "must not be nil"}
	}

	if !entity.Complete() {
		return &IncompleteEntityError{EntityType: entity.Type()}
	}

	if !validConfidence(confidence) {
		return &InvalidConfidenceError{Confidence: confidence}
	}

	kind, known := attribute.ValueKind()
	if !known {
		return &ValidationError{Field: "attribute", Message: fmt.Sprintf("unknown attribute name %q", string(attribute))}
	}

	normalized, err := normalizeAttributeValue(attribute, kind, value)
	if err != nil {
		return err
	}

	f.facts = append(f.facts, AttributeFact{
		Entity:     entity,
		Attribute:  attribute,
		Value:      normalized,
		Confidence: confidence,
	})

	return nil
}

// AddEntityRelationship appends a relationship fact to the form. Both
// entities must be complete and the confidence must lie in [0, 1]. On error
// the form is unchanged.
func (f *GenericObservationForm) AddEntityRelationship(source *Entity, kind RelationshipKind, target *Entity, confidence float64) error {
	if source == nil || target == nil {
		return &ValidationError{Field: "entity", Message: "must not be nil"}
	}

	if !source.Complete() {
		return &IncompleteEntityError{EntityType: source.Type()}
	}

	if !target.Complete() {
		return &IncompleteEntityError{EntityType: target.Type()}
	}

	if !kind.Valid() {
		return &ValidationError{Field: "relationship kind", Message: fmt.Sprintf("unknown relationship kind %q", string(kind))}
	}

	if !validConfidence(confidence) {
		return &InvalidConfidenceError{Confidence: confidence}
	}

	f.relationships = append(f.relationships, EntityRelationship{
		Source:     source,
		Kind:       kind,
		Target:     target,
		Confidence: confidence,
	})

	return nil
}

// Finalize validates completeness and returns the immutable observation. All
// missing required fields are collected into a single error: the seen-at
// time, the share level, and at least one fact or relationship are required.
// The result holds deep copies, so later form mutation cannot affect it.
func (f *GenericObservationForm) Finalize() (*GenericObservation, error) {
	var missing []string

	if f.seenAt.IsZero() {
		missing = append(missing, "seenAt")
	}

	if f.shareLevel == "" {
		missing = append(missing, "shareLevel")
	}

	if len(f.facts) == 0 && len(f.relationships) == 0 {
		missing = append(missing, "facts")
	}

	if len(missing) > 0 {
		return nil, &IncompleteObservationError{Missing: missing}
	}

	return &GenericObservation{
		seenAt:        f.seenAt,
		shareLevel:    f.shareLevel,
		dataSource:    f.dataSource,
		facts:         copyFacts(f.facts),
		relationships: copyRelationships(f.relationships),
	}, nil
}

// GenericObservation is a finalized, immutable observation payload. Values
// are obtained from GenericObservationForm.Finalize and never mutated
// afterwards.
type GenericObservation struct {
	seenAt        time.Time
	shareLevel    ShareLevel
	dataSource    uuid.UUID
	facts         []AttributeFact
	relationships []EntityRelationship
}

// SeenAt returns when the facts were seen.
func (o *GenericObservation) SeenAt() time.Time {
	return o.seenAt
}

// ShareLevel returns the observation's disclosure tag.
func (o *GenericObservation) ShareLevel() ShareLevel {
	return o.shareLevel
}

// DataSource returns the overriding data source UUID, if one was set.
func (o *GenericObservation) DataSource() (uuid.UUID, bool) {
	return o.dataSource, o.dataSource != uuid.Nil
}

// AttributeFacts returns a copy of the observation's attribute facts.
func (o *GenericObservation) AttributeFacts() []AttributeFact {
	return copyFacts(o.facts)
}

// EntityRelationships returns a copy of the observation's relationship facts.
func (o *GenericObservation) EntityRelationships() []EntityRelationship {
	return copyRelationships(o.relationships)
}

func validConfidence(confidence float64) bool {
	return confidence >= 0 && confidence <= 1
}

// normalizeAttributeValue checks the value against the attribute's expected
// kind and converts it to the canonical Go type: bool, int64, or string.
func normalizeAttributeValue(attribute AttributeName, kind AttributeValueKind, value any) (any, error) {
	switch kind {
	case AttributeValueBool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	case AttributeValueInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int8:
			return int64(v), nil
		case int16:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case uint:
			return int64(v), nil
		case uint8:
			return int64(v), nil
		case uint16:
			return int64(v), nil
		case uint32:
			return int64(v), nil
		}
	case AttributeValueString:
		if v, ok := value.(string); ok {
			if v == "" {
				return nil, &EmptyValueError{Field: "attribute value"}
			}

			return v, nil
		}
	}

	return nil, &TypeMismatchError{Attribute: attribute, Expected: kind, Value: value}
}

func copyFacts(facts []AttributeFact) []AttributeFact {
	out := make([]AttributeFact, len(facts))
	for i, fact := range facts {
		fact.Entity = fact.Entity.clone()
		out[i] = fact
	}

	return out
}

func copyRelationships(relationships []EntityRelationship) []EntityRelationship {
	out := make([]EntityRelationship, len(relationships))
	for i, rel := range relationships {
		rel.Source = rel.Source.clone()
		rel.Target = rel.Target.clone()
		out[i] = rel
	}

	return out
}

// ObservationRef is the immutable reference returned by the server on
// successful registration. It is the lookup key for later view calls.
type ObservationRef struct {
	UUID         uuid.UUID `json:"uuid"         yaml:"uuid"`
	RegisteredAt time.Time `json:"registeredAt" yaml:"registeredAt"`
}

// AttributeValueView is the read-only representation of an attribute fact in
// API responses. Value is a bool, int64, or string for attributes in the
// known vocabulary and the raw decoded value otherwise.
type AttributeValueView struct {
	Entity     EntityView    `json:"entity"        yaml:"entity"`
	Attribute  AttributeName `json:"attributeName" yaml:"attributeName"`
	Value      any           `json:"value"         yaml:"value"`
	Confidence float64       `json:"confidence"    yaml:"confidence"`
}

// RelationshipFactView is the read-only representation of a relationship
// fact in observation content.
type RelationshipFactView struct {
	Source     EntityView       `json:"source"     yaml:"source"`
	Kind       RelationshipKind `json:"kind"       yaml:"kind"`
	Target     EntityView       `json:"target"     yaml:"target"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
}

// GenericObservationContentView holds the decoded facts of an observation.
type GenericObservationContentView struct {
	EntityAttributeValues []AttributeValueView   `json:"entityAttributeValues,omitempty" yaml:"entityAttributeValues,omitempty"`
	EntityRelationships   []RelationshipFactView `json:"entityRelationships,omitempty"   yaml:"entityRelationships,omitempty"`
}

// GenericObservationView is the fully decoded server-side representation of
// a registered observation. Views are read-only and never round-tripped back
// into a form.
type GenericObservationView struct {
	UUID         uuid.UUID                     `json:"uuid"          yaml:"uuid"`
	URL          string                        `json:"url,omitempty" yaml:"url,omitempty"`
	Reporter     RefView                       `json:"reporter"      yaml:"reporter"`
	DataSource   RefView                       `json:"dataSource"    yaml:"dataSource"`
	ShareLevel   ShareLevel                    `json:"shareLevel"    yaml:"shareLevel"`
	SeenAt       time.Time                     `json:"seenAt"        yaml:"seenAt"`
	RegisteredAt time.Time                     `json:"registeredAt"  yaml:"registeredAt"`
	Content      GenericObservationContentView `json:"content"       yaml:"content"`
}

// clone returns a deep copy of the entity.
func (e *Entity) clone() *Entity {
	if e == nil {
		return nil
	}

	out := &Entity{entityType: e.entityType, ref: e.ref}
	if len(e.keys) > 0 {
		out.keys = make([]EntityKey, len(e.keys))
		copy(out.keys, e.keys)
	}

	return out
}
