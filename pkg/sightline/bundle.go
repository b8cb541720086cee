package sightline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ObservationBundle is a YAML document describing observations to register.
// Bundles are the bulk input format for the CLI and automation pipelines.
type ObservationBundle struct {
	Version      int                 `json:"version"            yaml:"version"`
	Defaults     *BundleDefaults     `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Observations []BundleObservation `json:"observations"       yaml:"observations"       validate:"required,min=1,dive"`
}

// BundleDefaults fills fields left out of individual observations.
type BundleDefaults struct {
	ShareLevel string `json:"shareLevel,omitempty" yaml:"shareLevel,omitempty"`
	SeenAt     string `json:"seenAt,omitempty"     yaml:"seenAt,omitempty"`
	DataSource string `json:"dataSource,omitempty" yaml:"dataSource,omitempty" validate:"omitempty,uuid"`
}

// BundleObservation is one observation in a bundle. Unset fields fall back
// to the bundle defaults.
type BundleObservation struct {
	ShareLevel    string               `json:"shareLevel,omitempty"    yaml:"shareLevel,omitempty"`
	SeenAt        string               `json:"seenAt,omitempty"        yaml:"seenAt,omitempty"`
	DataSource    string               `json:"dataSource,omitempty"    yaml:"dataSource,omitempty"    validate:"omitempty,uuid"`
	Facts         []BundleFact         `json:"facts,omitempty"         yaml:"facts,omitempty"         validate:"dive"`
	Relationships []BundleRelationship `json:"relationships,omitempty" yaml:"relationships,omitempty" validate:"dive"`
}

// BundleEntity describes an entity by type and natural keys.
type BundleEntity struct {
	Type string      `json:"type" yaml:"type" validate:"required"`
	Keys []BundleKey `json:"keys" yaml:"keys" validate:"required,min=1,dive"`
}

// BundleKey is one natural key of a bundle entity.
type BundleKey struct {
	Type  string `json:"type"  yaml:"type"  validate:"required"`
	Value string `json:"value" yaml:"value" validate:"required"`
}

// BundleFact is one attribute fact in a bundle. A missing confidence means
// full confidence.
type BundleFact struct {
	Entity     BundleEntity `json:"entity"               yaml:"entity"`
	Attribute  string       `json:"attribute"            yaml:"attribute"            validate:"required"`
	Value      interface{}  `json:"value"                yaml:"value"`
	Confidence *float64     `json:"confidence,omitempty" yaml:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// BundleRelationship is one relationship fact in a bundle.
type BundleRelationship struct {
	Source     BundleEntity `json:"source"               yaml:"source"`
	Kind       string       `json:"kind"                 yaml:"kind"                 validate:"required"`
	Target     BundleEntity `json:"target"               yaml:"target"`
	Confidence *float64     `json:"confidence,omitempty" yaml:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// ParseObservationBundle decodes and validates a YAML bundle.
func ParseObservationBundle(data []byte) (*ObservationBundle, error) {
	var bundle ObservationBundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parsing bundle: %w", err)
	}

	if err := validateStruct(&bundle); err != nil {
		return nil, err
	}

	return &bundle, nil
}

// Forms converts the bundle into observation forms, applying defaults. The
// forms are validated the same way as programmatically built ones, so the
// returned forms always finalize cleanly unless mutated afterwards.
func (b *ObservationBundle) Forms() ([]*GenericObservationForm, error) {
	forms := make([]*GenericObservationForm, 0, len(b.Observations))

	for i, observation := range b.Observations {
		form, err := b.buildForm(observation)
		if err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}

		forms = append(forms, form)
	}

	return forms, nil
}

//nolint:funlen
func (b *ObservationBundle) buildForm(observation BundleObservation) (*GenericObservationForm, error) {
	form := NewGenericObservationForm()

	shareLevel := observation.ShareLevel
	if shareLevel == "" && b.Defaults != nil {
		shareLevel = b.Defaults.ShareLevel
	}

	if shareLevel != "" {
		level, err := ParseShareLevel(shareLevel)
		if err != nil {
			return nil, err
		}

		if err := form.SetShareLevel(level); err != nil {
			return nil, err
		}
	}

	seenAt := observation.SeenAt
	if seenAt == "" && b.Defaults != nil {
		seenAt = b.Defaults.SeenAt
	}

	if seenAt != "" {
		parsed, err := parseBundleTime(seenAt)
		if err != nil {
			return nil, err
		}

		if err := form.SetSeenAt(parsed); err != nil {
			return nil, err
		}
	}

	dataSource := observation.DataSource
	if dataSource == "" && b.Defaults != nil {
		dataSource = b.Defaults.DataSource
	}

	if dataSource != "" {
		id, err := uuid.Parse(dataSource)
		if err != nil {
			return nil, &ValidationError{Field: "dataSource", Message: err.Error()}
		}

		form.SetDataSource(id)
	}

	for _, fact := range observation.Facts {
		entity, err := fact.Entity.build()
		if err != nil {
			return nil, err
		}

		attribute, err := ParseAttributeName(fact.Attribute)
		if err != nil {
			return nil, err
		}

		if err := form.AddAttributeFact(entity, attribute, fact.Value, confidenceOrFull(fact.Confidence)); err != nil {
			return nil, err
		}
	}

	for _, relationship := range observation.Relationships {
		source, err := relationship.Source.build()
		if err != nil {
			return nil, err
		}

		target, err := relationship.Target.build()
		if err != nil {
			return nil, err
		}

		kind, err := ParseRelationshipKind(relationship.Kind)
		if err != nil {
			return nil, err
		}

		if err := form.AddEntityRelationship(source, kind, target, confidenceOrFull(relationship.Confidence)); err != nil {
			return nil, err
		}
	}

	return form, nil
}

// build converts a bundle entity into a validated Entity.
func (e BundleEntity) build() (*Entity, error) {
	entityType, err := ParseEntityType(e.Type)
	if err != nil {
		return nil, err
	}

	entity := NewEntity(entityType)

	for _, key := range e.Keys {
		keyType, err := ParseEntityKeyType(key.Type)
		if err != nil {
			return nil, err
		}

		if err := entity.AddKey(keyType, key.Value); err != nil {
			return nil, err
		}
	}

	return entity, nil
}

// parseBundleTime parses a bundle timestamp. The offset must be explicit so
// a bundle means the same thing on every machine.
func parseBundleTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &InvalidTimestampError{
			Reason: fmt.Sprintf("%q is not an RFC 3339 timestamp with an explicit offset", value),
		}
	}

	return parsed, nil
}

func confidenceOrFull(confidence *float64) float64 {
	if confidence == nil {
		return 1
	}

	return *confidence
}
