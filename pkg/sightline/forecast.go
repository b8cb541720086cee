package sightline

import (
	"encoding/json"
	"fmt"
	"time"
)

// LinkDirection tells which side of a relationship the queried entity is on.
type LinkDirection string

// Link directions relative to the queried entity.
const (
	LinkDirectionForward LinkDirection = "Forward"
	LinkDirectionReverse LinkDirection = "Reverse"
)

// Valid reports whether the direction is part of the known vocabulary.
func (d LinkDirection) Valid() bool {
	return d == LinkDirectionForward || d == LinkDirectionReverse
}

// ValuableFactView is a single fact that contributed to a forecast, together
// with the weight it carried. FinalConfidence is the fact's confidence after
// data source trust is applied.
type ValuableFactView struct {
	DataSource      RefView    `json:"dataSource"      yaml:"dataSource"`
	ShareLevel      ShareLevel `json:"shareLevel"      yaml:"shareLevel"`
	SeenAt          time.Time  `json:"seenAt"          yaml:"seenAt"`
	Confidence      float64    `json:"confidence"      yaml:"confidence"`
	Value           any        `json:"value,omitempty" yaml:"value,omitempty"`
	FinalConfidence float64    `json:"finalConfidence" yaml:"finalConfidence"`
}

// AttributeValueForecastView is the aggregated verdict for one candidate
// attribute value.
type AttributeValueForecastView struct {
	Value         any                `json:"value"                   yaml:"value"`
	Confidence    float64            `json:"confidence"              yaml:"confidence"`
	ValuableFacts []ValuableFactView `json:"valuableFacts,omitempty" yaml:"valuableFacts,omitempty"`
}

// AttributeForecastView is the server's merged verdict on an entity
// attribute. HasConflicts is set when contributing facts disagree.
type AttributeForecastView struct {
	Values       []AttributeValueForecastView `json:"values"       yaml:"values"`
	HasConflicts bool                         `json:"hasConflicts" yaml:"hasConflicts"`
}

// LinkView describes one forecasted link of an entity. Direction is relative
// to the queried entity: Forward means the queried entity is the source.
type LinkView struct {
	Direction     LinkDirection    `json:"direction"     yaml:"direction"`
	RelationKind  RelationshipKind `json:"relationKind"  yaml:"relationKind"`
	RelatedEntity EntityView       `json:"relatedEntity" yaml:"relatedEntity"`
}

// LinkForecastView is one entry of an entity link forecast listing.
type LinkForecastView struct {
	Link       LinkView `json:"link"       yaml:"link"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
}

// RelationshipView identifies a relationship by its endpoints and kind.
type RelationshipView struct {
	SourceEntity EntityView       `json:"sourceEntity" yaml:"sourceEntity"`
	RelationKind RelationshipKind `json:"relationKind" yaml:"relationKind"`
	TargetEntity EntityView       `json:"targetEntity" yaml:"targetEntity"`
}

// RelationshipForecastView is the server's merged verdict on a single
// relationship. ValuableFacts is populated only when requested.
type RelationshipForecastView struct {
	Relationship  RelationshipView   `json:"relationship"            yaml:"relationship"`
	Confidence    float64            `json:"confidence"              yaml:"confidence"`
	ValuableFacts []ValuableFactView `json:"valuableFacts,omitempty" yaml:"valuableFacts,omitempty"`
}

// ParseAttributeForecastView decodes an attribute forecast response body.
// The attribute is used to coerce forecast values to their canonical type.
func ParseAttributeForecastView(attribute AttributeName, data []byte) (*AttributeForecastView, error) {
	var raw struct {
		Values []struct {
			Value         any               `json:"value"`
			Confidence    *float64          `json:"confidence"`
			ValuableFacts []rawValuableFact `json:"valuableFacts"`
		} `json:"values"`
		HasConflicts bool `json:"hasConflicts"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedResponseError{Field: "attribute forecast", Reason: err.Error()}
	}

	view := &AttributeForecastView{HasConflicts: raw.HasConflicts}

	for i, value := range raw.Values {
		field := fmt.Sprintf("values[%d]", i)

		if value.Confidence == nil {
			return nil, &MalformedResponseError{Field: field + ".confidence", Reason: "missing"}
		}

		coerced, err := coerceAttributeValue(field+".value", attribute, value.Value)
		if err != nil {
			return nil, err
		}

		decoded := AttributeValueForecastView{Value: coerced, Confidence: *value.Confidence}

		for j, fact := range value.ValuableFacts {
			factView, err := fact.validate(fmt.Sprintf("%s.valuableFacts[%d]", field, j), attribute)
			if err != nil {
				return nil, err
			}

			decoded.ValuableFacts = append(decoded.ValuableFacts, factView)
		}

		view.Values = append(view.Values, decoded)
	}

	return view, nil
}

// ParseLinkForecastPage decodes one page of an entity link forecast.
func ParseLinkForecastPage(data []byte) (*Page[LinkForecastView], error) {
	return parsePage(data, "links forecast page", parseLinkForecast)
}

func parseLinkForecast(item json.RawMessage) (LinkForecastView, error) {
	var raw struct {
		Link *struct {
			Direction     LinkDirection    `json:"direction"`
			RelationKind  RelationshipKind `json:"relationKind"`
			RelatedEntity *rawEntityView   `json:"relatedEntity"`
		} `json:"link"`
		Confidence *float64 `json:"confidence"`
	}

	if err := json.Unmarshal(item, &raw); err != nil {
		return LinkForecastView{}, &MalformedResponseError{Field: "link", Reason: err.Error()}
	}

	if raw.Link == nil {
		return LinkForecastView{}, &MalformedResponseError{Field: "link", Reason: "missing"}
	}

	if !raw.Link.Direction.Valid() {
		return LinkForecastView{}, &MalformedResponseError{
			Field:  "link.direction",
			Reason: fmt.Sprintf("unknown direction %q", string(raw.Link.Direction)),
		}
	}

	if !raw.Link.RelationKind.Valid() {
		return LinkForecastView{}, &MalformedResponseError{
			Field:  "link.relationKind",
			Reason: fmt.Sprintf("unknown relationship kind %q", string(raw.Link.RelationKind)),
		}
	}

	if raw.Link.RelatedEntity == nil {
		return LinkForecastView{}, &MalformedResponseError{Field: "link.relatedEntity", Reason: "missing"}
	}

	related, err := raw.Link.RelatedEntity.validate("link.relatedEntity")
	if err != nil {
		return LinkForecastView{}, err
	}

	if raw.Confidence == nil {
		return LinkForecastView{}, &MalformedResponseError{Field: "confidence", Reason: "missing"}
	}

	return LinkForecastView{
		Link: LinkView{
			Direction:     raw.Link.Direction,
			RelationKind:  raw.Link.RelationKind,
			RelatedEntity: *related,
		},
		Confidence: *raw.Confidence,
	}, nil
}

// ParseRelationshipForecastView decodes a relationship forecast response
// body.
func ParseRelationshipForecastView(data []byte) (*RelationshipForecastView, error) {
	var raw struct {
		Relationship *struct {
			SourceEntity *rawEntityView   `json:"sourceEntity"`
			RelationKind RelationshipKind `json:"relationKind"`
			TargetEntity *rawEntityView   `json:"targetEntity"`
		} `json:"relationship"`
		Confidence    *float64          `json:"confidence"`
		ValuableFacts []rawValuableFact `json:"valuableFacts"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedResponseError{Field: "relationship forecast", Reason: err.Error()}
	}

	if raw.Relationship == nil {
		return nil, &MalformedResponseError{Field: "relationship", Reason: "missing"}
	}

	if raw.Relationship.SourceEntity == nil || raw.Relationship.TargetEntity == nil {
		return nil, &MalformedResponseError{Field: "relationship", Reason: "missing source or target entity"}
	}

	source, err := raw.Relationship.SourceEntity.validate("relationship.sourceEntity")
	if err != nil {
		return nil, err
	}

	target, err := raw.Relationship.TargetEntity.validate("relationship.targetEntity")
	if err != nil {
		return nil, err
	}

	if !raw.Relationship.RelationKind.Valid() {
		return nil, &MalformedResponseError{
			Field:  "relationship.relationKind",
			Reason: fmt.Sprintf("unknown relationship kind %q", string(raw.Relationship.RelationKind)),
		}
	}

	if raw.Confidence == nil {
		return nil, &MalformedResponseError{Field: "confidence", Reason: "missing"}
	}

	view := &RelationshipForecastView{
		Relationship: RelationshipView{
			SourceEntity: *source,
			RelationKind: raw.Relationship.RelationKind,
			TargetEntity: *target,
		},
		Confidence: *raw.Confidence,
	}

	for i, fact := range raw.ValuableFacts {
		factView, err := fact.validate(fmt.Sprintf("valuableFacts[%d]", i), "")
		if err != nil {
			return nil, err
		}

		view.ValuableFacts = append(view.ValuableFacts, factView)
	}

	return view, nil
}

type rawValuableFact struct {
	DataSource      *rawRefView `json:"dataSource"`
	ShareLevel      ShareLevel  `json:"shareLevel"`
	SeenAt          *time.Time  `json:"seenAt"`
	Confidence      *float64    `json:"confidence"`
	Value           any         `json:"value"`
	FinalConfidence *float64    `json:"finalConfidence"`
}

// validate converts the raw fact. The attribute is empty for relationship
// facts, which carry no value.
func (r *rawValuableFact) validate(field string, attribute AttributeName) (ValuableFactView, error) {
	dataSource, err := r.DataSource.validate(field + ".dataSource")
	if err != nil {
		return ValuableFactView{}, err
	}

	if !r.ShareLevel.Valid() {
		return ValuableFactView{}, &MalformedResponseError{
			Field:  field + ".shareLevel",
			Reason: fmt.Sprintf("unknown share level %q", string(r.ShareLevel)),
		}
	}

	if r.SeenAt == nil {
		return ValuableFactView{}, &MalformedResponseError{Field: field + ".seenAt", Reason: "missing"}
	}

	if r.Confidence == nil {
		return ValuableFactView{}, &MalformedResponseError{Field: field + ".confidence", Reason: "missing"}
	}

	if r.FinalConfidence == nil {
		return ValuableFactView{}, &MalformedResponseError{Field: field + ".finalConfidence", Reason: "missing"}
	}

	value := r.Value
	if attribute != "" && value != nil {
		value, err = coerceAttributeValue(field+".value", attribute, value)
		if err != nil {
			return ValuableFactView{}, err
		}
	}

	return ValuableFactView{
		DataSource:      dataSource,
		ShareLevel:      r.ShareLevel,
		SeenAt:          *r.SeenAt,
		Confidence:      *r.Confidence,
		Value:           value,
		FinalConfidence: *r.FinalConfidence,
	}, nil
}
