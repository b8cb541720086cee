package sightline

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for err113 compliance.
var (
	ErrUnknownEntityType       = errors.New("unknown entity type")
	ErrUnknownEntityKeyType    = errors.New("unknown entity key type")
	ErrUnknownShareLevel       = errors.New("unknown share level")
	ErrUnknownAttributeName    = errors.New("unknown attribute name")
	ErrUnknownRelationshipKind = errors.New("unknown relationship kind")
	ErrUnknownObservationType  = errors.New("unknown observation type")
)

// EntityType identifies the kind of observable an entity describes.
type EntityType string

const (
	// EntityTypeIPAddress represents an IPv4 or IPv6 address.
	EntityTypeIPAddress EntityType = "IPAddress"

	// EntityTypeDomainName represents a DNS domain name.
	EntityTypeDomainName EntityType = "DomainName"

	// EntityTypeFile represents a file identified by its hashes.
	EntityTypeFile EntityType = "File"

	// EntityTypeEmailAddress represents an email address.
	EntityTypeEmailAddress EntityType = "EmailAddress"

	// EntityTypePhoneNumber represents a phone number.
	EntityTypePhoneNumber EntityType = "PhoneNumber"

	// EntityTypeIdentity represents an organization or person.
	EntityTypeIdentity EntityType = "Identity"

	// EntityTypeURL represents a URL.
	EntityTypeURL EntityType = "URL"
)

// EntityKeyType identifies how an entity key value should be interpreted.
type EntityKeyType string

const (
	// EntityKeyTypeString is a plain string key.
	EntityKeyTypeString EntityKeyType = "String"

	// EntityKeyTypeMD5 is an MD5 file hash.
	EntityKeyTypeMD5 EntityKeyType = "MD5Hash"

	// EntityKeyTypeSHA1 is a SHA-1 file hash.
	EntityKeyTypeSHA1 EntityKeyType = "SHA1Hash"

	// EntityKeyTypeSHA256 is a SHA-256 file hash.
	EntityKeyTypeSHA256 EntityKeyType = "SHA256Hash"

	// EntityKeyTypeIANAID is an IANA enterprise number.
	EntityKeyTypeIANAID EntityKeyType = "IANAID"

	// EntityKeyTypeNICHandle is a network registry NIC handle.
	EntityKeyTypeNICHandle EntityKeyType = "NICHandle"

	// EntityKeyTypeRIPEID is a RIPE database identifier.
	EntityKeyTypeRIPEID EntityKeyType = "RIPEID"
)

// ShareLevel is the TLP disclosure tag attached to an observation.
type ShareLevel string

const (
	// ShareLevelWhite allows unlimited disclosure.
	ShareLevelWhite ShareLevel = "White"

	// ShareLevelGreen allows community-wide disclosure.
	ShareLevelGreen ShareLevel = "Green"

	// ShareLevelAmber allows disclosure within the organization.
	ShareLevelAmber ShareLevel = "Amber"

	// ShareLevelRed restricts disclosure to named recipients.
	ShareLevelRed ShareLevel = "Red"
)

// AttributeName identifies an attribute a fact can assert about an entity.
type AttributeName string

const (
	AttributeIsIoC                    AttributeName = "IsIoC"
	AttributeIsMalicious              AttributeName = "IsMalicious"
	AttributeIsDGA                    AttributeName = "IsDGA"
	AttributeIsTrusted                AttributeName = "IsTrusted"
	AttributeIsDelegated              AttributeName = "IsDelegated"
	AttributeSize                     AttributeName = "Size"
	AttributeASN                      AttributeName = "ASN"
	AttributeNames                    AttributeName = "Names"
	AttributeDisplayNames             AttributeName = "DisplayNames"
	AttributeClass                    AttributeName = "Class"
	AttributeSectors                  AttributeName = "Sectors"
	AttributeNodeRoles                AttributeName = "NodeRoles"
	AttributeMalwareNames             AttributeName = "MalwareNames"
	AttributeMalwareClasses           AttributeName = "MalwareClasses"
	AttributeMalwareFamilies          AttributeName = "MalwareFamilies"
	AttributeLabels                   AttributeName = "Labels"
	AttributeStatuses                 AttributeName = "Statuses"
	AttributeThreatCategory           AttributeName = "ThreatCategory"
	AttributeRegionalInternetRegistry AttributeName = "RegionalInternetRegistry"
	AttributeCampaigns                AttributeName = "Campaigns"
	AttributeThreatActors             AttributeName = "ThreatActors"
)

// RelationshipKind identifies the kind of a relationship between entities.
type RelationshipKind string

const (
	RelationshipResolvesTo RelationshipKind = "ResolvesTo"
	RelationshipContains   RelationshipKind = "Contains"
	RelationshipHas        RelationshipKind = "Has"
	RelationshipHosts      RelationshipKind = "Hosts"
	RelationshipLocates    RelationshipKind = "Locates"
	RelationshipOwns       RelationshipKind = "Owns"
	RelationshipServes     RelationshipKind = "Serves"
	RelationshipDrops      RelationshipKind = "Drops"
	RelationshipUses       RelationshipKind = "Uses"
	RelationshipTargets    RelationshipKind = "Targets"
	RelationshipExploits   RelationshipKind = "Exploits"
	RelationshipVariantOf  RelationshipKind = "VariantOf"
	RelationshipSupports   RelationshipKind = "Supports"
)

// ObservationType identifies the kind of an observation.
// Only generic observations have builder support; the remaining types appear
// in list filters and view headers.
type ObservationType string

const (
	ObservationTypeDNSLookup      ObservationType = "DNSLookup"
	ObservationTypeWhoisLookup    ObservationType = "WhoisLookup"
	ObservationTypeNetworkSession ObservationType = "NetworkSession"
	ObservationTypeScanSession    ObservationType = "ScanSession"
	ObservationTypeThreat         ObservationType = "Threat"
	ObservationTypeGeneric        ObservationType = "Generic"
)

// AttributeValueKind is the value shape an attribute expects.
type AttributeValueKind int

const (
	// AttributeValueBool expects a boolean value.
	AttributeValueBool AttributeValueKind = iota

	// AttributeValueInt expects an integer value.
	AttributeValueInt

	// AttributeValueString expects a string value.
	AttributeValueString
)

// String returns a human-readable name for the value kind.
func (k AttributeValueKind) String() string {
	switch k {
	case AttributeValueBool:
		return "bool"
	case AttributeValueInt:
		return "int"
	case AttributeValueString:
		return "string"
	default:
		return "unknown"
	}
}

// allowedEntityKeys maps each entity type to the key types it admits.
var allowedEntityKeys = map[EntityType][]EntityKeyType{
	EntityTypeIPAddress:    {EntityKeyTypeString},
	EntityTypeDomainName:   {EntityKeyTypeString},
	EntityTypeFile:         {EntityKeyTypeMD5, EntityKeyTypeSHA1, EntityKeyTypeSHA256},
	EntityTypeEmailAddress: {EntityKeyTypeString},
	EntityTypePhoneNumber:  {EntityKeyTypeString},
	EntityTypeIdentity:     {EntityKeyTypeIANAID, EntityKeyTypeNICHandle, EntityKeyTypeRIPEID},
	EntityTypeURL:          {EntityKeyTypeString},
}

// attributeValueKinds maps each attribute to its expected value shape.
var attributeValueKinds = map[AttributeName]AttributeValueKind{
	AttributeIsIoC:                    AttributeValueBool,
	AttributeIsMalicious:              AttributeValueBool,
	AttributeIsDGA:                    AttributeValueBool,
	AttributeIsTrusted:                AttributeValueBool,
	AttributeIsDelegated:              AttributeValueBool,
	AttributeSize:                     AttributeValueInt,
	AttributeASN:                      AttributeValueInt,
	AttributeNames:                    AttributeValueString,
	AttributeDisplayNames:             AttributeValueString,
	AttributeClass:                    AttributeValueString,
	AttributeSectors:                  AttributeValueString,
	AttributeNodeRoles:                AttributeValueString,
	AttributeMalwareNames:             AttributeValueString,
	AttributeMalwareClasses:           AttributeValueString,
	AttributeMalwareFamilies:          AttributeValueString,
	AttributeLabels:                   AttributeValueString,
	AttributeStatuses:                 AttributeValueString,
	AttributeThreatCategory:           AttributeValueString,
	AttributeRegionalInternetRegistry: AttributeValueString,
	AttributeCampaigns:                AttributeValueString,
	AttributeThreatActors:             AttributeValueString,
}

// Valid reports whether the entity type is part of the known vocabulary.
func (t EntityType) Valid() bool {
	_, ok := allowedEntityKeys[t]

	return ok
}

// AllowsKeyType reports whether the entity type admits the given key type.
func (t EntityType) AllowsKeyType(keyType EntityKeyType) bool {
	for _, kt := range allowedEntityKeys[t] {
		if kt == keyType {
			return true
		}
	}

	return false
}

// AllowedKeyTypes returns the key types the entity type admits.
func (t EntityType) AllowedKeyTypes() []EntityKeyType {
	keyTypes := allowedEntityKeys[t]
	out := make([]EntityKeyType, len(keyTypes))
	copy(out, keyTypes)

	return out
}

// Valid reports whether the share level is part of the known vocabulary.
func (l ShareLevel) Valid() bool {
	switch l {
	case ShareLevelWhite, ShareLevelGreen, ShareLevelAmber, ShareLevelRed:
		return true
	default:
		return false
	}
}

// ValueKind returns the expected value shape for the attribute. The second
// return is false for attribute names outside the known vocabulary.
func (a AttributeName) ValueKind() (AttributeValueKind, bool) {
	kind, ok := attributeValueKinds[a]

	return kind, ok
}

// PathSegment returns the kebab-cased form used in URL paths,
// e.g. ResolvesTo becomes resolves-to.
func (k RelationshipKind) PathSegment() string {
	var b strings.Builder

	for i, r := range string(k) {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}

			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Valid reports whether the relationship kind is part of the known vocabulary.
func (k RelationshipKind) Valid() bool {
	switch k {
	case RelationshipResolvesTo, RelationshipContains, RelationshipHas,
		RelationshipHosts, RelationshipLocates, RelationshipOwns,
		RelationshipServes, RelationshipDrops, RelationshipUses,
		RelationshipTargets, RelationshipExploits, RelationshipVariantOf,
		RelationshipSupports:
		return true
	default:
		return false
	}
}

// ParseEntityType converts a wire value into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
	}

	return t, nil
}

// ParseEntityKeyType converts a wire value into an EntityKeyType.
func ParseEntityKeyType(s string) (EntityKeyType, error) {
	switch kt := EntityKeyType(s); kt {
	case EntityKeyTypeString, EntityKeyTypeMD5, EntityKeyTypeSHA1,
		EntityKeyTypeSHA256, EntityKeyTypeIANAID, EntityKeyTypeNICHandle,
		EntityKeyTypeRIPEID:
		return kt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityKeyType, s)
	}
}

// ParseShareLevel converts a wire value into a ShareLevel.
func ParseShareLevel(s string) (ShareLevel, error) {
	l := ShareLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownShareLevel, s)
	}

	return l, nil
}

// ParseAttributeName converts a wire value into an AttributeName.
func ParseAttributeName(s string) (AttributeName, error) {
	a := AttributeName(s)
	if _, ok := attributeValueKinds[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAttributeName, s)
	}

	return a, nil
}

// ParseRelationshipKind converts a wire value into a RelationshipKind.
func ParseRelationshipKind(s string) (RelationshipKind, error) {
	k := RelationshipKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRelationshipKind, s)
	}

	return k, nil
}

// ParseObservationType converts a wire value into an ObservationType.
func ParseObservationType(s string) (ObservationType, error) {
	switch t := ObservationType(s); t {
	case ObservationTypeDNSLookup, ObservationTypeWhoisLookup,
		ObservationTypeNetworkSession, ObservationTypeScanSession,
		ObservationTypeThreat, ObservationTypeGeneric:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownObservationType, s)
	}
}
