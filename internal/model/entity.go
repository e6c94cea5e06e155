package model

import (
	"time"

	"github.com/google/uuid"
)

// Entity is the root of the entity hierarchy (people, places, organizations).
type Entity struct {
	Versioned
	ClassConceptKey      uuid.UUID  `json:"class"`
	DeterminerConceptKey *uuid.UUID `json:"determiner,omitempty"`
	StatusConceptKey     *uuid.UUID `json:"status,omitempty"`
	TypeConceptKey       *uuid.UUID `json:"type,omitempty"`

	Names         []EntityName         `json:"names,omitempty"`
	Addresses     []EntityAddress      `json:"addresses,omitempty"`
	Identifiers   []EntityIdentifier   `json:"identifiers,omitempty"`
	Telecoms      []EntityTelecom      `json:"telecoms,omitempty"`
	Relationships []EntityRelationship `json:"relationships,omitempty"`
	Notes         []EntityNote         `json:"notes,omitempty"`
	Extensions    []EntityExtension    `json:"extensions,omitempty"`
	Tags          []EntityTag          `json:"tags,omitempty"`
}

// EntityData returns the entity block of any entity sub-type.
func (e *Entity) EntityData() *Entity { return e }

// EntityObject is implemented by Entity and every type embedding it.
type EntityObject interface {
	VersionedObject
	EntityData() *Entity
}

// Person is an entity representing a human being.
type Person struct {
	Entity
	DateOfBirth          *time.Time `json:"date_of_birth,omitempty"`
	DateOfBirthPrecision string     `json:"date_of_birth_precision,omitempty"`
}

// Patient is a person receiving care.
type Patient struct {
	Person
	GenderConceptKey   *uuid.UUID `json:"gender,omitempty"`
	DeceasedDate       *time.Time `json:"deceased_date,omitempty"`
	MultipleBirthOrder *int       `json:"multiple_birth_order,omitempty"`
}

// Provider is a person delivering care.
type Provider struct {
	Person
	SpecialtyConceptKey *uuid.UUID `json:"specialty,omitempty"`
}

// Place is a physical location.
type Place struct {
	Entity
	IsMobile  bool     `json:"is_mobile"`
	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lng,omitempty"`
}

// Organization is a formally recognised group of people.
type Organization struct {
	Entity
	IndustryConceptKey *uuid.UUID `json:"industry,omitempty"`
}

// EntityName is a versioned name of an entity made of ordered components.
type EntityName struct {
	VersionedAssociation
	NameUseKey *uuid.UUID            `json:"use,omitempty"`
	Components []EntityNameComponent `json:"components,omitempty"`
}

// EntityNameComponent is one part (given, family, ...) of a name.
type EntityNameComponent struct {
	Key              uuid.UUID  `json:"key"`
	NameKey          uuid.UUID  `json:"name"`
	ComponentTypeKey *uuid.UUID `json:"type,omitempty"`
	Value            string     `json:"value"`
	Sequence         int        `json:"sequence"`
}

// NewEntityName builds a name from a use and given/family values.
// Empty parts are skipped.
func NewEntityName(use uuid.UUID, given, family string) EntityName {
	name := EntityName{NameUseKey: &use}
	seq := 0
	if given != "" {
		typ := NameComponentGiven
		name.Components = append(name.Components, EntityNameComponent{
			ComponentTypeKey: &typ, Value: given, Sequence: seq,
		})
		seq++
	}
	if family != "" {
		typ := NameComponentFamily
		name.Components = append(name.Components, EntityNameComponent{
			ComponentTypeKey: &typ, Value: family, Sequence: seq,
		})
	}
	return name
}

// Component returns the value of the first component with the given type.
func (n EntityName) Component(typeKey uuid.UUID) string {
	for _, c := range n.Components {
		if c.ComponentTypeKey != nil && *c.ComponentTypeKey == typeKey {
			return c.Value
		}
	}
	return ""
}

// EntityAddress is a versioned postal address of an entity.
type EntityAddress struct {
	VersionedAssociation
	AddressUseKey *uuid.UUID               `json:"use,omitempty"`
	Components    []EntityAddressComponent `json:"components,omitempty"`
}

// EntityAddressComponent is one part (city, country, ...) of an address.
type EntityAddressComponent struct {
	Key              uuid.UUID  `json:"key"`
	AddressKey       uuid.UUID  `json:"address"`
	ComponentTypeKey *uuid.UUID `json:"type,omitempty"`
	Value            string     `json:"value"`
	Sequence         int        `json:"sequence"`
}

// EntityIdentifier is an alternate identifier issued by an authority.
type EntityIdentifier struct {
	VersionedAssociation
	Authority string `json:"authority"`
	Value     string `json:"value"`
}

// EntityTelecom is a telecommunications address (phone, e-mail).
type EntityTelecom struct {
	VersionedAssociation
	AddressUseKey  *uuid.UUID `json:"use,omitempty"`
	TypeConceptKey *uuid.UUID `json:"type,omitempty"`
	Value          string     `json:"value"`
}

// EntityRelationship links the source entity to a target entity.
type EntityRelationship struct {
	VersionedAssociation
	TargetEntityKey     uuid.UUID `json:"target"`
	RelationshipTypeKey uuid.UUID `json:"type"`
	Quantity            *int      `json:"quantity,omitempty"`
}

// EntityNote is a free-text note attached to an entity.
type EntityNote struct {
	VersionedAssociation
	AuthorKey *uuid.UUID `json:"author,omitempty"`
	Text      string     `json:"text"`
}

// EntityExtension is an opaque typed value attached to an entity.
type EntityExtension struct {
	VersionedAssociation
	ExtensionType string `json:"extension_type"`
	Value         string `json:"value"`
}

// EntityTag is a non-versioned name/value label.
type EntityTag struct {
	SimpleAssociation
	TagKey string `json:"tag"`
	Value  string `json:"value"`
}
