package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Act is the root of the act hierarchy: things that happen or are intended
// to happen (encounters, administrations, observations).
type Act struct {
	Versioned
	ClassConceptKey  uuid.UUID  `json:"class"`
	MoodConceptKey   *uuid.UUID `json:"mood,omitempty"`
	StatusConceptKey *uuid.UUID `json:"status,omitempty"`
	TypeConceptKey   *uuid.UUID `json:"type,omitempty"`
	ReasonConceptKey *uuid.UUID `json:"reason,omitempty"`
	ActTime          *time.Time `json:"act_time,omitempty"`
	StartTime        *time.Time `json:"start_time,omitempty"`
	StopTime         *time.Time `json:"stop_time,omitempty"`
	IsNegated        bool       `json:"is_negated"`

	Identifiers    []ActIdentifier    `json:"identifiers,omitempty"`
	Relationships  []ActRelationship  `json:"relationships,omitempty"`
	Participations []ActParticipation `json:"participations,omitempty"`
	Notes          []ActNote          `json:"notes,omitempty"`
	Extensions     []ActExtension     `json:"extensions,omitempty"`
	Tags           []ActTag           `json:"tags,omitempty"`
}

// ActData returns the act block of any act sub-type.
func (a *Act) ActData() *Act { return a }

// ActObject is implemented by Act and every type embedding it.
type ActObject interface {
	VersionedObject
	ActData() *Act
}

// ControlAct is an act that records a change to other data.
type ControlAct struct {
	Act
}

// PatientEncounter is an interaction between a patient and care providers.
type PatientEncounter struct {
	Act
	AdmissionSourceKey      *uuid.UUID `json:"admission_source,omitempty"`
	DischargeDispositionKey *uuid.UUID `json:"discharge_disposition,omitempty"`
}

// SubstanceAdministration records a dose of a substance given to a patient.
type SubstanceAdministration struct {
	Act
	RouteKey     *uuid.UUID      `json:"route,omitempty"`
	DoseUnitKey  *uuid.UUID      `json:"dose_unit,omitempty"`
	DoseQuantity decimal.Decimal `json:"dose_quantity"`
	SequenceID   int             `json:"sequence"`
	SiteKey      *uuid.UUID      `json:"site,omitempty"`
}

// Observation is the abstract base of observations. ValueType selects the
// concrete observation kind and is stored as a discriminator.
type Observation struct {
	Act
	InterpretationConceptKey *uuid.UUID `json:"interpretation,omitempty"`
	ValueType                string     `json:"value_type"`
}

// TextObservation is an observation with a free-text value.
type TextObservation struct {
	Observation
	Value string `json:"value"`
}

// CodedObservation is an observation whose value is a concept.
type CodedObservation struct {
	Observation
	ValueKey *uuid.UUID `json:"value,omitempty"`
}

// QuantityObservation is an observation with a measured quantity.
type QuantityObservation struct {
	Observation
	Value            decimal.Decimal `json:"value"`
	UnitOfMeasureKey *uuid.UUID      `json:"unit_of_measure,omitempty"`
}

// ActIdentifier is an alternate identifier of an act.
type ActIdentifier struct {
	VersionedAssociation
	Authority string `json:"authority"`
	Value     string `json:"value"`
}

// ActRelationship links the source act to a target act.
type ActRelationship struct {
	VersionedAssociation
	TargetActKey        uuid.UUID `json:"target"`
	RelationshipTypeKey uuid.UUID `json:"type"`
}

// ActParticipation links an entity to the act in a role.
type ActParticipation struct {
	VersionedAssociation
	PlayerEntityKey uuid.UUID `json:"player"`
	RoleKey         uuid.UUID `json:"role"`
	Quantity        *int      `json:"quantity,omitempty"`
}

// ActNote is a free-text note attached to an act.
type ActNote struct {
	VersionedAssociation
	AuthorKey *uuid.UUID `json:"author,omitempty"`
	Text      string     `json:"text"`
}

// ActExtension is an opaque typed value attached to an act.
type ActExtension struct {
	VersionedAssociation
	ExtensionType string `json:"extension_type"`
	Value         string `json:"value"`
}

// ActTag is a non-versioned name/value label on an act.
type ActTag struct {
	SimpleAssociation
	TagKey string `json:"tag"`
	Value  string `json:"value"`
}
