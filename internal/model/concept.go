package model

import "github.com/google/uuid"

// Concept is a versioned coded concept. System concepts are flagged
// IsReadonly and cannot be updated.
type Concept struct {
	Versioned
	Mnemonic         string     `json:"mnemonic"`
	ClassKey         *uuid.UUID `json:"class,omitempty"`
	StatusConceptKey *uuid.UUID `json:"status,omitempty"`

	ConceptNames   []ConceptName          `json:"names,omitempty"`
	ReferenceTerms []ConceptReferenceTerm `json:"reference_terms,omitempty"`
}

// ConceptName is a versioned display name of a concept in a language.
type ConceptName struct {
	VersionedAssociation
	Language             string     `json:"language"`
	Name                 string     `json:"name"`
	PhoneticCode         string     `json:"phonetic_code,omitempty"`
	PhoneticAlgorithmKey *uuid.UUID `json:"phonetic_algorithm,omitempty"`
}

// ConceptReferenceTerm maps a concept to a term in an external code system.
type ConceptReferenceTerm struct {
	VersionedAssociation
	ReferenceTermKey    uuid.UUID  `json:"reference_term"`
	RelationshipTypeKey *uuid.UUID `json:"relationship_type,omitempty"`
}
