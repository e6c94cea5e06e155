package model

import "github.com/google/uuid"

// CodeSystem describes an external terminology.
type CodeSystem struct {
	NonVersioned
	Name        string `json:"name"`
	Oid         string `json:"oid"`
	Authority   string `json:"authority"`
	URL         string `json:"url,omitempty"`
	VersionText string `json:"version_text,omitempty"`
	Description string `json:"description,omitempty"`
}

// ReferenceTerm is a code within a code system.
type ReferenceTerm struct {
	NonVersioned
	CodeSystemKey uuid.UUID `json:"code_system"`
	Mnemonic      string    `json:"mnemonic"`
}

// ConceptRelationshipType names a kind of relationship between concepts or
// between a concept and a reference term.
type ConceptRelationshipType struct {
	NonVersioned
	Name     string `json:"name"`
	Mnemonic string `json:"mnemonic"`
}

// PhoneticAlgorithm names an algorithm used to compute phonetic codes.
type PhoneticAlgorithm struct {
	NonVersioned
	Name    string `json:"name"`
	Handler string `json:"handler"`
}
