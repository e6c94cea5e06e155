package persistence

import (
	"github.com/roach88/vstore/internal/model"
)

func conceptTypes() []TypeInfo {
	return []TypeInfo{
		{Name: "Concept", Prototype: model.Concept{}, Family: "Concept"},
		{Name: "ConceptName", Prototype: model.ConceptName{}},
		{Name: "ConceptReferenceTerm", Prototype: model.ConceptReferenceTerm{}},
	}
}

// referenceTypes registers non-versioned reference data.
func referenceTypes() []TypeInfo {
	return []TypeInfo{
		{Name: "CodeSystem", Prototype: model.CodeSystem{}},
		{Name: "ReferenceTerm", Prototype: model.ReferenceTerm{}},
		{Name: "ConceptRelationshipType", Prototype: model.ConceptRelationshipType{}},
		{Name: "PhoneticAlgorithm", Prototype: model.PhoneticAlgorithm{}},
	}
}

// Concepts returns the concept repository. System concepts are inserted
// with IsReadonly set and reject later updates.
func Concepts(e *Engine) *Typed[model.Concept] { return mustTyped[model.Concept](e) }

// CodeSystems returns the code system repository.
func CodeSystems(e *Engine) *BaseRepository[model.CodeSystem] {
	return mustBase[model.CodeSystem](e)
}

// ReferenceTerms returns the reference term repository.
func ReferenceTerms(e *Engine) *BaseRepository[model.ReferenceTerm] {
	return mustBase[model.ReferenceTerm](e)
}

// ConceptRelationshipTypes returns the concept relationship type repository.
func ConceptRelationshipTypes(e *Engine) *BaseRepository[model.ConceptRelationshipType] {
	return mustBase[model.ConceptRelationshipType](e)
}

// PhoneticAlgorithms returns the phonetic algorithm repository.
func PhoneticAlgorithms(e *Engine) *BaseRepository[model.PhoneticAlgorithm] {
	return mustBase[model.PhoneticAlgorithm](e)
}
