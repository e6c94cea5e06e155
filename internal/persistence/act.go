package persistence

import (
	"github.com/roach88/vstore/internal/model"
)

// ValueTypeProperty discriminates observation sub-types.
const ValueTypeProperty = "ValueType"

// actTypes registers the act family and its associations. Observations
// are refined by their stored value type.
func actTypes() []TypeInfo {
	return []TypeInfo{
		{Name: "Act", Prototype: model.Act{}, Family: "Act", Class: model.ActClassAct},
		{Name: "ControlAct", Prototype: model.ControlAct{}, Family: "Act", Class: model.ActClassControlAct},
		{Name: "PatientEncounter", Prototype: model.PatientEncounter{}, Family: "Act", Class: model.ActClassEncounter},
		{Name: "SubstanceAdministration", Prototype: model.SubstanceAdministration{}, Family: "Act", Class: model.ActClassSubstanceAdministration},
		{Name: "Observation", Prototype: model.Observation{}, Family: "Act", Class: model.ActClassObservation},
		{
			Name: "TextObservation", Prototype: model.TextObservation{}, Family: "Act", Class: model.ActClassObservation,
			Refines: "Observation", DiscriminatorProperty: ValueTypeProperty, DiscriminatorValue: model.ObservationValueText,
		},
		{
			Name: "CodedObservation", Prototype: model.CodedObservation{}, Family: "Act", Class: model.ActClassObservation,
			Refines: "Observation", DiscriminatorProperty: ValueTypeProperty, DiscriminatorValue: model.ObservationValueCoded,
		},
		{
			Name: "QuantityObservation", Prototype: model.QuantityObservation{}, Family: "Act", Class: model.ActClassObservation,
			Refines: "Observation", DiscriminatorProperty: ValueTypeProperty, DiscriminatorValue: model.ObservationValueQuantity,
		},

		{Name: "ActIdentifier", Prototype: model.ActIdentifier{}},
		{Name: "ActRelationship", Prototype: model.ActRelationship{}},
		{Name: "ActParticipation", Prototype: model.ActParticipation{}},
		{Name: "ActNote", Prototype: model.ActNote{}},
		{Name: "ActExtension", Prototype: model.ActExtension{}},
		{Name: "ActTag", Prototype: model.ActTag{}},
	}
}

// Acts returns the repository of plain acts.
func Acts(e *Engine) *Typed[model.Act] { return mustTyped[model.Act](e) }

// ControlActs returns the control act repository.
func ControlActs(e *Engine) *Typed[model.ControlAct] { return mustTyped[model.ControlAct](e) }

// Encounters returns the patient encounter repository.
func Encounters(e *Engine) *Typed[model.PatientEncounter] { return mustTyped[model.PatientEncounter](e) }

// SubstanceAdministrations returns the substance administration repository.
func SubstanceAdministrations(e *Engine) *Typed[model.SubstanceAdministration] {
	return mustTyped[model.SubstanceAdministration](e)
}

// TextObservations returns the text observation repository.
func TextObservations(e *Engine) *Typed[model.TextObservation] {
	return mustTyped[model.TextObservation](e)
}

// CodedObservations returns the coded observation repository.
func CodedObservations(e *Engine) *Typed[model.CodedObservation] {
	return mustTyped[model.CodedObservation](e)
}

// QuantityObservations returns the quantity observation repository.
func QuantityObservations(e *Engine) *Typed[model.QuantityObservation] {
	return mustTyped[model.QuantityObservation](e)
}
