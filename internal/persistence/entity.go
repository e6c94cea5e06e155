package persistence

import (
	"github.com/roach88/vstore/internal/model"
)

// entityTypes registers the entity family and its associations.
func entityTypes() []TypeInfo {
	return []TypeInfo{
		{Name: "Entity", Prototype: model.Entity{}, Family: "Entity", Class: model.EntityClassEntity},
		{Name: "Person", Prototype: model.Person{}, Family: "Entity", Class: model.EntityClassPerson},
		{Name: "Patient", Prototype: model.Patient{}, Family: "Entity", Class: model.EntityClassPatient},
		{Name: "Provider", Prototype: model.Provider{}, Family: "Entity", Class: model.EntityClassProvider},
		{Name: "Place", Prototype: model.Place{}, Family: "Entity", Class: model.EntityClassPlace},
		{Name: "Organization", Prototype: model.Organization{}, Family: "Entity", Class: model.EntityClassOrganization},

		{Name: "EntityName", Prototype: model.EntityName{}},
		{Name: "EntityNameComponent", Prototype: model.EntityNameComponent{}},
		{Name: "EntityAddress", Prototype: model.EntityAddress{}},
		{Name: "EntityAddressComponent", Prototype: model.EntityAddressComponent{}},
		{Name: "EntityIdentifier", Prototype: model.EntityIdentifier{}},
		{Name: "EntityTelecom", Prototype: model.EntityTelecom{}},
		{Name: "EntityRelationship", Prototype: model.EntityRelationship{}},
		{Name: "EntityNote", Prototype: model.EntityNote{}},
		{Name: "EntityExtension", Prototype: model.EntityExtension{}},
		{Name: "EntityTag", Prototype: model.EntityTag{}},
	}
}

// Entities returns the repository of plain entities.
func Entities(e *Engine) *Typed[model.Entity] { return mustTyped[model.Entity](e) }

// Persons returns the person repository.
func Persons(e *Engine) *Typed[model.Person] { return mustTyped[model.Person](e) }

// Patients returns the patient repository.
func Patients(e *Engine) *Typed[model.Patient] { return mustTyped[model.Patient](e) }

// Providers returns the provider repository.
func Providers(e *Engine) *Typed[model.Provider] { return mustTyped[model.Provider](e) }

// Places returns the place repository.
func Places(e *Engine) *Typed[model.Place] { return mustTyped[model.Place](e) }

// Organizations returns the organization repository.
func Organizations(e *Engine) *Typed[model.Organization] { return mustTyped[model.Organization](e) }
