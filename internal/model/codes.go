package model

import "github.com/google/uuid"

// Entity class concept keys. The class key is the discriminator used to
// select the concrete type when a stored entity version is read back.
var (
	EntityClassEntity       = uuid.MustParse("e29fcfad-ec1d-4c60-a055-039a494248ae")
	EntityClassPerson       = uuid.MustParse("9de2a846-ddf2-4ebc-902e-84508c5089ea")
	EntityClassPatient      = uuid.MustParse("bacd9c6f-3fa9-481e-9636-37457962804d")
	EntityClassProvider     = uuid.MustParse("6b04fed8-c164-469c-910b-f824c2bda4f0")
	EntityClassPlace        = uuid.MustParse("21ab7873-8ef3-4d78-9c19-4582b3c40631")
	EntityClassOrganization = uuid.MustParse("7c08bd55-4d42-49cd-92f8-6388d6c4183f")
)

// Act class concept keys.
var (
	ActClassAct                     = uuid.MustParse("d874424e-c692-4fd8-b94e-642e1cbf83e9")
	ActClassControlAct              = uuid.MustParse("b35488ce-b7cd-4dd4-b4de-5f83dc55af9f")
	ActClassEncounter               = uuid.MustParse("54b52119-1709-4098-8911-5df6d6c84140")
	ActClassSubstanceAdministration = uuid.MustParse("932a3c7e-ad77-450a-8a1f-030fc2855450")
	ActClassObservation             = uuid.MustParse("28d022c6-8a8b-47c4-9e6a-2bc67308739e")
)

// Observation value type discriminators, stored on the observation row.
const (
	ObservationValueText     = "ST"
	ObservationValueCoded    = "CD"
	ObservationValueQuantity = "PQ"
)

// Status concept keys.
var (
	StatusNew       = uuid.MustParse("c34fcbf1-e0fe-4989-90fd-0dc49e1b9685")
	StatusActive    = uuid.MustParse("c8064cbd-fa06-4530-b430-1a52f1530c28")
	StatusCompleted = uuid.MustParse("afc33800-8225-4061-b168-bacc09cdbae3")
	StatusObsolete  = uuid.MustParse("bdef5f90-5497-4f26-956c-8f818cce2bd2")
)

// Name use and component type concept keys.
var (
	NameUseLegal        = uuid.MustParse("effe122d-8d30-491d-805d-addcb4466c35")
	NameUseOfficial     = uuid.MustParse("1ec9583a-b019-4baa-b856-b99caf368656")
	NameComponentGiven  = uuid.MustParse("2f64bde2-a696-4b0a-9690-b21ebd7e5092")
	NameComponentFamily = uuid.MustParse("29b98455-ed61-49f8-a161-2d73363e1df0")
)

// Address use and component type concept keys.
var (
	AddressUseHome          = uuid.MustParse("493c3e9d-4f65-4e4d-9582-c9008f4f2eb4")
	AddressComponentCity    = uuid.MustParse("05b0b4f0-5a4d-4a21-8f9b-ce3b4e4e7f6d")
	AddressComponentCountry = uuid.MustParse("48b2ffb3-07db-47ba-ad73-fc8fb8502471")
	AddressComponentLine    = uuid.MustParse("4f342d28-8850-4daf-8bca-0b44a255f7ed")
)

// Relationship type and participation role concept keys.
var (
	RelationshipMother        = uuid.MustParse("29ff64e5-b564-411a-92c7-6818c02a9e48")
	RelationshipDedicated     = uuid.MustParse("455f1772-f580-47e8-86bd-b5ce25d351f9")
	RelationshipHasMember     = uuid.MustParse("a6a7b4ab-62b1-4f8d-9e12-74e6d1ea9e3c")
	ParticipationRecordTarget = uuid.MustParse("3f92dbee-a65e-434f-98ce-841feeb02e3f")
	ParticipationAuthor       = uuid.MustParse("f0cb3faf-435d-4704-9217-b884f757bc14")
)
