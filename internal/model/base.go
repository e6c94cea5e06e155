package model

import (
	"time"

	"github.com/google/uuid"
)

// Principal identifies the authenticated actor performing an operation.
// Its Key is stamped into CreatedByKey / ObsoletedByKey audit columns.
type Principal struct {
	Key  uuid.UUID `json:"key"`
	Name string    `json:"name"`
}

// SystemPrincipal is the built-in actor used by maintenance tooling.
var SystemPrincipal = Principal{
	Key:  uuid.MustParse("fadca076-3690-4a6e-af9e-f1cd68e8c7e8"),
	Name: "SYSTEM",
}

// IsZero reports whether the principal carries no identity.
func (p Principal) IsZero() bool {
	return p.Key == uuid.Nil
}

// BaseData carries identity and audit metadata shared by every persisted object.
type BaseData struct {
	Key            uuid.UUID  `json:"key"`
	CreatedByKey   uuid.UUID  `json:"created_by"`
	CreationTime   time.Time  `json:"creation_time"`
	ObsoletedByKey *uuid.UUID `json:"obsoleted_by,omitempty"`
	ObsoletionTime *time.Time `json:"obsoletion_time,omitempty"`
}

// Base returns the shared identity block.
func (b *BaseData) Base() *BaseData { return b }

// IsObsolete reports whether the object has been retired.
func (b *BaseData) IsObsolete() bool { return b.ObsoletionTime != nil }

// Identified is implemented by every persisted object.
type Identified interface {
	Base() *BaseData
}

// NonVersioned is the base of reference data that is updated in place.
type NonVersioned struct {
	BaseData
	UpdatedByKey *uuid.UUID `json:"updated_by,omitempty"`
	UpdatedTime  *time.Time `json:"updated_time,omitempty"`
}

// Reference returns the reference-data block.
func (n *NonVersioned) Reference() *NonVersioned { return n }

// ReferenceObject is implemented by every non-versioned reference type.
type ReferenceObject interface {
	Identified
	Reference() *NonVersioned
}

// Versioned is the base of every root object that keeps a version chain.
//
// Key is invariant across versions. VersionKey is unique per version and
// VersionSequence orders versions; it is assigned by storage on write.
type Versioned struct {
	BaseData
	VersionKey         uuid.UUID  `json:"version_key"`
	VersionSequence    int64      `json:"version_sequence"`
	PreviousVersionKey *uuid.UUID `json:"previous_version_key,omitempty"`
	IsReadonly         bool       `json:"is_readonly"`

	loaded bool
}

// Version returns the version block.
func (v *Versioned) Version() *Versioned { return v }

// IsLoaded reports whether dependent collections were hydrated when the
// object was read. Fast-loaded objects carry the root columns only.
func (v *Versioned) IsLoaded() bool { return v.loaded }

// SetLoaded records the hydration state.
func (v *Versioned) SetLoaded(loaded bool) { v.loaded = loaded }

// IsHead reports whether this version is the current (non-obsolete) one.
func (v *Versioned) IsHead() bool { return v.ObsoletionTime == nil }

// VersionedObject is implemented by every versioned root type.
type VersionedObject interface {
	Identified
	Version() *Versioned
}

// VersionedAssociation is the base of dependent records windowed by the
// owning root's version sequence.
type VersionedAssociation struct {
	Key                      uuid.UUID `json:"key"`
	SourceEntityKey          uuid.UUID `json:"source"`
	EffectiveVersionSequence int64     `json:"effective_version_sequence"`
	ObsoleteVersionSequence  *int64    `json:"obsolete_version_sequence,omitempty"`
}

// VisibleAt reports whether the association is visible for a root version
// with the given sequence: Effective <= seq < Obsolete (or +inf).
func (a VersionedAssociation) VisibleAt(seq int64) bool {
	if a.EffectiveVersionSequence > seq {
		return false
	}
	return a.ObsoleteVersionSequence == nil || seq < *a.ObsoleteVersionSequence
}

// SimpleAssociation is the base of dependent records whose meaning does not
// depend on the root version (tags). They are retired by timestamp.
type SimpleAssociation struct {
	Key             uuid.UUID  `json:"key"`
	SourceEntityKey uuid.UUID  `json:"source"`
	CreatedByKey    uuid.UUID  `json:"created_by"`
	CreationTime    time.Time  `json:"creation_time"`
	ObsoletedByKey  *uuid.UUID `json:"obsoleted_by,omitempty"`
	ObsoletionTime  *time.Time `json:"obsoletion_time,omitempty"`
}
