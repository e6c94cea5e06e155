package mapping

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vstore/internal/model"
	"github.com/roach88/vstore/internal/queryir"
)

func newMapper(t *testing.T) *Mapper {
	t.Helper()
	m, err := NewDefault()
	require.NoError(t, err)
	require.NoError(t, m.Bind("Person", model.Person{}))
	require.NoError(t, m.Bind("Patient", &model.Patient{}))
	return m
}

func ptr[T any](v T) *T { return &v }

func samplePatient() *model.Patient {
	created := time.Date(2024, 3, 1, 9, 30, 15, 123456789, time.UTC)
	obsoleted := created.Add(time.Hour)
	prev := uuid.New()
	p := &model.Patient{}
	p.Key = uuid.New()
	p.VersionKey = uuid.New()
	p.VersionSequence = 42
	p.PreviousVersionKey = &prev
	p.CreatedByKey = model.SystemPrincipal.Key
	p.CreationTime = created
	p.ObsoletedByKey = ptr(model.SystemPrincipal.Key)
	p.ObsoletionTime = &obsoleted
	p.IsReadonly = true
	p.ClassConceptKey = model.EntityClassPatient
	p.StatusConceptKey = ptr(model.StatusActive)
	p.DateOfBirth = ptr(time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC))
	p.DateOfBirthPrecision = "D"
	p.GenderConceptKey = ptr(uuid.New())
	p.MultipleBirthOrder = ptr(2)
	return p
}

func flatten(levels []LevelRow) queryir.Row {
	row := queryir.Row{}
	for _, l := range levels {
		for k, v := range l.Row {
			row[k] = v
		}
	}
	return row
}

func TestRoundTrip_Patient(t *testing.T) {
	m := newMapper(t)
	want := samplePatient()

	levels, err := m.ChainRows("Patient", want)
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, "entity_version", levels[0].Type.Table)
	assert.Equal(t, "person", levels[1].Type.Table)
	assert.Equal(t, "patient", levels[2].Type.Table)

	got, err := ToModel[model.Patient](m, "Patient", flatten(levels))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRoundTrip_NullsStayNil(t *testing.T) {
	m := newMapper(t)
	want := &model.Person{}
	want.Key = uuid.New()
	want.VersionKey = uuid.New()
	want.CreatedByKey = uuid.New()
	want.CreationTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	want.ClassConceptKey = model.EntityClassPerson

	levels, err := m.ChainRows("Person", want)
	require.NoError(t, err)
	row := flatten(levels)
	assert.Nil(t, row["dob"])
	assert.Nil(t, row["obsolete_utc"])
	assert.Nil(t, row["replaces_version_id"])

	got, err := ToModel[model.Person](m, "Person", row)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRoundTrip_QuantityObservation(t *testing.T) {
	m := newMapper(t)
	want := &model.QuantityObservation{}
	want.Key = uuid.New()
	want.VersionKey = uuid.New()
	want.CreatedByKey = uuid.New()
	want.CreationTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	want.ClassConceptKey = model.ActClassObservation
	want.ValueType = model.ObservationValueQuantity
	want.Value = decimal.RequireFromString("12.50")
	want.IsNegated = true

	levels, err := m.ChainRows("QuantityObservation", want)
	require.NoError(t, err)
	row := flatten(levels)
	assert.Equal(t, "12.5", row["qty"])

	got, err := ToModel[model.QuantityObservation](m, "QuantityObservation", row)
	require.NoError(t, err)
	assert.True(t, want.Value.Equal(got.Value))
	assert.Equal(t, model.ObservationValueQuantity, got.ValueType)
	assert.True(t, got.IsNegated)
}

func TestMapToStorage_NormalizesStrings(t *testing.T) {
	m := newMapper(t)
	c := model.EntityNameComponent{Key: uuid.New(), NameKey: uuid.New(), Value: "Rene\u0301e"}

	row, err := m.MapToStorage("EntityNameComponent", c)
	require.NoError(t, err)
	assert.Equal(t, "Ren\u00e9e", row["val"])
}

func TestMapToModel_ReadsDriverForms(t *testing.T) {
	m := newMapper(t)
	key := uuid.New()
	row := queryir.Row{
		"cmp_id":  []byte(key.String()),
		"name_id": key.String(),
		"val":     []byte("Smith"),
		"seq":     int64(3),
	}

	got, err := ToModel[model.EntityNameComponent](m, "EntityNameComponent", row)
	require.NoError(t, err)
	assert.Equal(t, key, got.Key)
	assert.Equal(t, "Smith", got.Value)
	assert.Equal(t, 3, got.Sequence)
	assert.Nil(t, got.ComponentTypeKey)
}

func TestMapToModel_BoolFromInteger(t *testing.T) {
	m := newMapper(t)
	got, err := ToModel[model.Place](m, "Place", queryir.Row{"is_mobile": int64(1), "lat": 1.5})
	require.NoError(t, err)
	assert.True(t, got.IsMobile)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, 1.5, *got.Latitude, 0.0001)
}

func TestMapper_Errors(t *testing.T) {
	m := newMapper(t)

	_, err := m.MapToStorage("Nope", model.Person{})
	assert.ErrorIs(t, err, ErrMapping)

	_, err = m.MapToStorage("Person", struct{ Name string }{})
	var me *MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "Person", me.Type)

	err = m.MapToModel("Person", queryir.Row{"dob": "not a time"}, &model.Person{})
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "DateOfBirth", me.Property)

	err = m.MapToModel("Person", queryir.Row{}, model.Person{})
	assert.True(t, IsMappingError(err))
}

func TestMapper_Collection(t *testing.T) {
	m := newMapper(t)
	p := &model.Patient{}
	p.Names = []model.EntityName{model.NewEntityName(model.NameUseLegal, "Alice", "Smith")}

	v, err := m.Collection("Patient", p, "Names")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Len())

	_, err = m.Collection("Patient", p, "ClassConceptKey")
	assert.ErrorIs(t, err, ErrMapping)

	refs, err := m.Collections("Patient")
	require.NoError(t, err)
	require.NotEmpty(t, refs)
	assert.Equal(t, "Entity", refs[0].Owner.Name)
	assert.Equal(t, "entity_name", refs[0].Member.Table)
}

func TestMapper_NewInstance(t *testing.T) {
	m := newMapper(t)

	obj, err := m.NewInstance("Patient")
	require.NoError(t, err)
	assert.IsType(t, &model.Patient{}, obj)

	_, err = m.NewInstance("Place")
	assert.ErrorIs(t, err, ErrMapping)

	assert.Error(t, m.Bind("Person", 3))
	assert.Error(t, m.Bind("Nope", model.Person{}))
}

func TestToStorage(t *testing.T) {
	v, err := ToStorage(uuid.Nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ToStorage((*time.Time)(nil))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ToStorage(time.Date(2024, 1, 2, 3, 4, 5, 6, time.FixedZone("X", 3600)))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T02:04:05.000000006Z", v)

	v, err = ToStorage(7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	_, err = ToStorage(map[string]int{})
	assert.Error(t, err)
}

func TestMapper_Set(t *testing.T) {
	m := newMapper(t)
	p := &model.Patient{}
	key := uuid.New()
	seq := int64(7)

	require.NoError(t, m.Set("Patient", p, "Key", key))
	require.NoError(t, m.Set("Patient", p, "GenderConceptKey", key))
	require.NoError(t, m.Set("Patient", p, "MultipleBirthOrder", 2))
	assert.Equal(t, key, p.Key)
	require.NotNil(t, p.GenderConceptKey)
	assert.Equal(t, key, *p.GenderConceptKey)
	require.NotNil(t, p.MultipleBirthOrder)
	assert.Equal(t, 2, *p.MultipleBirthOrder)

	name := &model.EntityName{}
	require.NoError(t, m.Set("EntityName", name, "ObsoleteVersionSequence", &seq))
	require.NotNil(t, name.ObsoleteVersionSequence)
	require.NoError(t, m.Set("EntityName", name, "ObsoleteVersionSequence", nil))
	assert.Nil(t, name.ObsoleteVersionSequence)

	err := m.Set("Patient", p, "Key", "not-a-uuid")
	assert.True(t, IsMappingError(err))
	err = m.Set("Patient", *p, "Key", key)
	assert.True(t, IsMappingError(err))
}

func TestTypeMap_PropertyFor(t *testing.T) {
	m := newMapper(t)
	tm, ok := m.Table().Type("EntityName")
	require.True(t, ok)

	prop, ok := tm.PropertyFor("ent_id")
	assert.True(t, ok)
	assert.Equal(t, "SourceEntityKey", prop)

	_, ok = tm.PropertyFor("missing")
	assert.False(t, ok)
}
