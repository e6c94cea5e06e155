package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vstore/internal/model"
)

func TestInsert_AssignsIdentityAndVersion(t *testing.T) {
	e := newTestEngine(t)
	in := newPatient("Alice", "Smith")

	p := insertPatient(t, e, "Alice", "Smith")

	assert.NotEqual(t, uuid.Nil, p.Key)
	assert.NotEqual(t, uuid.Nil, p.VersionKey)
	assert.Equal(t, int64(1), p.VersionSequence)
	assert.Nil(t, p.PreviousVersionKey)
	assert.Equal(t, testPrincipal.Key, p.CreatedByKey)
	assert.Equal(t, model.EntityClassPatient, p.ClassConceptKey)
	assert.True(t, p.IsHead())
	assert.True(t, p.IsLoaded())

	require.Len(t, p.Names, 1)
	assert.Equal(t, p.Key, p.Names[0].SourceEntityKey)
	assert.Equal(t, p.VersionSequence, p.Names[0].EffectiveVersionSequence)
	assert.Nil(t, p.Names[0].ObsoleteVersionSequence)
	require.Len(t, p.Names[0].Components, 2)
	assert.Equal(t, p.Names[0].Key, p.Names[0].Components[0].NameKey)

	// the caller's object is untouched
	assert.Equal(t, uuid.Nil, in.Key)
}

func TestGet_Head(t *testing.T) {
	e := newTestEngine(t)
	p := insertPatient(t, e, "Alice", "Smith")

	got, err := Patients(e).Get(context.Background(), p.Key, nil, testPrincipal, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.VersionKey, got.VersionKey)
	assert.Equal(t, "Alice", givenName(got))
	assert.Equal(t, "Smith", got.Names[0].Component(model.NameComponentFamily))
}

func TestGet_FastLoadSkipsCollections(t *testing.T) {
	e := newTestEngine(t)
	p := insertPatient(t, e, "Alice", "Smith")

	got, err := Patients(e).Get(context.Background(), p.Key, nil, testPrincipal, true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Names)
	assert.False(t, got.IsLoaded())
}

func TestGet_Missing(t *testing.T) {
	e := newTestEngine(t)
	got, err := Patients(e).Get(context.Background(), uuid.New(), nil, testPrincipal, false)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGet_RequiresKey(t *testing.T) {
	e := newTestEngine(t)
	_, err := Patients(e).Get(context.Background(), uuid.Nil, nil, testPrincipal, false)
	assert.True(t, IsFormalConstraint(err))
}

func TestUpdate_NameChangeKeepsHistory(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	v1 := insertPatient(t, e, "Alice", "Smith")

	change := model.Clone(v1)
	change.Names[0].Components[0].Value = "Alicia"
	v2, err := Patients(e).Update(ctx, change, testPrincipal, TxCommit)
	require.NoError(t, err)

	assert.Equal(t, v1.Key, v2.Key)
	assert.NotEqual(t, v1.VersionKey, v2.VersionKey)
	require.NotNil(t, v2.PreviousVersionKey)
	assert.Equal(t, v1.VersionKey, *v2.PreviousVersionKey)
	assert.Greater(t, v2.VersionSequence, v1.VersionSequence)

	head, err := Patients(e).Get(ctx, v1.Key, nil, testPrincipal, false)
	require.NoError(t, err)
	assert.Equal(t, v2.VersionKey, head.VersionKey)
	assert.Equal(t, "Alicia", givenName(head))
	require.Len(t, head.Names, 1)

	old, err := Patients(e).Get(ctx, v1.Key, &v1.VersionKey, testPrincipal, false)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, "Alice", givenName(old))
	assert.False(t, old.IsHead())
	require.Len(t, old.Names, 1)
	require.NotNil(t, old.Names[0].ObsoleteVersionSequence)
	assert.Equal(t, v2.VersionSequence, *old.Names[0].ObsoleteVersionSequence)
}

func TestUpdate_UnchangedCollectionsAreNotRewritten(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	v1 := insertPatient(t, e, "Alice", "Smith")

	var stats map[string]ReconcileStats
	e.Events.Subscribe(Updated, func(_ context.Context, ev *Event) error {
		stats = ev.Stats
		return nil
	})

	v2, err := Patients(e).Update(ctx, model.Clone(v1), testPrincipal, TxCommit)
	require.NoError(t, err)

	require.Contains(t, stats, "Names")
	assert.Equal(t, ReconcileStats{Unchanged: 1}, stats["Names"])
	for name, st := range stats {
		assert.False(t, st.Changed(), name)
	}
	require.Len(t, v2.Names, 1)
	assert.Equal(t, v1.Names[0].Key, v2.Names[0].Key)
	assert.Equal(t, v1.Names[0].EffectiveVersionSequence, v2.Names[0].EffectiveVersionSequence)
}

func TestUpdate_MatchesMembersByContent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	v1 := insertPatient(t, e, "Alice", "Smith")

	// same name without keys, plus a new identifier
	change := model.Clone(v1)
	change.Names = []model.EntityName{model.NewEntityName(model.NameUseLegal, "Alice", "Smith")}
	change.Identifiers = []model.EntityIdentifier{{Authority: "MRN", Value: "12345"}}

	var stats map[string]ReconcileStats
	e.Events.Subscribe(Updated, func(_ context.Context, ev *Event) error {
		stats = ev.Stats
		return nil
	})
	v2, err := Patients(e).Update(ctx, change, testPrincipal, TxCommit)
	require.NoError(t, err)

	assert.Equal(t, ReconcileStats{Unchanged: 1}, stats["Names"])
	assert.Equal(t, ReconcileStats{Inserted: 1}, stats["Identifiers"])
	assert.Equal(t, v1.Names[0].Key, v2.Names[0].Key)

	head, err := Patients(e).Get(ctx, v1.Key, nil, testPrincipal, false)
	require.NoError(t, err)
	require.Len(t, head.Identifiers, 1)
	assert.Equal(t, "12345", head.Identifiers[0].Value)

	old, err := Patients(e).Get(ctx, v1.Key, &v1.VersionKey, testPrincipal, false)
	require.NoError(t, err)
	assert.Empty(t, old.Identifiers)
}

func TestUpdate_RemovedMemberIsObsoleted(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	in := newPatient("Alice", "Smith")
	in.Telecoms = []model.EntityTelecom{{Value: "tel:555-0100"}, {Value: "mailto:alice@example.org"}}
	v1, err := Patients(e).Insert(ctx, in, testPrincipal, TxCommit)
	require.NoError(t, err)

	change := model.Clone(v1)
	change.Telecoms = change.Telecoms[1:]
	v2, err := Patients(e).Update(ctx, change, testPrincipal, TxCommit)
	require.NoError(t, err)
	require.Len(t, v2.Telecoms, 1)

	head, err := Patients(e).Get(ctx, v1.Key, nil, testPrincipal, false)
	require.NoError(t, err)
	require.Len(t, head.Telecoms, 1)
	assert.Equal(t, "mailto:alice@example.org", head.Telecoms[0].Value)

	old, err := Patients(e).Get(ctx, v1.Key, &v1.VersionKey, testPrincipal, false)
	require.NoError(t, err)
	assert.Len(t, old.Telecoms, 2)
}

func TestUpdate_Errors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	v1 := insertPatient(t, e, "Alice", "Smith")

	t.Run("no key", func(t *testing.T) {
		_, err := Patients(e).Update(ctx, newPatient("Bob", "Jones"), testPrincipal, TxCommit)
		assert.True(t, IsFormalConstraint(err))
	})

	t.Run("not found", func(t *testing.T) {
		p := newPatient("Bob", "Jones")
		p.Key = uuid.New()
		_, err := Patients(e).Update(ctx, p, testPrincipal, TxCommit)
		assert.True(t, IsNotFound(err))
	})

	t.Run("stale version", func(t *testing.T) {
		v2, err := Patients(e).Update(ctx, model.Clone(v1), testPrincipal, TxCommit)
		require.NoError(t, err)
		require.NotEqual(t, v1.VersionKey, v2.VersionKey)

		_, err = Patients(e).Update(ctx, model.Clone(v1), testPrincipal, TxCommit)
		assert.True(t, IsConcurrentModification(err))
	})

	t.Run("wrong type", func(t *testing.T) {
		person := &model.Person{}
		person.Key = v1.Key
		_, err := Persons(e).Update(ctx, person, testPrincipal, TxCommit)
		assert.True(t, IsFormalConstraint(err))
	})

	t.Run("family type", func(t *testing.T) {
		ent := &model.Entity{}
		ent.Key = v1.Key
		_, err := Entities(e).Update(ctx, ent, testPrincipal, TxCommit)
		require.True(t, IsFormalConstraint(err))
		assert.Contains(t, err.Error(), "stored object is a Patient")
	})
}

func TestInsert_RejectsForeignClass(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		class uuid.UUID
		want  string
	}{
		{"class of a sibling type", model.EntityClassPlace, "selects Place"},
		{"unregistered class", uuid.MustParse("0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"), "does not select Patient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newPatient("Alice", "Smith")
			in.ClassConceptKey = tt.class
			_, err := Patients(e).Insert(ctx, in, testPrincipal, TxCommit)
			require.True(t, IsFormalConstraint(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	page, err := Entities(e).Query(ctx, nil, 0, 0, testPrincipal)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestInsert_ClassKeys(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	in := newPatient("Alice", "Smith")
	in.ClassConceptKey = model.EntityClassPatient
	p, err := Patients(e).Insert(ctx, in, testPrincipal, TxCommit)
	require.NoError(t, err)
	got, err := e.GetAny(ctx, "Entity", p.Key, nil, testPrincipal, false)
	require.NoError(t, err)
	assert.IsType(t, &model.Patient{}, got)

	custom := uuid.MustParse("0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d")
	ent, err := Entities(e).Insert(ctx, &model.Entity{ClassConceptKey: custom}, testPrincipal, TxCommit)
	require.NoError(t, err)
	assert.Equal(t, custom, ent.ClassConceptKey)
	got, err = e.GetAny(ctx, "Entity", ent.Key, nil, testPrincipal, false)
	require.NoError(t, err)
	assert.IsType(t, &model.Entity{}, got)
}

func TestInsert_DuplicateKey(t *testing.T) {
	e := newTestEngine(t)
	v1 := insertPatient(t, e, "Alice", "Smith")

	dup := newPatient("Bob", "Jones")
	dup.Key = v1.Key
	_, err := Patients(e).Insert(context.Background(), dup, testPrincipal, TxCommit)
	assert.True(t, IsFormalConstraint(err))
}

func TestInsert_PresetKey(t *testing.T) {
	e := newTestEngine(t)
	key := uuid.MustParse("11111111-2222-4333-8444-555555555555")
	in := newPatient("Alice", "Smith")
	in.Key = key

	p, err := Patients(e).Insert(context.Background(), in, testPrincipal, TxCommit)
	require.NoError(t, err)
	assert.Equal(t, key, p.Key)
}

func TestObsolete(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	v1 := insertPatient(t, e, "Alice", "Smith")

	out, err := Patients(e).Obsolete(ctx, v1, testPrincipal, TxCommit)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.NotNil(t, out.ObsoletionTime)
	require.NotNil(t, out.ObsoletedByKey)
	assert.Equal(t, testPrincipal.Key, *out.ObsoletedByKey)
	assert.Equal(t, "Alice", givenName(out))

	head, err := Patients(e).Get(ctx, v1.Key, nil, testPrincipal, false)
	require.NoError(t, err)
	assert.Nil(t, head)

	_, err = Patients(e).Obsolete(ctx, v1, testPrincipal, TxCommit)
	assert.True(t, IsNotFound(err))
}

func TestUpdate_ReadonlyConcept(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c, err := Concepts(e).Insert(ctx, &model.Concept{Mnemonic: "Female", Versioned: model.Versioned{IsReadonly: true}}, testPrincipal, TxCommit)
	require.NoError(t, err)

	c.Mnemonic = "F"
	_, err = Concepts(e).Update(ctx, c, testPrincipal, TxCommit)
	assert.True(t, IsReadonly(err))
}

func TestObsolete_ReadonlyConcept(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c, err := Concepts(e).Insert(ctx, &model.Concept{Mnemonic: "Male", Versioned: model.Versioned{IsReadonly: true}}, testPrincipal, TxCommit)
	require.NoError(t, err)

	_, err = Concepts(e).Obsolete(ctx, c, testPrincipal, TxCommit)
	assert.True(t, IsReadonly(err))

	head, err := Concepts(e).Get(ctx, c.Key, nil, testPrincipal, false)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Nil(t, head.ObsoletionTime)
}

func TestConcept_Names(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c, err := Concepts(e).Insert(ctx, &model.Concept{
		Mnemonic:     "Male",
		ConceptNames: []model.ConceptName{{Language: "en", Name: "Male"}, {Language: "fr", Name: "Masculin"}},
	}, testPrincipal, TxCommit)
	require.NoError(t, err)

	got, err := Concepts(e).Get(ctx, c.Key, nil, testPrincipal, false)
	require.NoError(t, err)
	require.Len(t, got.ConceptNames, 2)
}

func TestHistoryAndVerifyChain(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	v := insertPatient(t, e, "Alice", "Smith")
	for _, name := range []string{"Alicia", "Ali"} {
		change := model.Clone(v)
		change.Names[0].Components[0].Value = name
		var err error
		v, err = Patients(e).Update(ctx, change, testPrincipal, TxCommit)
		require.NoError(t, err)
	}

	history, err := Patients(e).History(ctx, v.Key)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Nil(t, history[0].PreviousVersionKey)
	for i := 1; i < len(history); i++ {
		assert.Equal(t, history[i-1].VersionKey, *history[i].PreviousVersionKey)
		assert.Greater(t, history[i].VersionSequence, history[i-1].VersionSequence)
		assert.False(t, history[i-1].IsHead())
	}
	assert.True(t, history[2].IsHead())

	report, err := Patients(e).VerifyChain(ctx, v.Key)
	require.NoError(t, err)
	assert.True(t, report.OK(), report.Problems)
	assert.Equal(t, 3, report.Versions)
	assert.Equal(t, v.VersionKey, report.Head)
}

func TestVerifyChain_NotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := Patients(e).VerifyChain(context.Background(), uuid.New())
	assert.True(t, IsNotFound(err))
}

func TestVerifyChain_ReportsBrokenLink(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	v1 := insertPatient(t, e, "Alice", "Smith")
	_, err := Patients(e).Update(ctx, model.Clone(v1), testPrincipal, TxCommit)
	require.NoError(t, err)

	_, err = e.Store().DB().Exec(`UPDATE entity_version SET replaces_version_id = NULL WHERE replaces_version_id IS NOT NULL`)
	require.NoError(t, err)

	report, err := Patients(e).VerifyChain(ctx, v1.Key)
	require.NoError(t, err)
	assert.False(t, report.OK())
}
