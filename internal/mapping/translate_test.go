package mapping

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vstore/internal/filter"
	"github.com/roach88/vstore/internal/model"
	"github.com/roach88/vstore/internal/queryir"
	"github.com/roach88/vstore/internal/querysql"
)

func compileFiltered(t *testing.T, m *Mapper, d querysql.Dialect, typeName string, expr filter.Expr) (string, []any) {
	t.Helper()
	sel, err := m.Select(typeName)
	require.NoError(t, err)
	pred, err := m.TranslatePredicate(typeName, expr)
	require.NoError(t, err)

	root, err := m.Table().Root(typeName)
	require.NoError(t, err)
	keyCol, _ := root.Column("Key")
	sel.Columns = []queryir.Column{queryir.Col(root.Alias, keyCol)}
	sel.Filter = pred

	sql, params, err := querysql.NewSQLCompiler(d).Compile(sel)
	require.NoError(t, err)
	return sql, params
}

func TestTranslate_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	m := newMapper(t)

	t.Run("person_name_any", func(t *testing.T) {
		sql, params := compileFiltered(t, m, querysql.SQLite, "Person", filter.All(
			filter.Eq("ClassConceptKey", model.EntityClassPerson),
			filter.Has("Names", filter.Has("Components", filter.Eq("Value", "Alice"))),
		))
		g.Assert(t, "person_name_any", []byte(sql))
		assert.Equal(t, []any{model.EntityClassPerson.String(), "Alice"}, params)
	})

	t.Run("entity_tag_any_postgres", func(t *testing.T) {
		sql, params := compileFiltered(t, m, querysql.Postgres, "Entity", filter.All(
			filter.Has("Tags", filter.Eq("TagKey", "$mdm")),
			filter.Negate(filter.OneOf("StatusConceptKey", model.StatusObsolete, model.StatusNew)),
		))
		g.Assert(t, "entity_tag_any_postgres", []byte(sql))
		assert.Equal(t, []any{"$mdm", model.StatusObsolete.String(), model.StatusNew.String()}, params)
	})
}

func TestSelect_ChainJoins(t *testing.T) {
	m := newMapper(t)

	sel, err := m.Select("Patient")
	require.NoError(t, err)

	assert.Equal(t, queryir.Table{Name: "entity_version", Alias: "ev"}, sel.From)
	require.Len(t, sel.Joins, 2)
	assert.Equal(t, "person", sel.Joins[0].Table.Name)
	assert.Equal(t, "patient", sel.Joins[1].Table.Name)
	assert.Contains(t, sel.Columns, queryir.Col("pat", "gender_cd_id"))
	assert.Contains(t, sel.Columns, queryir.Col("ev", "version_seq"))
	assert.NotContains(t, sel.Columns, queryir.Col("pat", "ent_vrsn_id"))
	assert.Equal(t, []queryir.Order{
		{Column: queryir.Col("ev", "version_seq")},
		{Column: queryir.Col("ev", "entity_id")},
	}, sel.OrderBy)
}

func TestSelect_ReferenceData(t *testing.T) {
	m := newMapper(t)

	sel, err := m.Select("CodeSystem")
	require.NoError(t, err)
	assert.Empty(t, sel.Joins)
	assert.Equal(t, []queryir.Order{
		{Column: queryir.Col("cs", "cs_name")},
		{Column: queryir.Col("cs", "cs_id")},
	}, sel.OrderBy)
}

func TestTranslate_Errors(t *testing.T) {
	m := newMapper(t)

	tests := []struct {
		name     string
		typeName string
		expr     filter.Expr
		property string
	}{
		{"dotted navigation", "Person", filter.Eq("Names.Value", "Alice"), "Names.Value"},
		{"unmapped property", "Person", filter.Eq("Nickname", "Al"), "Nickname"},
		{"unknown collection", "Person", filter.Has("Pets", nil), "Pets"},
		{"nil value", "Person", filter.Eq("DateOfBirthPrecision", nil), "DateOfBirthPrecision"},
		{"type mismatch", "Person", filter.Eq("ClassConceptKey", "9de2a846"), "ClassConceptKey"},
		{"ordering on uuid", "Person", filter.Gt("ClassConceptKey", model.EntityClassPerson), "ClassConceptKey"},
		{"like on string property", "Person", filter.Like("DateOfBirthPrecision", "D%"), ""},
		{"nested unmapped", "Person", filter.Has("Names", filter.Eq("Given", "x")), "Given"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.TranslatePredicate(tc.typeName, tc.expr)
			if tc.property == "" {
				assert.NoError(t, err)
				return
			}
			var me *MappingError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tc.property, me.Property)
			assert.ErrorIs(t, err, ErrMapping)
		})
	}
}

func TestTranslate_UnknownType(t *testing.T) {
	m := newMapper(t)
	_, err := m.TranslatePredicate("Spaceship", filter.Null("Key"))
	assert.ErrorIs(t, err, ErrMapping)
}

func TestTranslate_UnboundTypeSkipsTypeCheck(t *testing.T) {
	m := newMapper(t)
	pred, err := m.TranslatePredicate("Place", filter.Eq("ClassConceptKey", model.EntityClassPlace.String()))
	require.NoError(t, err)
	assert.Equal(t, queryir.Compare{Column: queryir.Col("ev", "class_cd_id"), Op: queryir.OpEq, Value: model.EntityClassPlace.String()}, pred)
}
