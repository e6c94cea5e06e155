package mapping

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

//go:embed maps.cue
var mapsCUE string

// Collection kinds.
const (
	KindVersioned = "versioned"
	KindSimple    = "simple"
	KindOwned     = "owned"
)

// Property maps a model field to a column.
type Property struct {
	Name   string `json:"name"`
	Column string `json:"column"`
}

// Collection declares a dependent collection of a type. FK is the column
// of the member table that references the owner's Key.
type Collection struct {
	Name string `json:"name"`
	Type string `json:"type"`
	FK   string `json:"fk"`
	Kind string `json:"kind"`
}

// Identity is the stable-identity table of a versioned root.
type Identity struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// TypeMap is one entry of the mapping table.
type TypeMap struct {
	Name        string       `json:"name"`
	Table       string       `json:"table"`
	Alias       string       `json:"alias"`
	Parent      string       `json:"parent,omitempty"`
	Link        string       `json:"link,omitempty"`
	Identity    *Identity    `json:"identity,omitempty"`
	Properties  []Property   `json:"properties"`
	Collections []Collection `json:"collections,omitempty"`
	OrderBy     string       `json:"orderBy,omitempty"`
}

// Column returns the column mapped to a property declared on this type
// (ancestors are not searched).
func (t *TypeMap) Column(property string) (string, bool) {
	for _, p := range t.Properties {
		if p.Name == property {
			return p.Column, true
		}
	}
	return "", false
}

// PropertyFor returns the property mapped to column on this type.
func (t *TypeMap) PropertyFor(column string) (string, bool) {
	for _, p := range t.Properties {
		if p.Column == column {
			return p.Name, true
		}
	}
	return "", false
}

// Versioned reports whether the type is a versioned root.
func (t *TypeMap) Versioned() bool {
	return t.Identity != nil
}

// Table is the loaded, cross-checked mapping table.
type Table struct {
	types map[string]*TypeMap
	order []string
}

// LoadError reports a problem in the mapping table source.
type LoadError struct {
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load parses the embedded mapping table.
func Load() (*Table, error) {
	return LoadSource(mapsCUE)
}

// LoadSource parses a mapping table written in CUE and validates it
// against the #Types schema. The document must declare a concrete `types`
// list.
func LoadSource(src string) (*Table, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := ctx.CompileString(src, cue.Filename("maps.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil, &LoadError{Message: "types is required", Pos: v.Pos()}
	}
	typesVal = schema.LookupPath(cue.ParsePath("#Types")).Unify(typesVal)
	if err := typesVal.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var decoded []TypeMap
	if err := typesVal.Decode(&decoded); err != nil {
		return nil, formatCUEError(err)
	}

	t := &Table{types: make(map[string]*TypeMap, len(decoded))}
	for i := range decoded {
		tm := &decoded[i]
		if _, dup := t.types[tm.Name]; dup {
			return nil, &LoadError{Message: fmt.Sprintf("duplicate type %q", tm.Name)}
		}
		t.types[tm.Name] = tm
		t.order = append(t.order, tm.Name)
	}
	if err := t.check(); err != nil {
		return nil, err
	}
	return t, nil
}

// Type returns the entry for a type name.
func (t *Table) Type(name string) (*TypeMap, bool) {
	tm, ok := t.types[name]
	return tm, ok
}

// Names returns type names in declaration order.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Chain returns the type and its ancestors, root first.
func (t *Table) Chain(name string) ([]*TypeMap, error) {
	var rev []*TypeMap
	seen := map[string]bool{}
	for cur := name; cur != ""; {
		tm, ok := t.types[cur]
		if !ok {
			return nil, mappingErr(name, "", "unknown type %q", cur)
		}
		if seen[cur] {
			return nil, mappingErr(name, "", "cyclic parent chain at %q", cur)
		}
		seen[cur] = true
		rev = append(rev, tm)
		cur = tm.Parent
	}
	out := make([]*TypeMap, len(rev))
	for i, tm := range rev {
		out[len(rev)-1-i] = tm
	}
	return out, nil
}

// Root returns the first type of the chain.
func (t *Table) Root(name string) (*TypeMap, error) {
	chain, err := t.Chain(name)
	if err != nil {
		return nil, err
	}
	return chain[0], nil
}

// check cross-references the entries: parents, links, collection members,
// foreign keys, ordering properties and alias uniqueness.
func (t *Table) check() error {
	aliases := map[string]string{}
	for _, name := range t.order {
		tm := t.types[name]
		if other, dup := aliases[tm.Alias]; dup {
			return &LoadError{Message: fmt.Sprintf("type %q reuses alias %q of %q", name, tm.Alias, other)}
		}
		aliases[tm.Alias] = name

		chain, err := t.Chain(name)
		if err != nil {
			return &LoadError{Message: err.Error()}
		}
		columns := map[string]string{}
		for _, level := range chain {
			for _, p := range level.Properties {
				if other, dup := columns[p.Column]; dup && other != level.Name {
					return &LoadError{Message: fmt.Sprintf("type %q maps column %q on both %q and %q", name, p.Column, other, level.Name)}
				}
				columns[p.Column] = level.Name
			}
		}
		if tm.Link != "" && tm.Parent == "" {
			return &LoadError{Message: fmt.Sprintf("type %q has a link column but no parent", name)}
		}
		if tm.Parent != "" && tm.Link == "" {
			return &LoadError{Message: fmt.Sprintf("type %q has a parent but no link column", name)}
		}
		if tm.Parent != "" && !chain[0].Versioned() {
			return &LoadError{Message: fmt.Sprintf("type %q extends non-versioned root %q", name, chain[0].Name)}
		}
		if tm.Parent == "" {
			if _, ok := tm.Column("Key"); !ok {
				return &LoadError{Message: fmt.Sprintf("type %q does not map Key", name)}
			}
		}
		if tm.OrderBy != "" {
			if _, ok := tm.Column(tm.OrderBy); !ok {
				return &LoadError{Message: fmt.Sprintf("type %q orders by unmapped property %q", name, tm.OrderBy)}
			}
		}
		for _, c := range tm.Collections {
			switch c.Kind {
			case KindVersioned, KindSimple, KindOwned:
			default:
				return &LoadError{Message: fmt.Sprintf("collection %s.%s has unknown kind %q", name, c.Name, c.Kind)}
			}
			member, ok := t.types[c.Type]
			if !ok {
				return &LoadError{Message: fmt.Sprintf("collection %s.%s has unknown type %q", name, c.Name, c.Type)}
			}
			if member.Parent != "" {
				return &LoadError{Message: fmt.Sprintf("collection %s.%s member %q must not have a parent", name, c.Name, c.Type)}
			}
			if !hasColumn(member, c.FK) {
				return &LoadError{Message: fmt.Sprintf("collection %s.%s fk %q is not a column of %q", name, c.Name, c.FK, c.Type)}
			}
			if c.Kind == KindVersioned {
				if _, ok := member.Column("EffectiveVersionSequence"); !ok {
					return &LoadError{Message: fmt.Sprintf("versioned collection %s.%s member %q has no window", name, c.Name, c.Type)}
				}
			}
			if c.Kind == KindSimple {
				if _, ok := member.Column("ObsoletionTime"); !ok {
					return &LoadError{Message: fmt.Sprintf("simple collection %s.%s member %q has no ObsoletionTime", name, c.Name, c.Type)}
				}
			}
		}
	}
	return nil
}

func hasColumn(tm *TypeMap, column string) bool {
	for _, p := range tm.Properties {
		if p.Column == column {
			return true
		}
	}
	return false
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
