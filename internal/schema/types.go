package schema

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/cardest/internal/predicate"
)

// Attribute is one selection attribute of a query-set together with its
// value range and, for non-integer columns, its categorical encoding.
type Attribute struct {
	// Name is the attribute's name in the vector layout: the bare column
	// name, or alias_column when several tables project the same column.
	Name string `yaml:"name"`
	// Table and Alias identify the source table of the column.
	Table  string `yaml:"table"`
	Alias  string `yaml:"alias"`
	Column string `yaml:"column"`
	// Type is the declared column type reported by the database.
	Type string `yaml:"type"`

	Min  int64 `yaml:"min"`
	Max  int64 `yaml:"max"`
	Step int64 `yaml:"step"`

	// Encoding is nil for integer-typed attributes.
	Encoding *Encoding `yaml:"encoding,omitempty"`
}

// Categorical reports whether values of the attribute go through an encoding.
func (a Attribute) Categorical() bool {
	return a.Encoding != nil
}

// Validate checks the range invariants of the attribute.
func (a Attribute) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("attribute has no name")
	}
	if a.Min > a.Max {
		return fmt.Errorf("attribute %q: min %d > max %d", a.Name, a.Min, a.Max)
	}
	if a.Step < 1 {
		return fmt.Errorf("attribute %q: step %d < 1", a.Name, a.Step)
	}
	if a.Encoding != nil {
		n := int64(a.Encoding.Len())
		if n == 0 {
			return fmt.Errorf("attribute %q: empty encoding", a.Name)
		}
		if a.Min != 0 || a.Max != n-1 {
			return fmt.Errorf("attribute %q: encoding of %d values needs range [0, %d], got [%d, %d]", a.Name, n, n-1, a.Min, a.Max)
		}
		if err := a.Encoding.Validate(); err != nil {
			return fmt.Errorf("attribute %q: %w", a.Name, err)
		}
	}
	return nil
}

// QuerySet is the schema shared by every query that joins the same tables:
// the sorted attribute list that defines vector slots, per-attribute
// statistics and the cardinality of the unfiltered join.
//
// A QuerySet is read-only once built or loaded and may be shared between
// goroutines.
type QuerySet struct {
	ID             int                  `yaml:"id"`
	Tables         []predicate.TableRef `yaml:"table_names"`
	JoinAttributes []string             `yaml:"join_attributes"`
	// Attributes is sorted by Name; attribute i owns vector slot i.
	Attributes []Attribute `yaml:"columns"`
	MaxCard    int64       `yaml:"max_card"`
	// Relation is the materialized join the statistics were read from.
	Relation string `yaml:"relation,omitempty"`
}

// Names returns the attribute names in slot order.
func (qs *QuerySet) Names() []string {
	names := make([]string, len(qs.Attributes))
	for i, a := range qs.Attributes {
		names[i] = a.Name
	}
	return names
}

// Key is the canonical table key of the query-set.
func (qs *QuerySet) Key() string {
	return predicate.TablesKey(qs.Tables)
}

// Index returns the slot of attr. Lookup order: the exact name, the
// disambiguated alias_column form of a qualified name, then the bare column.
// A qualifier must name one of the query-set's tables by alias or name.
func (qs *QuerySet) Index(attr string) (int, error) {
	if i, ok := qs.find(attr); ok {
		return i, nil
	}
	qualifier, column := predicate.SplitQualifier(attr)
	if qualifier == "" {
		return -1, qs.notFound(attr)
	}
	var table *predicate.TableRef
	for i, t := range qs.Tables {
		if t.Alias == qualifier || t.Name == qualifier {
			table = &qs.Tables[i]
			break
		}
	}
	if table == nil {
		return -1, qs.notFound(attr)
	}
	for _, name := range []string{qualifier + "_" + column, table.Qualifier() + "_" + column} {
		if i, ok := qs.find(name); ok {
			return i, nil
		}
	}
	if i, ok := qs.find(column); ok && qs.Attributes[i].Table == table.Name {
		return i, nil
	}
	return -1, qs.notFound(attr)
}

func (qs *QuerySet) notFound(attr string) error {
	return &AttributeNotFoundError{QuerySet: qs.ID, Attribute: attr, Known: qs.Names()}
}

// CheckTables verifies that tables names exactly the tables of the
// query-set. Aliases may differ.
func (qs *QuerySet) CheckTables(tables []predicate.TableRef) error {
	want := tableNames(qs.Tables)
	got := tableNames(tables)
	if !slices.Equal(want, got) {
		return &TableMismatchError{QuerySet: qs.ID, Want: want, Got: got}
	}
	return nil
}

func tableNames(tables []predicate.TableRef) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	sort.Strings(names)
	return names
}

func (qs *QuerySet) find(name string) (int, bool) {
	i := sort.Search(len(qs.Attributes), func(i int) bool {
		return qs.Attributes[i].Name >= name
	})
	if i < len(qs.Attributes) && qs.Attributes[i].Name == name {
		return i, true
	}
	return -1, false
}

// Validate checks the structural invariants a vectorizer relies on.
func (qs *QuerySet) Validate() error {
	if len(qs.Tables) == 0 {
		return fmt.Errorf("query-set %d: no tables", qs.ID)
	}
	if len(qs.Attributes) == 0 {
		return fmt.Errorf("query-set %d: no attributes", qs.ID)
	}
	if qs.MaxCard < 0 {
		return fmt.Errorf("query-set %d: negative max_card %d", qs.ID, qs.MaxCard)
	}
	for i, a := range qs.Attributes {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("query-set %d: %w", qs.ID, err)
		}
		if i > 0 && qs.Attributes[i-1].Name >= a.Name {
			return fmt.Errorf("query-set %d: attributes not strictly sorted at %q", qs.ID, a.Name)
		}
	}
	return nil
}

// WithID returns a shallow copy of qs carrying a different id. Attribute
// data is shared.
func (qs *QuerySet) WithID(id int) *QuerySet {
	cp := *qs
	cp.ID = id
	return &cp
}

func (qs *QuerySet) String() string {
	return fmt.Sprintf("query-set %d [%s] (%s)", qs.ID, qs.Key(), strings.Join(qs.Names(), ", "))
}
