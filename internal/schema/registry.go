package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/cardest/internal/predicate"
)

// Connector is the database surface the registry needs. Statements are
// read-only aggregations plus CREATE/DROP of materialized relations.
type Connector interface {
	Execute(ctx context.Context, stmt string, args ...any) error
	FetchOne(ctx context.Context, query string, args ...any) ([]any, error)
	FetchAll(ctx context.Context, query string, args ...any) ([][]any, error)
}

// Request names one query-set to build: its tables, the join predicates
// connecting them and the selection attributes to project.
type Request struct {
	ID     int                  `yaml:"-"`
	Tables []predicate.TableRef `yaml:"table_names"`
	// JoinAttributes are join predicates in table.column form, e.g.
	// "title.id = cast_info.movie_id".
	JoinAttributes []string `yaml:"join_attributes"`
	// Columns are selection attributes in table.column form.
	Columns []string `yaml:"selection_attributes"`
}

// Key identifies the layout a request produces. Requests with equal keys
// share one build.
func (r Request) Key() string {
	joins := append([]string(nil), r.JoinAttributes...)
	sort.Strings(joins)
	cols := append([]string(nil), r.Columns...)
	sort.Strings(cols)
	return predicate.TablesKey(r.Tables) + "|" + strings.Join(joins, ",") + "|" + strings.Join(cols, ",")
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// KeepMaterialized leaves materialized joins in the database on Close.
	KeepMaterialized bool
}

// Registry builds query-sets through a Connector and memoizes them per
// request key for the lifetime of the registry. It is safe for concurrent
// use; concurrent builds of the same key run once.
type Registry struct {
	conn Connector
	opts RegistryOptions

	group singleflight.Group

	mu        sync.Mutex
	cache     map[string]*QuerySet
	built     map[int]*QuerySet
	relations []string
}

// NewRegistry creates a registry over conn.
func NewRegistry(conn Connector, opts RegistryOptions) *Registry {
	return &Registry{
		conn:  conn,
		opts:  opts,
		cache: make(map[string]*QuerySet),
		built: make(map[int]*QuerySet),
	}
}

// Build returns the query-set for req, building it on first request.
func (r *Registry) Build(ctx context.Context, req Request) (*QuerySet, error) {
	key := req.Key()

	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()

	if !ok {
		v, err, _ := r.group.Do(key, func() (any, error) {
			r.mu.Lock()
			if qs, ok := r.cache[key]; ok {
				r.mu.Unlock()
				return qs, nil
			}
			r.mu.Unlock()

			qs, err := r.build(ctx, req)
			if err != nil {
				return nil, err
			}
			r.mu.Lock()
			r.cache[key] = qs
			r.mu.Unlock()
			return qs, nil
		})
		if err != nil {
			return nil, err
		}
		cached = v.(*QuerySet)
	} else {
		slog.Debug("query-set cache hit", "query_set", req.ID, "key", key)
	}

	qs := cached.WithID(req.ID)
	r.mu.Lock()
	r.built[req.ID] = qs
	r.mu.Unlock()
	return qs, nil
}

// Catalog returns every query-set built so far, keyed by request id.
func (r *Registry) Catalog() Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := make(Catalog, len(r.built))
	for id, qs := range r.built {
		c[id] = qs
	}
	return c
}

// Close drops the relations this registry materialized unless they are
// configured to be kept. The first error is returned after all drops ran.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	relations := r.relations
	r.relations = nil
	r.mu.Unlock()

	if r.opts.KeepMaterialized {
		return nil
	}
	var first error
	for _, rel := range relations {
		if err := r.conn.Execute(ctx, dropSQL(rel)); err != nil && first == nil {
			first = fmt.Errorf("drop %s: %w", rel, err)
		}
	}
	return first
}

// source is one requested column resolved against the request's tables.
type source struct {
	table  predicate.TableRef
	column string
	typ    string
}

func (r *Registry) build(ctx context.Context, req Request) (*QuerySet, error) {
	lookupErr := func(attr, reason string, err error) error {
		return &SchemaLookupError{QuerySet: req.ID, Attribute: attr, Reason: reason, Err: err}
	}

	if len(req.Tables) == 0 {
		return nil, lookupErr("", "request has no tables", nil)
	}
	if len(req.Columns) == 0 {
		return nil, lookupErr("", "request has no selection attributes", nil)
	}

	tables := append([]predicate.TableRef(nil), req.Tables...)
	sort.Slice(tables, func(i, j int) bool {
		if tables[i].Name != tables[j].Name {
			return tables[i].Name < tables[j].Name
		}
		return tables[i].Alias < tables[j].Alias
	})
	byName := make(map[string]predicate.TableRef, len(tables))
	for _, t := range tables {
		if _, dup := byName[t.Name]; dup {
			return nil, lookupErr("", fmt.Sprintf("table %q appears twice; self-joins are not supported", t.Name), nil)
		}
		byName[t.Name] = t
	}
	aliases := predicate.AliasMap(tables)

	types := make(map[string]map[string]string)
	sources, err := r.resolveColumns(ctx, req, tables, byName, aliases, types)
	if err != nil {
		return nil, err
	}

	joins, err := resolveJoins(req, byName, aliases)
	if err != nil {
		return nil, err
	}

	// Columns sharing a bare name are all renamed alias_column.
	bare := make(map[string]int)
	for _, s := range sources {
		bare[s.column]++
	}
	attrs := make([]Attribute, len(sources))
	cols := make([]projection, len(sources))
	for i, s := range sources {
		name := s.column
		if bare[s.column] > 1 {
			name = s.table.Qualifier() + "_" + s.column
		}
		attrs[i] = Attribute{
			Name:   name,
			Table:  s.table.Name,
			Alias:  s.table.Qualifier(),
			Column: s.column,
			Type:   s.typ,
		}
		cols[i] = projection{
			alias:       s.table.Qualifier(),
			column:      s.column,
			name:        name,
			categorical: !integerType(s.typ),
		}
	}

	from := make([]fromItem, len(tables))
	for i, t := range tables {
		from[i] = fromItem{table: t.Name, alias: t.Qualifier()}
	}
	relation := relationName(req.Key())
	if err := r.conn.Execute(ctx, materializeSQL(relation, from, joins, cols)); err != nil {
		return nil, lookupErr("", "materialize join", err)
	}
	r.mu.Lock()
	r.relations = append(r.relations, relation)
	r.mu.Unlock()

	row, err := r.conn.FetchOne(ctx, countSQL(relation))
	if err != nil {
		return nil, lookupErr("", "count rows", err)
	}
	maxCard, err := toInt64(row[0])
	if err != nil {
		return nil, lookupErr("", "count rows", err)
	}

	for i := range attrs {
		if err := r.collectStats(ctx, relation, &attrs[i]); err != nil {
			return nil, lookupErr(attrs[i].Name, "collect statistics", err)
		}
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })

	qs := &QuerySet{
		ID:             req.ID,
		Tables:         tables,
		JoinAttributes: append([]string(nil), req.JoinAttributes...),
		Attributes:     attrs,
		MaxCard:        maxCard,
		Relation:       relation,
	}
	if err := qs.Validate(); err != nil {
		return nil, lookupErr("", "invalid statistics", err)
	}
	slog.Info("built query-set", "query_set", req.ID, "relation", relation, "rows", maxCard, "attributes", len(attrs))
	return qs, nil
}

func (r *Registry) resolveColumns(ctx context.Context, req Request, tables []predicate.TableRef,
	byName map[string]predicate.TableRef, aliases map[string]string, types map[string]map[string]string) ([]source, error) {

	seen := make(map[string]bool)
	var out []source
	for _, attr := range req.Columns {
		qualifier, column := predicate.SplitQualifier(attr)
		var table predicate.TableRef
		switch {
		case qualifier == "" && len(tables) == 1:
			table = tables[0]
		case qualifier == "":
			return nil, &SchemaLookupError{QuerySet: req.ID, Attribute: attr, Reason: "unqualified attribute in a multi-table query-set"}
		default:
			name, ok := aliases[qualifier]
			if !ok {
				return nil, &SchemaLookupError{QuerySet: req.ID, Attribute: attr, Reason: fmt.Sprintf("unknown table or alias %q", qualifier)}
			}
			table = byName[name]
		}

		id := table.Name + "." + column
		if seen[id] {
			continue
		}
		seen[id] = true

		cols, ok := types[table.Name]
		if !ok {
			var err error
			cols, err = r.columnTypes(ctx, table.Name)
			if err != nil {
				return nil, &SchemaLookupError{QuerySet: req.ID, Attribute: attr, Reason: "read column types", Err: err}
			}
			if len(cols) == 0 {
				return nil, &SchemaLookupError{QuerySet: req.ID, Attribute: attr, Reason: fmt.Sprintf("table %q not found", table.Name)}
			}
			types[table.Name] = cols
		}
		typ, ok := cols[column]
		if !ok {
			return nil, &SchemaLookupError{QuerySet: req.ID, Attribute: attr, Reason: fmt.Sprintf("column %q not found in table %q", column, table.Name)}
		}
		out = append(out, source{table: table, column: column, typ: typ})
	}
	return out, nil
}

func (r *Registry) columnTypes(ctx context.Context, table string) (map[string]string, error) {
	rows, err := r.conn.FetchAll(ctx, columnTypesSQL(), table)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("column metadata row has %d fields", len(row))
		}
		out[toString(row[0])] = toString(row[1])
	}
	return out, nil
}

func resolveJoins(req Request, byName map[string]predicate.TableRef, aliases map[string]string) ([]joinCondition, error) {
	parser := predicate.NewParser(predicate.DefaultOptions())
	out := make([]joinCondition, 0, len(req.JoinAttributes))
	for _, j := range req.JoinAttributes {
		p, err := parser.ParseClause(j, aliases)
		if err != nil {
			return nil, &SchemaLookupError{QuerySet: req.ID, Attribute: j, Reason: "invalid join attribute", Err: err}
		}
		if !p.IsJoin() {
			return nil, &SchemaLookupError{QuerySet: req.ID, Attribute: j, Reason: "join attribute does not compare two columns"}
		}
		left, err := aliasQualified(p.Attribute, byName)
		if err != nil {
			return nil, &SchemaLookupError{QuerySet: req.ID, Attribute: j, Reason: "invalid join attribute", Err: err}
		}
		right, err := aliasQualified(p.RightAttribute, byName)
		if err != nil {
			return nil, &SchemaLookupError{QuerySet: req.ID, Attribute: j, Reason: "invalid join attribute", Err: err}
		}
		out = append(out, joinCondition{left: left, right: right, op: string(p.Operator)})
	}
	return out, nil
}

// aliasQualified rewrites table.column to alias.column for the FROM list.
func aliasQualified(attr string, byName map[string]predicate.TableRef) (string, error) {
	table, column := predicate.SplitQualifier(attr)
	t, ok := byName[table]
	if !ok {
		return "", fmt.Errorf("attribute %q does not name a table of the query-set", attr)
	}
	return t.Qualifier() + "." + column, nil
}

func (r *Registry) collectStats(ctx context.Context, relation string, a *Attribute) error {
	if integerType(a.Type) {
		row, err := r.conn.FetchOne(ctx, rangeSQL(relation, a.Name))
		if err != nil {
			return err
		}
		if row[0] == nil || row[1] == nil {
			return fmt.Errorf("no non-null values")
		}
		if a.Min, err = toInt64(row[0]); err != nil {
			return fmt.Errorf("min: %w", err)
		}
		if a.Max, err = toInt64(row[1]); err != nil {
			return fmt.Errorf("max: %w", err)
		}
		a.Step = 1
		return nil
	}

	rows, err := r.conn.FetchAll(ctx, distinctSQL(relation, a.Name))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no distinct values")
	}
	values := make([]string, len(rows))
	counts := make([]int64, len(rows))
	for i, row := range rows {
		values[i] = toString(row[0])
		if counts[i], err = toInt64(row[1]); err != nil {
			return fmt.Errorf("count of %q: %w", values[i], err)
		}
	}
	enc, err := NewEncoding(values, counts)
	if err != nil {
		return err
	}
	a.Encoding = enc
	a.Min = 0
	a.Max = int64(enc.Len() - 1)
	a.Step = 1
	return nil
}

// integerType applies SQLite's affinity rule: a declared type containing
// INT has integer affinity.
func integerType(typ string) bool {
	return strings.Contains(strings.ToUpper(typ), "INT")
}

func relationName(key string) string {
	return "qs_" + hashWithDomain(DomainRelation, []byte(key))[:16]
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("non-integral value %v", n)
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case nil:
		return 0, fmt.Errorf("null value")
	}
	return 0, fmt.Errorf("unexpected value type %T", v)
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
