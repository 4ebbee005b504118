package schema

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed meta.cue
var metaSchema string

// Catalog holds query-sets keyed by id. It is the in-memory form of a meta
// file.
type Catalog map[int]*QuerySet

// Lookup returns the query-set with the given id.
func (c Catalog) Lookup(id int) (*QuerySet, error) {
	qs, ok := c[id]
	if !ok {
		return nil, &UnknownQuerySetError{ID: id}
	}
	return qs, nil
}

// IDs returns the catalog's ids in ascending order.
func (c Catalog) IDs() []int {
	ids := make([]int, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Validate runs the semantic checks of every query-set.
func (c Catalog) Validate() error {
	for _, id := range c.IDs() {
		qs := c[id]
		if qs.ID != id {
			return fmt.Errorf("query-set keyed %d carries id %d", id, qs.ID)
		}
		if err := qs.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Marshal renders the catalog as a YAML meta file.
func (c Catalog) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[int]*QuerySet(c)); err != nil {
		return nil, fmt.Errorf("encode meta file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode meta file: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the catalog to path, creating parent directories.
func (c Catalog) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LoadCatalog reads and validates a meta file.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read meta file: %w", err)
	}
	return DecodeCatalog(path, data)
}

// DecodeCatalog validates data against the meta file schema and decodes it.
// name is used in error messages only.
func DecodeCatalog(name string, data []byte) (Catalog, error) {
	if issues := CheckDocument(data); len(issues) > 0 {
		return nil, &DocumentError{Path: name, Issues: issues}
	}

	var raw map[int]*QuerySet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &DocumentError{Path: name, Issues: []string{err.Error()}}
	}
	c := Catalog(raw)
	if err := c.Validate(); err != nil {
		return nil, &DocumentError{Path: name, Issues: []string{err.Error()}}
	}
	return c, nil
}

// CheckDocument validates the structure of a meta file against the embedded
// CUE schema and returns one message per violation.
func CheckDocument(data []byte) []string {
	var doc map[int]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("parse yaml: %v", err)}
	}
	if len(doc) == 0 {
		return []string{"document holds no query-sets"}
	}
	labeled := make(map[string]any, len(doc))
	for id, v := range doc {
		labeled[strconv.Itoa(id)] = v
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(metaSchema, cue.Filename("meta.cue"))
	if err := schema.Err(); err != nil {
		return []string{fmt.Sprintf("compile schema: %v", err)}
	}
	value := ctx.Encode(labeled)
	if err := value.Err(); err != nil {
		return []string{fmt.Sprintf("encode document: %v", err)}
	}

	unified := schema.LookupPath(cue.ParsePath("#MetaFile")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var issues []string
		for _, e := range cueerrors.Errors(err) {
			format, args := e.Msg()
			issues = append(issues, fmt.Sprintf("%s: %s", strings.Join(e.Path(), "."), fmt.Sprintf(format, args...)))
		}
		sort.Strings(issues)
		return issues
	}
	return nil
}
