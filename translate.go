package tenantschema

import (
	"reflect"
	"regexp"
	"sort"
	"strings"

	pg_query "github.com/lfittl/pg_query_go"
	nodes "github.com/lfittl/pg_query_go/nodes"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

var (
	rangeVarType  = reflect.TypeOf(nodes.RangeVar{})
	columnRefType = reflect.TypeOf(nodes.ColumnRef{})
	cteType       = reflect.TypeOf(nodes.CommonTableExpr{})
	stringType    = reflect.TypeOf(nodes.String{})
)

// ErrUntranslatable is returned for statements that name objects
// the translator cannot locate in the query text,
// such as DROP and COMMENT ON, when the map could apply to them.
var ErrUntranslatable = errors.New("statement cannot be schema-translated")

// relations is what the translator needs to know about a parse tree:
// every table and qualified column reference in it,
// the names bound by WITH clauses,
// and the statements naming objects by bare string lists.
type relations struct {
	refs      []nodes.RangeVar
	cols      []nodes.ColumnRef
	ctes      map[string]bool
	unlocated []unlocated
}

// unlocated is a statement whose object names carry no location.
type unlocated struct {
	kind  string
	names []string
}

func findRelations(tree pg_query.ParsetreeList) *relations {
	r := &relations{ctes: make(map[string]bool)}
	r.walk(reflect.ValueOf(tree))
	return r
}

// walk uses reflection to visit every node of the parse tree,
// collecting RangeVars, ColumnRefs, CTE names and unlocated object names.
func (r *relations) walk(val reflect.Value) {
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface:
		if !val.IsNil() {
			r.walk(val.Elem())
		}

	case reflect.Struct:
		if val.CanInterface() {
			switch val.Type() {
			case rangeVarType:
				r.refs = append(r.refs, val.Interface().(nodes.RangeVar))
				return

			case columnRefType:
				r.cols = append(r.cols, val.Interface().(nodes.ColumnRef))
				return

			case cteType:
				if name := val.Interface().(nodes.CommonTableExpr).Ctename; name != nil {
					r.ctes[*name] = true
				}
			}
			r.checkUnlocated(val.Interface())
		}
		for i := 0; i < val.NumField(); i++ {
			r.walk(val.Field(i))
		}

	case reflect.Slice, reflect.Array:
		for i := 0; i < val.Len(); i++ {
			r.walk(val.Index(i))
		}
	}
}

func (r *relations) checkUnlocated(node interface{}) {
	var (
		kind   string
		object interface{}
	)
	switch n := node.(type) {
	case nodes.DropStmt:
		kind, object = "DROP", n.Objects
	case nodes.CommentStmt:
		kind, object = "COMMENT", n.Object
	case nodes.RenameStmt:
		if n.Relation == nil {
			kind, object = "ALTER ... RENAME", n.Object
		}
	case nodes.AlterObjectSchemaStmt:
		if n.Relation == nil {
			kind, object = "ALTER ... SET SCHEMA", n.Object
		}
	case nodes.AlterOwnerStmt:
		if n.Relation == nil {
			kind, object = "ALTER ... OWNER", n.Object
		}
	}
	if kind == "" {
		return
	}
	u := unlocated{kind: kind}
	collectStrings(reflect.ValueOf(object), &u.names)
	r.unlocated = append(r.unlocated, u)
}

// collectStrings appends the value of every String node under val to names.
func collectStrings(val reflect.Value, names *[]string) {
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface:
		if !val.IsNil() {
			collectStrings(val.Elem(), names)
		}

	case reflect.Struct:
		if val.Type() == stringType && val.CanInterface() {
			*names = append(*names, val.Interface().(nodes.String).Str)
			return
		}
		for i := 0; i < val.NumField(); i++ {
			collectStrings(val.Field(i), names)
		}

	case reflect.Slice, reflect.Array:
		for i := 0; i < val.Len(); i++ {
			collectStrings(val.Index(i), names)
		}
	}
}

// edit replaces query[start:end] with text.
type edit struct {
	start, end int
	text       string
}

func (r *relations) edits(query string, m SchemaTranslateMap) ([]edit, error) {
	for _, u := range r.unlocated {
		if m[""] != "" {
			return nil, errors.Wrapf(ErrUntranslatable, "%s with unqualified names is not confined to schema %s", u.kind, m[""])
		}
		for _, name := range u.names {
			if _, ok := m[name]; ok {
				return nil, errors.Wrapf(ErrUntranslatable, "%s naming schema %s", u.kind, name)
			}
		}
	}

	var (
		result []edit
		seen   = make(map[int]bool)
	)
	add := func(e edit) {
		if !seen[e.start] {
			seen[e.start] = true
			result = append(result, e)
		}
	}

	for _, rv := range r.refs {
		if rv.Relname == nil || rv.Location < 0 {
			continue
		}

		if rv.Schemaname == nil {
			if r.ctes[*rv.Relname] || isCatalog(*rv.Relname) {
				continue
			}
			if target := m[""]; target != "" {
				add(edit{start: rv.Location, end: rv.Location, text: safeIdent(target) + "."})
			}
			continue
		}

		target, ok := m[*rv.Schemaname]
		if !ok {
			continue
		}
		parts, err := identChain(query, rv.Location)
		if err != nil {
			return nil, err
		}
		if len(parts) < 2 {
			return nil, errors.Errorf("qualified name expected at %d", rv.Location)
		}
		// The schema is the part before the relation name,
		// whether or not a catalog precedes it.
		e, err := qualifierEdit(parts, len(parts)-2, target)
		if err != nil {
			return nil, err
		}
		add(e)
	}

	for _, cr := range r.cols {
		// Only schema.table.column (or catalog.schema.table.column) names a schema.
		n := len(cr.Fields.Items)
		if n < 3 || cr.Location < 0 {
			continue
		}
		idx := n - 3
		field, ok := cr.Fields.Items[idx].(nodes.String)
		if !ok {
			continue
		}
		target, ok := m[field.Str]
		if !ok {
			continue
		}
		parts, err := identChain(query, cr.Location)
		if err != nil {
			return nil, err
		}
		if len(parts) < idx+2 {
			return nil, errors.Errorf("qualified column reference expected at %d", cr.Location)
		}
		e, err := qualifierEdit(parts, idx, target)
		if err != nil {
			return nil, err
		}
		add(e)
	}
	return result, nil
}

// qualifierEdit replaces the schema identifier parts[idx] with target.
// An empty target drops the schema, and any catalog before it,
// along with the following dot.
func qualifierEdit(parts []span, idx int, target string) (edit, error) {
	if idx < 0 || idx+1 >= len(parts) {
		return edit{}, errors.Errorf("no schema qualifier in name of %d parts", len(parts))
	}
	if target == "" {
		return edit{start: parts[0].start, end: parts[idx+1].start}, nil
	}
	return edit{start: parts[idx].start, end: parts[idx].end, text: safeIdent(target)}, nil
}

func applyEdits(query string, edits []edit) string {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	for _, e := range edits {
		query = query[:e.start] + e.text + query[e.end:]
	}
	return query
}

func translateTree(query string, tree pg_query.ParsetreeList, m SchemaTranslateMap) (string, error) {
	edits, err := findRelations(tree).edits(query, m)
	if err != nil {
		return "", err
	}
	return applyEdits(query, edits), nil
}

// Translate rewrites the table references in query according to m.
// The query is parsed, not pattern-matched;
// text outside the rewritten references is preserved exactly.
func Translate(query string, m SchemaTranslateMap) (string, error) {
	if len(m) == 0 {
		return query, nil
	}
	tree, err := pg_query.Parse(query)
	if err != nil {
		return "", errors.Wrap(err, "parsing query")
	}
	return translateTree(query, tree, m)
}

// isCatalog reports whether an unqualified relation is a system catalog,
// which lives in pg_catalog no matter what schema a session is bound to.
func isCatalog(relname string) bool {
	return strings.HasPrefix(relname, "pg_")
}

// identEnd returns the position just past the identifier starting at pos.
func identEnd(q string, pos int) (int, error) {
	if pos >= len(q) {
		return 0, errors.Errorf("location %d out of range", pos)
	}
	if q[pos] == '"' {
		for i := pos + 1; i < len(q); i++ {
			if q[i] != '"' {
				continue
			}
			if i+1 < len(q) && q[i+1] == '"' {
				i++
				continue
			}
			return i + 1, nil
		}
		return 0, errors.Errorf("unterminated quoted identifier at %d", pos)
	}
	i := pos
	for i < len(q) && isIdentByte(q[i]) {
		i++
	}
	if i == pos {
		return 0, errors.Errorf("no identifier at %d", pos)
	}
	return i, nil
}

func isIdentByte(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '_', c == '$', c >= 0x80:
		return true
	}
	return false
}

// span is the position of one identifier in a query.
type span struct {
	start, end int
}

// identChain returns the identifiers of the dotted name starting at pos.
// It stops before anything that is not an identifier, such as "*".
func identChain(q string, pos int) ([]span, error) {
	end, err := identEnd(q, pos)
	if err != nil {
		return nil, err
	}
	parts := []span{{pos, end}}
	for {
		next, ok := dotAfter(q, end)
		if !ok {
			return parts, nil
		}
		e, err := identEnd(q, next)
		if err != nil {
			return parts, nil
		}
		parts = append(parts, span{next, e})
		end = e
	}
}

// dotAfter returns the position after the "." (and any surrounding space) at pos,
// or false if there is no dot there.
func dotAfter(q string, pos int) (int, bool) {
	for pos < len(q) && isSpace(q[pos]) {
		pos++
	}
	if pos >= len(q) || q[pos] != '.' {
		return 0, false
	}
	pos++
	for pos < len(q) && isSpace(q[pos]) {
		pos++
	}
	return pos, true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

var plainIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// safeIdent quotes s only when Postgresql would otherwise misread it.
func safeIdent(s string) string {
	if !plainIdent.MatchString(s) {
		return pq.QuoteIdentifier(s)
	}
	switch s {
	case "all", "analyse", "analyze", "and", "any", "array", "as", "asc", "both", "case", "cast",
		"check", "collate", "column", "constraint", "create", "default", "desc", "distinct", "do",
		"else", "end", "except", "false", "for", "foreign", "from", "grant", "group", "having", "in",
		"into", "leading", "limit", "not", "null", "offset", "on", "only", "or", "order", "primary",
		"references", "select", "table", "then", "to", "true", "union", "unique", "user", "using",
		"when", "where", "with":
		return pq.QuoteIdentifier(s)
	}
	return s
}
