package document

// Selector is a structured query predicate. Each key names a document field;
// the value is either a literal (exact match) or an operator object such as
// map[string]any{"$in": []any{...}}.
type Selector map[string]any

// Supported selector operators.
const (
	OpEq     = "$eq"
	OpIn     = "$in"
	OpGt     = "$gt"
	OpGte    = "$gte"
	OpLt     = "$lt"
	OpLte    = "$lte"
	OpExists = "$exists"
)

// SortOrder is the direction of one sort field.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// SortField pairs a document field with a direction.
type SortField struct {
	Field string
	Order SortOrder
}

// FindRequest describes one selector query. Ordering without an explicit Sort
// is backend-defined; ties under an explicit Sort fall back to document id.
type FindRequest struct {
	Selector Selector
	Sort     []SortField
	Limit    int
	Skip     int
}

// Index declares a named secondary index over a field list, optionally scoped
// by a partial-filter selector. Creation is idempotent: declaring an index
// that already exists with the same definition succeeds.
type Index struct {
	Name          string
	Fields        []string
	PartialFilter Selector
}
