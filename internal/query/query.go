// Package query parses the "field,operator,value" filter strings accepted by
// the list endpoints and applies them to document queries.
//
// System fields (id, slug, createdAt, updatedAt) become SQL conditions.
// Any other field is matched against the document data bag after loading.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/localnerve/memebase/internal/types"
	"gorm.io/gorm"
)

// Operator is a filter comparison
type Operator string

const (
	Equal            Operator = "equal"
	NotEqual         Operator = "notEqual"
	LessThan         Operator = "lessThan"
	LessThanEqual    Operator = "lessThanEqual"
	GreaterThan      Operator = "greaterThan"
	GreaterThanEqual Operator = "greaterThanEqual"
	Contains         Operator = "contains"
	Search           Operator = "search"
	StartsWith       Operator = "startsWith"
	EndsWith         Operator = "endsWith"
	IsNull           Operator = "isNull"
	IsNotNull        Operator = "isNotNull"
	Between          Operator = "between"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var operators = map[Operator]bool{
	Equal: true, NotEqual: true, LessThan: true, LessThanEqual: true,
	GreaterThan: true, GreaterThanEqual: true, Contains: true, Search: true,
	StartsWith: true, EndsWith: true, IsNull: true, IsNotNull: true, Between: true,
}

// system fields and their columns
var columns = map[string]string{
	"id":        "id",
	"slug":      "slug",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// Filter is one parsed condition
type Filter struct {
	Field    string
	Operator Operator
	Values   []string
}

// Options is a parsed list request
type Options struct {
	Filters   []Filter
	Limit     int
	Offset    int
	OrderBy   string
	OrderDesc bool
	Search    string
}

// ParseFilter parses "field,operator,value". The value may itself contain
// commas; "|" separates alternatives for equal/notEqual and the bounds of between.
func ParseFilter(raw string) (Filter, error) {
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) < 2 {
		return Filter{}, invalid("query %q must be field,operator,value", raw)
	}

	f := Filter{
		Field:    strings.TrimSpace(parts[0]),
		Operator: Operator(strings.TrimSpace(parts[1])),
	}
	if f.Field == "" {
		return Filter{}, invalid("query %q has no field", raw)
	}
	if !operators[f.Operator] {
		return Filter{}, invalid("unknown query operator %q", parts[1])
	}

	if f.Operator == IsNull || f.Operator == IsNotNull {
		return f, nil
	}
	if len(parts) < 3 {
		return Filter{}, invalid("query %q needs a value", raw)
	}

	switch f.Operator {
	case Equal, NotEqual:
		f.Values = strings.Split(parts[2], "|")
	case Between:
		f.Values = strings.Split(parts[2], "|")
		if len(f.Values) != 2 {
			return Filter{}, invalid("between needs two values separated by |, got %q", parts[2])
		}
	default:
		f.Values = []string{parts[2]}
	}

	if f.IsSystem() && (f.Field == "createdAt" || f.Field == "updatedAt") {
		for _, v := range f.Values {
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				return Filter{}, invalid("%s expects RFC3339 timestamps, got %q", f.Field, v)
			}
		}
	}

	return f, nil
}

// Parse builds Options from the raw list parameters
func Parse(queries []string, limit, offset int, orderBy, orderDir, search string) (Options, error) {
	opts := Options{
		Limit:   limit,
		Offset:  offset,
		OrderBy: strings.TrimSpace(orderBy),
		Search:  strings.TrimSpace(search),
	}

	for _, raw := range queries {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		f, err := ParseFilter(raw)
		if err != nil {
			return Options{}, err
		}
		opts.Filters = append(opts.Filters, f)
	}

	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Limit > MaxLimit {
		opts.Limit = MaxLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	switch strings.ToLower(orderDir) {
	case "", "desc":
		opts.OrderDesc = true
	case "asc":
		opts.OrderDesc = false
	default:
		return Options{}, invalid("orderDir must be asc or desc, got %q", orderDir)
	}

	return opts, nil
}

// IsSystem reports whether the filter targets a document column
func (f Filter) IsSystem() bool {
	_, ok := columns[f.Field]
	return ok
}

// InMemory reports whether any part of the request has to be evaluated on
// the loaded documents rather than in SQL
func (o Options) InMemory() bool {
	if o.Search != "" {
		return true
	}
	if o.OrderBy != "" {
		if _, ok := columns[o.OrderBy]; !ok {
			return true
		}
	}
	for _, f := range o.Filters {
		if !f.IsSystem() {
			return true
		}
	}
	return false
}

// ApplySQL adds the system field filters to db
func (o Options) ApplySQL(db *gorm.DB) *gorm.DB {
	for _, f := range o.Filters {
		if col, ok := columns[f.Field]; ok {
			db = f.apply(db, col)
		}
	}
	return db
}

// OrderSQL returns the ORDER BY clause when ordering by a system column
func (o Options) OrderSQL() string {
	col, ok := columns[o.OrderBy]
	if !ok {
		col = "created_at"
	}
	if o.OrderDesc {
		return col + " DESC"
	}
	return col + " ASC"
}

// likeEscaper quotes LIKE wildcards with '!', which every supported dialect
// accepts in an ESCAPE clause. '[' is a wildcard on sqlserver.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_", "[", "![")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (f Filter) apply(db *gorm.DB, col string) *gorm.DB {
	args := f.args()
	switch f.Operator {
	case Equal:
		return db.Where(col+" IN ?", args)
	case NotEqual:
		return db.Where(col+" NOT IN ?", args)
	case LessThan:
		return db.Where(col+" < ?", args[0])
	case LessThanEqual:
		return db.Where(col+" <= ?", args[0])
	case GreaterThan:
		return db.Where(col+" > ?", args[0])
	case GreaterThanEqual:
		return db.Where(col+" >= ?", args[0])
	case Contains, Search:
		return db.Where(col+" LIKE ? ESCAPE '!'", "%"+escapeLike(f.Values[0])+"%")
	case StartsWith:
		return db.Where(col+" LIKE ? ESCAPE '!'", escapeLike(f.Values[0])+"%")
	case EndsWith:
		return db.Where(col+" LIKE ? ESCAPE '!'", "%"+escapeLike(f.Values[0]))
	case IsNull:
		return db.Where(col + " IS NULL")
	case IsNotNull:
		return db.Where(col + " IS NOT NULL")
	case Between:
		return db.Where(col+" BETWEEN ? AND ?", args[0], args[1])
	}
	return db
}

// args converts timestamp values so drivers compare them as times
func (f Filter) args() []interface{} {
	out := make([]interface{}, len(f.Values))
	for i, v := range f.Values {
		if f.Field == "createdAt" || f.Field == "updatedAt" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				out[i] = t.UTC()
				continue
			}
		}
		out[i] = v
	}
	return out
}

// Match evaluates the filter against a flattened document
func (f Filter) Match(doc map[string]interface{}) bool {
	value, present := doc[f.Field]

	switch f.Operator {
	case IsNull:
		return !present || value == nil
	case IsNotNull:
		return present && value != nil
	}
	if !present || value == nil {
		return f.Operator == NotEqual
	}

	if items, ok := value.([]interface{}); ok {
		if f.Operator == NotEqual {
			for _, item := range items {
				if !f.matchScalar(item) {
					return false
				}
			}
			return true
		}
		for _, item := range items {
			if f.matchScalar(item) {
				return true
			}
		}
		return false
	}

	return f.matchScalar(value)
}

func (f Filter) matchScalar(value interface{}) bool {
	switch f.Operator {
	case Equal:
		for _, v := range f.Values {
			if compare(value, v) == 0 {
				return true
			}
		}
		return false
	case NotEqual:
		for _, v := range f.Values {
			if compare(value, v) == 0 {
				return false
			}
		}
		return true
	case LessThan:
		return compare(value, f.Values[0]) < 0
	case LessThanEqual:
		return compare(value, f.Values[0]) <= 0
	case GreaterThan:
		return compare(value, f.Values[0]) > 0
	case GreaterThanEqual:
		return compare(value, f.Values[0]) >= 0
	case Between:
		return compare(value, f.Values[0]) >= 0 && compare(value, f.Values[1]) <= 0
	case Contains:
		return strings.Contains(stringify(value), f.Values[0])
	case Search:
		return strings.Contains(strings.ToLower(stringify(value)), strings.ToLower(f.Values[0]))
	case StartsWith:
		return strings.HasPrefix(stringify(value), f.Values[0])
	case EndsWith:
		return strings.HasSuffix(stringify(value), f.Values[0])
	}
	return false
}

// Apply filters, searches, sorts and pages already loaded documents.
// It returns the page and the total number of matches.
func (o Options) Apply(docs []map[string]interface{}) ([]map[string]interface{}, int64) {
	matched := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		if o.matches(doc) {
			matched = append(matched, doc)
		}
	}

	if o.OrderBy != "" {
		key := o.OrderBy
		sort.SliceStable(matched, func(i, j int) bool {
			c := compareValues(matched[i][key], matched[j][key])
			if o.OrderDesc {
				return c > 0
			}
			return c < 0
		})
	}

	total := int64(len(matched))
	if o.Offset >= len(matched) {
		return []map[string]interface{}{}, total
	}
	end := min(o.Offset+o.Limit, len(matched))
	return matched[o.Offset:end], total
}

func (o Options) matches(doc map[string]interface{}) bool {
	for _, f := range o.Filters {
		// system filters already ran in SQL
		if !f.IsSystem() && !f.Match(doc) {
			return false
		}
	}
	if o.Search == "" {
		return true
	}
	needle := strings.ToLower(o.Search)
	for key, value := range doc {
		if key == "id" || key == "collectionId" {
			continue
		}
		if containsText(value, needle) {
			return true
		}
	}
	return false
}

func containsText(value interface{}, needle string) bool {
	switch v := value.(type) {
	case string:
		return strings.Contains(strings.ToLower(v), needle)
	case []interface{}:
		for _, item := range v {
			if containsText(item, needle) {
				return true
			}
		}
	}
	return false
}

// compare compares a stored JSON value with a filter operand
func compare(value interface{}, operand string) int {
	switch v := value.(type) {
	case float64:
		if n, err := strconv.ParseFloat(operand, 64); err == nil {
			return cmpFloat(v, n)
		}
	case bool:
		if b, err := strconv.ParseBool(operand); err == nil {
			return cmpBool(v, b)
		}
	case time.Time:
		if t, err := time.Parse(time.RFC3339, operand); err == nil {
			return v.Compare(t)
		}
	}
	return strings.Compare(stringify(value), operand)
}

// compareValues orders two stored values; nil sorts first
func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			return cmpFloat(af, bf)
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	return strings.Compare(stringify(a), stringify(b))
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case time.Time:
		return s.UTC().Format(time.RFC3339)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func invalid(format string, args ...interface{}) error {
	return types.BadRequest(fmt.Sprintf(format, args...), "query.invalid")
}
