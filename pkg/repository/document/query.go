package document

import (
	"fmt"
	"strings"

	"github.com/nimburion/taskmanager/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
)

// RegexDelimiter wraps a value that must be matched as a pattern instead of literally.
const RegexDelimiter = "/"

// QueryBuilder accumulates optional filter clauses. Absent values add nothing, so a
// builder fed only nil pointers produces an empty filter matching everything.
// Calls on the same field overwrite the earlier clause.
type QueryBuilder struct {
	filter Filter
	err    error
}

// NewQueryBuilder creates an empty QueryBuilder.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{filter: Filter{}}
}

// Pattern reports whether value is delimited as a regular expression and returns the inner pattern.
func Pattern(value string) (string, bool) {
	if len(value) >= 2 && strings.HasPrefix(value, RegexDelimiter) && strings.HasSuffix(value, RegexDelimiter) {
		return value[1 : len(value)-1], true
	}
	return "", false
}

// WithEqOrRegex matches field exactly, or by pattern when the value is written as /pattern/.
func (b *QueryBuilder) WithEqOrRegex(field string, value *string) *QueryBuilder {
	if value == nil {
		return b
	}
	if pattern, ok := Pattern(*value); ok {
		b.filter[field] = bson.M{"$regex": pattern}
	} else {
		b.filter[field] = *value
	}
	return b
}

// WithEqOrRegexAll requires every value to match at least one element of the array field.
// Each value is exact or /pattern/ like WithEqOrRegex.
func (b *QueryBuilder) WithEqOrRegexAll(field string, values []string) *QueryBuilder {
	if len(values) == 0 {
		return b
	}
	slots := make([]interface{}, 0, len(values))
	for i, value := range values {
		if value == "" || value == RegexDelimiter {
			b.fail(repository.NewValidationError(
				fmt.Sprintf("bad_%s[%d]", field, i),
				fmt.Sprintf("the value %q is not a valid element to search for", value),
			))
			return b
		}
		if pattern, ok := Pattern(value); ok {
			slots = append(slots, bson.M{"$elemMatch": bson.M{"$regex": pattern}})
		} else {
			slots = append(slots, bson.M{"$elemMatch": bson.M{"$eq": value}})
		}
	}
	b.filter[field] = bson.M{"$all": slots}
	return b
}

// WithRange matches values inside the inclusive [from, to] interval. A nil bound leaves that side open.
func (b *QueryBuilder) WithRange(field string, from, to *int64) *QueryBuilder {
	if from == nil && to == nil {
		return b
	}
	clause := bson.M{}
	if from != nil {
		clause["$gte"] = *from
	}
	if to != nil {
		clause["$lte"] = *to
	}
	b.filter[field] = clause
	return b
}

// WithExist matches on presence (true) or absence (false) of field.
func (b *QueryBuilder) WithExist(field string, exists *bool) *QueryBuilder {
	if exists == nil {
		return b
	}
	b.filter[field] = bson.M{"$exists": *exists}
	return b
}

// WithEq matches field exactly when value is not nil.
func (b *QueryBuilder) WithEq(field string, value interface{}) *QueryBuilder {
	if value == nil {
		return b
	}
	b.filter[field] = value
	return b
}

// Err returns the first validation failure recorded while building.
func (b *QueryBuilder) Err() error {
	return b.err
}

// Build returns a copy of the accumulated filter.
func (b *QueryBuilder) Build() Filter {
	out := make(Filter, len(b.filter))
	for k, v := range b.filter {
		out[k] = v
	}
	return out
}

func (b *QueryBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
