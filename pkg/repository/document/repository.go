// Package document provides the query, sort and paging building blocks shared by the
// MongoDB-backed stores, plus the executor contract they run against.
package document

import "go.mongodb.org/mongo-driver/bson"

// Filter represents field-based filtering criteria for document stores.
type Filter map[string]interface{}

// Sort specifies field and direction for sorting results.
type Sort struct {
	Field string
	Order SortOrder
}

// SortOrder defines the direction of sorting, using the document store's own encoding.
type SortOrder int

const (
	SortAsc  SortOrder = 1
	SortDesc SortOrder = -1
)

// SortSpec is an ordered list of sort keys. Earlier keys take precedence.
type SortSpec []Sort

// Document renders the spec as an ordered sort document.
func (s SortSpec) Document() bson.D {
	if len(s) == 0 {
		return nil
	}
	doc := make(bson.D, 0, len(s))
	for _, field := range s {
		doc = append(doc, bson.E{Key: field.Field, Value: int(field.Order)})
	}
	return doc
}

// Has reports whether field already appears in the spec.
func (s SortSpec) Has(field string) bool {
	for _, f := range s {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Pagination specifies offset-based pagination for document stores.
type Pagination struct {
	Offset int
	Limit  int
}

// QueryOptions encapsulates filtering, sorting, and pagination options for document queries.
type QueryOptions struct {
	Filter     Filter
	Sort       SortSpec
	Pagination Pagination
}
