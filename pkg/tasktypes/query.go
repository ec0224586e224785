package tasktypes

import "github.com/nimburion/taskmanager/pkg/repository/document"

// SortPaths maps the sort keys accepted on the task types page to document paths.
var SortPaths = map[string]string{
	"id":            "_id",
	"_id":           "_id",
	"name":          "name",
	"description":   "description",
	"keywords":      "keywords",
	"creationTs":    "_creationTs",
	"_creationTs":   "_creationTs",
	"updateTs":      "_lastUpdateTs",
	"_lastUpdateTs": "_lastUpdateTs",
}

var sorter = document.NewSortSpecBuilder(SortPaths)

// PageParams are the optional filters of the task types page.
type PageParams struct {
	Name        *string
	Description *string
	Keywords    []string
}

// PageQuery builds the filter of the task types page.
func PageQuery(p PageParams) (document.Filter, error) {
	b := document.NewQueryBuilder().
		WithEqOrRegex("name", p.Name).
		WithEqOrRegex("description", p.Description).
		WithEqOrRegexAll("keywords", p.Keywords)
	return b.Build(), b.Err()
}

// Sort resolves the order tokens of the task types page.
func Sort(tokens []string) (document.SortSpec, error) {
	return sorter.Build(tokens)
}
