package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// SortFields whitelists the columns a listing may be ordered by
type SortFields map[string]bool

// DocumentSortFields are the sortable document columns
var DocumentSortFields = SortFields{
	"created_at":    true,
	"updated_at":    true,
	"number":        true,
	"type":          true,
	"status":        true,
	"document_date": true,
	"due_date":      true,
	"total_amount":  true,
}

// OrderBy turns a caller supplied column and direction into an ORDER BY.
// Unknown columns fall back to fallback and anything but "asc" sorts
// descending. Rows with equal keys are ordered by id so pages are stable.
func (s SortFields) OrderBy(field, dir, fallback string) clause.OrderBy {
	column := strings.TrimSpace(field)
	if !s[column] {
		column = fallback
	}
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: column}, Desc: !strings.EqualFold(strings.TrimSpace(dir), "asc")},
		{Column: clause.Column{Name: "id"}},
	}}
}
