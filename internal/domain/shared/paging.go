package shared

// Paging bounds for list endpoints
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter carries paging, ordering and free text search for list queries.
// OrderBy is a column name; stores whitelist it before use.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}

// Normalize returns the effective page and page size
func (f Filter) Normalize() (page, pageSize int) {
	page, pageSize = f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Offset is the number of rows before the requested page
func (f Filter) Offset() int {
	page, pageSize := f.Normalize()
	return (page - 1) * pageSize
}

// Paginated is one page of a listing
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated wraps items with their position in the full result
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
