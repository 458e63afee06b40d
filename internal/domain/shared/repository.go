package shared

// Filter represents query filter options
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// DefaultFilter returns a filter with default values
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// Normalize clamps page and page size to sane bounds
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 200 {
		f.PageSize = 200
	}
	return f
}

// Offset returns the row offset for the filter
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
