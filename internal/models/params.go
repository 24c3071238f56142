package models

// SortOrder is the direction of a list ordering.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

const (
	// DefaultPageSize is applied when a list request omits limit
	DefaultPageSize = 100

	// MaxPageSize is the ceiling larger limits are clamped to
	MaxPageSize = 100

	// MaxSearchLength bounds free-text search terms
	MaxSearchLength = 100
)

// ListParams carries normalized pagination, sorting and search options.
type ListParams struct {
	Limit     int
	Offset    int
	SortBy    string
	SortOrder SortOrder
	Search    string
}
