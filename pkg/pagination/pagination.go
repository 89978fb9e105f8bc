package pagination

const (
	defaultMaxResults = 50
	maxAllowedResults = 1000
)

// Filter is a struct that contains the pagination filter
type Filter struct {
	MaxResults uint
	Page       *uint
}

// NewFilter creates a new filter. Zero or missing values fall back to the defaults.
func NewFilter(maxResults *uint, page *uint) *Filter {
	var maxR uint = defaultMaxResults
	if maxResults != nil && *maxResults > 0 {
		maxR = min(*maxResults, maxAllowedResults)
	}

	return &Filter{
		MaxResults: maxR,
		Page:       page,
	}
}

// GetLimit returns the limit for the query
func (f *Filter) GetLimit() uint {
	if f.MaxResults == 0 {
		return defaultMaxResults
	}
	return f.MaxResults
}

// GetOffset returns the offset for the query. Pages start at 1.
func (f *Filter) GetOffset() uint {
	if f.Page == nil || *f.Page == 0 {
		return 0
	}
	return (*f.Page - 1) * f.GetLimit()
}
