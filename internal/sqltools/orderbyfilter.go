package sqltools

import (
	"errors"
	"strings"
)

// ErrRepeatedField is returned when a field is added twice to the same OrderByFilters
var ErrRepeatedField = errors.New("sql sort filter field already exists")

// SQLFieldName is an alias for string and is used to define order by filter constants
type SQLFieldName string

// OrderByFilter represents a filter over a field with an specific order (ASC(false) or DESC (true))
type OrderByFilter struct {
	Field     SQLFieldName
	Desc      bool
	NullsLast bool
}

// OrderByFilters is a collection of OrderByFilter with some handy methods to add order filters
// and generate an SQL ORDER BY clause
type OrderByFilters []OrderByFilter

// Add adds a new OrderByFilter to the collection. If the field already exists, it returns ErrRepeatedField
func (s *OrderByFilters) Add(f SQLFieldName, desc bool) error {
	return s.add(f, desc, false)
}

// AddWithNullsLast adds a new OrderByFilter to the collection with the NULLS LAST modifier
func (s *OrderByFilters) AddWithNullsLast(f SQLFieldName, desc bool) error {
	return s.add(f, desc, true)
}

// Has tells whether the field is already part of the collection
func (s OrderByFilters) Has(f SQLFieldName) bool {
	for _, v := range s {
		if v.Field == f {
			return true
		}
	}
	return false
}

// Clause returns the ORDER BY clause of the collection, including the keyword.
// fallback is used when the collection is empty. The unique field is appended last
// so OFFSET pagination is stable.
func (s OrderByFilters) Clause(unique SQLFieldName, fallback ...OrderByFilter) string {
	filters := s
	if len(filters) == 0 {
		filters = fallback
	}
	if unique != "" && !filters.Has(unique) {
		filters = append(filters[:len(filters):len(filters)], OrderByFilter{Field: unique})
	}
	if len(filters) == 0 {
		return ""
	}
	return " ORDER BY " + filters.String()
}

// String returns the comma separated sort fields
func (s OrderByFilters) String() string {
	sortFields := make([]string, 0, len(s))
	for _, sortBy := range s {
		field := string(sortBy.Field)
		if sortBy.Desc {
			field += " DESC"
		} else {
			field += " ASC"
		}
		if sortBy.NullsLast {
			field += " NULLS LAST"
		}
		sortFields = append(sortFields, field)
	}
	return strings.Join(sortFields, ", ")
}

func (s *OrderByFilters) add(f SQLFieldName, desc bool, withNullsLast bool) error {
	if s.Has(f) {
		return ErrRepeatedField
	}
	*s = append(*s, OrderByFilter{Field: f, Desc: desc, NullsLast: withNullsLast})
	return nil
}
