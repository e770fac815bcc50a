package domain

import "time"

// FilterCriteria narrows the candidate set. Zero values disable a criterion.
type FilterCriteria struct {
	Before   *time.Time
	After    *time.Time
	Contains string
	Exclude  string
}

// IsEmpty reports whether no criterion is set.
func (c FilterCriteria) IsEmpty() bool {
	return c.Before == nil && c.After == nil && c.Contains == "" && c.Exclude == ""
}
