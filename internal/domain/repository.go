package domain

import "errors"

// ErrNotFound is returned when no problem has the requested id.
var ErrNotFound = errors.New("problem not found")

// ProblemFilter narrows problem listings. Zero values match everything.
type ProblemFilter struct {
	Status   Status
	Category string
}
