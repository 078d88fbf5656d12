package domain

import "strings"

// Status is the canonical lifecycle state of a reported problem.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// Statuses lists the canonical states in lifecycle order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved}

// statusAliases maps lower-cased spellings (canonical, space separated and
// the store's Portuguese labels) to a canonical status.
var statusAliases = map[string]Status{
	"pending":      StatusPending,
	"pendente":     StatusPending,
	"in_progress":  StatusInProgress,
	"in progress":  StatusInProgress,
	"em_andamento": StatusInProgress,
	"em andamento": StatusInProgress,
	"resolved":     StatusResolved,
	"resolvido":    StatusResolved,
}

// NormalizeStatus maps free-form status text to a canonical status.
// Unknown and empty values fall back to pending.
func NormalizeStatus(raw string) Status {
	if s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return StatusPending
}

// ParseStatus is the strict variant used for query filters: it returns false
// instead of defaulting when the value is not a known spelling.
func ParseStatus(raw string) (Status, bool) {
	s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]
	return s, ok
}
