package domain

import (
	"context"
	"encoding/json"
	"time"
)

// RawProblemRecord is the flat JSON structure published by the report store.
// Coordinate fields are kept raw because their shape varies per record.
type RawProblemRecord struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Category    string          `json:"category"`
	Type        string          `json:"type"`
	Address     string          `json:"address"`
	CreatedAt   string          `json:"created_at"`
	Coordinates json.RawMessage `json:"coordinates"` // object or [lat, lng]
	Latitude    json.RawMessage `json:"latitude"`
	Longitude   json.RawMessage `json:"longitude"`
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ReportedProblem is the normalized representation of a citizen report.
type ReportedProblem struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Status      Status           `json:"status"`
	RawStatus   string           `json:"raw_status,omitempty"`
	Category    string           `json:"category,omitempty"`
	Location    []CoordinateForm `json:"location,omitempty"`
	Address     string           `json:"address,omitempty"`

	// AddressSource records where Address came from: "reverse", "original" or "failed".
	AddressSource string `json:"address_source,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Coordinates returns the first valid point among the problem's coordinate forms.
func (p ReportedProblem) Coordinates() (Coordinates, bool) {
	return ResolveCoordinates(p.Location)
}

// CanonicalStatus normalizes the record's status text. RawStatus carries the
// text as received and wins when set; Status is used otherwise.
func (p ReportedProblem) CanonicalStatus() Status {
	if p.RawStatus != "" {
		return NormalizeStatus(p.RawStatus)
	}
	return NormalizeStatus(string(p.Status))
}

// ProblemChange is one entry of the change feed after parsing: either an
// upserted problem or the deletion of a problem ID.
type ProblemChange struct {
	ID      string
	Deleted bool
	Problem ReportedProblem
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
