package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// problemNamespace scopes UUIDv5 fallback IDs generated from raw payloads.
var problemNamespace = uuid.MustParse("6f1c8a52-3d0e-4c4b-9a57-0b8f6c2e9d41")

// ParseRawEvent deserializes a RawEvent into a ProblemChange. An empty value
// is a deletion tombstone and requires a message key.
func ParseRawEvent(raw RawEvent) (ProblemChange, error) {
	if len(raw.Value) == 0 {
		if len(raw.Key) == 0 {
			return ProblemChange{}, errors.New("parse raw event: tombstone without key")
		}
		return ProblemChange{ID: string(raw.Key), Deleted: true}, nil
	}

	var rec RawProblemRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return ProblemChange{}, fmt.Errorf("parse raw event: %w", err)
	}

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = strings.TrimSpace(string(raw.Key))
	}
	if id == "" {
		id = uuid.NewSHA1(problemNamespace, raw.Value).String()
	}

	category := rec.Category
	if strings.TrimSpace(category) == "" {
		category = rec.Type
	}

	problem := ReportedProblem{
		ID:          id,
		Title:       rec.Title,
		Description: rec.Description,
		RawStatus:   rec.Status,
		Category:    category,
		Location:    decodeCoordinateForms(rec),
		Address:     rec.Address,
		CreatedAt:   parseCreatedAt(rec.CreatedAt, raw.Timestamp),
	}

	return ProblemChange{ID: id, Problem: problem}, nil
}

// parseCreatedAt reads an RFC3339 timestamp, falling back to the message time.
func parseCreatedAt(value string, fallback time.Time) time.Time {
	value = strings.TrimSpace(value)
	if value != "" {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t.UTC()
		}
	}
	if fallback.IsZero() {
		return time.Time{}
	}
	return fallback.UTC()
}

// NormalizeProblem canonicalizes a parsed problem: status, text fields,
// category and address. ProcessedAt is stamped from the package clock.
func NormalizeProblem(p ReportedProblem) ReportedProblem {
	p.Status = p.CanonicalStatus()
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	p.Address = NormalizeAddress(p.Address)
	p.ProcessedAt = clock.Now().UTC()
	return p
}

// SerializeChange marshals a ProblemChange into an output event for the sink
// topic. Deletions become tombstones with an empty value.
func SerializeChange(change ProblemChange) (OutputEvent, error) {
	if change.Deleted {
		return OutputEvent{
			Key:     []byte(change.ID),
			Headers: map[string]string{"deleted": "true"},
		}, nil
	}

	data, err := json.Marshal(change.Problem)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize problem: %w", err)
	}
	return OutputEvent{
		Key:   []byte(change.ID),
		Value: data,
		Headers: map[string]string{
			"status":       string(change.Problem.Status),
			"processed_at": change.Problem.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
