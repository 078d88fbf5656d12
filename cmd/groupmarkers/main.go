// Command groupmarkers reads a JSON array of raw problem records and writes
// the map markers the service would render for them. It runs the same parse,
// normalize and grouping code as the pipeline, so its output doubles as a
// fixture for API tests and a debugging aid for threshold tuning.
//
// Usage:
//
//	go run ./cmd/groupmarkers \
//	  -in data/mock/reported_problems.json \
//	  -out data/mock/markers.json \
//	  -threshold 10
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/civic-problem-map/internal/domain"
	"github.com/jonboulle/clockwork"
)

var baseDate = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

// output mirrors the /api/v1/markers response body.
type output struct {
	ThresholdMeters float64               `json:"threshold_meters"`
	Total           int                   `json:"total"`
	Grouped         int                   `json:"grouped"`
	Excluded        int                   `json:"excluded"`
	Markers         []domain.Marker       `json:"markers"`
	Counts          map[domain.Status]int `json:"counts"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "data/mock/reported_problems.json", "JSON array of raw problem records")
	out := flag.String("out", "", "output path for marker JSON (stdout when empty)")
	threshold := flag.Float64("threshold", domain.DefaultProximityMeters, "grouping threshold in meters")
	flag.Parse()

	// Set a fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	data, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	problems, skipped, err := parseRecords(data)
	if err != nil {
		return err
	}
	log.Printf("parsed %d records (%d skipped)", len(problems), skipped)

	result := buildOutput(problems, *threshold)

	if *out == "" {
		return encode(os.Stdout, result)
	}
	if err := writeJSON(*out, result); err != nil {
		return fmt.Errorf("writing markers: %w", err)
	}
	log.Printf("wrote %d markers: %s", len(result.Markers), *out)

	printStats(result)
	return nil
}

// parseRecords runs each record through the ingestion transform. Records
// that fail to parse are counted and skipped, as the pipeline does.
func parseRecords(data []byte) ([]domain.ReportedProblem, int, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, 0, fmt.Errorf("decode input: %w", err)
	}

	problems := make([]domain.ReportedProblem, 0, len(records))
	skipped := 0
	for _, rec := range records {
		change, err := domain.ParseRawEvent(domain.RawEvent{Value: rec, Timestamp: baseDate})
		if err != nil || change.Deleted {
			skipped++
			continue
		}
		problems = append(problems, domain.NormalizeProblem(change.Problem))
	}
	return problems, skipped, nil
}

func buildOutput(problems []domain.ReportedProblem, threshold float64) output {
	if !(threshold > 0) || math.IsInf(threshold, 0) {
		threshold = domain.DefaultProximityMeters
	}
	groups := domain.GroupProblems(problems, threshold)

	grouped := 0
	for _, g := range groups {
		grouped += len(g.Members)
	}
	return output{
		ThresholdMeters: threshold,
		Total:           len(problems),
		Grouped:         grouped,
		Excluded:        len(problems) - grouped,
		Markers:         domain.BuildMarkers(groups),
		Counts:          domain.CountByStatus(groups),
	}
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(o output) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Threshold: %gm\n", o.ThresholdMeters)
	fmt.Printf("Total: %d, grouped: %d, excluded: %d\n", o.Total, o.Grouped, o.Excluded)
	fmt.Printf("Markers: %d\n", len(o.Markers))
	for _, s := range domain.Statuses {
		fmt.Printf("  %s=%d\n", s, o.Counts[s])
	}

	largest := 0
	for _, m := range o.Markers {
		if m.Count > largest {
			largest = m.Count
		}
	}
	fmt.Printf("Largest marker: %d problems\n", largest)
}
