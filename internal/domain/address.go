package domain

import (
	"context"
	"log/slog"
	"strings"
)

// NormalizeAddress collapses runs of whitespace and drops empty
// comma-separated parts, e.g. " Rua  A, , Centro " -> "Rua A, Centro".
func NormalizeAddress(addr string) string {
	parts := strings.Split(addr, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Join(strings.Fields(part), " ")
		if part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, ", ")
}

// EnrichWithAddress fills in a missing address by reverse geocoding the
// problem's resolved coordinates. If geocoder is nil the problem is returned
// untouched; lookup failures leave the address empty with AddressSource set
// to "failed" (graceful degradation).
func EnrichWithAddress(ctx context.Context, problem ReportedProblem, geocoder Geocoder, logger *slog.Logger) ReportedProblem {
	if geocoder == nil {
		return problem
	}

	if problem.Address != "" {
		problem.AddressSource = "original"
		return problem
	}

	point, ok := problem.Coordinates()
	if !ok {
		problem.AddressSource = "original"
		return problem
	}

	result, err := geocoder.ReverseGeocode(ctx, point.Lat, point.Lng)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"problem_id", problem.ID,
			"lat", point.Lat,
			"lng", point.Lng,
			"error", err,
		)
		problem.AddressSource = "failed"
		return problem
	}

	if result.FormattedAddress == "" {
		problem.AddressSource = "original"
		return problem
	}

	problem.Address = NormalizeAddress(result.FormattedAddress)
	problem.AddressSource = "reverse"
	return problem
}
