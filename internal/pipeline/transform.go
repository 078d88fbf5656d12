package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/civic-problem-map/internal/domain"
)

// ProblemTransformer implements Transformer using the domain parse and
// normalize functions with optional reverse-geocoding enrichment.
type ProblemTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a ProblemTransformer. Pass a nil geocoder to disable
// address enrichment.
func NewTransformer(geocoder domain.Geocoder, logger *slog.Logger) *ProblemTransformer {
	return &ProblemTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

func (t *ProblemTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.ProblemChange, error) {
	change, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.ProblemChange{}, err
	}
	if change.Deleted {
		return change, nil
	}

	p := domain.NormalizeProblem(change.Problem)
	change.Problem = domain.EnrichWithAddress(ctx, p, t.geocoder, t.logger)
	return change, nil
}
