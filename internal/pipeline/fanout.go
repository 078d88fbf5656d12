package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/civic-problem-map/internal/domain"
)

// FanoutLoader applies each batch to every loader in order and stops at the
// first failure. The whole batch is retried on failure, so every loader must
// tolerate replays.
type FanoutLoader []BatchLoader

func (f FanoutLoader) LoadBatch(ctx context.Context, changes []domain.ProblemChange) error {
	for i, l := range f {
		if err := l.LoadBatch(ctx, changes); err != nil {
			return fmt.Errorf("loader %d: %w", i, err)
		}
	}
	return nil
}
