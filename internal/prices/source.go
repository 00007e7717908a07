package prices

import (
	"context"
	"time"

	"github.com/aristath/cryptoptimizer/internal/domain"
)

// Source loads adjusted close prices for assets within [start, end).
// Implementations return a DataError when an asset has no history.
type Source interface {
	Load(ctx context.Context, assets []string, start, end time.Time) (domain.PriceTable, error)
}
