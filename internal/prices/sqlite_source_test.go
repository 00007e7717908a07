package prices

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/cryptoptimizer/internal/database"
	"github.com/aristath/cryptoptimizer/internal/domain"
)

func setupHistoryDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func series(asset string, start time.Time, prices ...float64) domain.AssetSeries {
	s := domain.AssetSeries{Asset: asset}
	for i, p := range prices {
		s.Points = append(s.Points, domain.PricePoint{Time: start.AddDate(0, 0, i), Price: p})
	}
	return s
}

func TestSQLiteSource_StoreAndLoad(t *testing.T) {
	ctx := context.Background()
	src := NewSQLiteSource(setupHistoryDB(t), zerolog.Nop())

	require.NoError(t, src.Store(ctx, series("BTC-USD", day("2024-01-01"), 100, 110, 121, 133.1)))
	require.NoError(t, src.Store(ctx, series("ETH-USD", day("2024-01-02"), 10, math.NaN(), 12)))

	pt, err := src.Load(ctx, []string{"BTC-USD", "ETH-USD"}, day("2024-01-01"), day("2024-01-04"))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, pt.Assets)
	require.Equal(t, []time.Time{day("2024-01-01"), day("2024-01-02"), day("2024-01-03")}, pt.Dates)
	assert.Equal(t, 100.0, pt.Prices[0][0])
	assert.True(t, math.IsNaN(pt.Prices[0][1]), "ETH starts a day later")
	assert.Equal(t, 10.0, pt.Prices[1][1])
	assert.True(t, math.IsNaN(pt.Prices[2][1]), "missing price is not stored")
	assert.Equal(t, 121.0, pt.Prices[2][0])
}

func TestSQLiteSource_StoreUpserts(t *testing.T) {
	ctx := context.Background()
	src := NewSQLiteSource(setupHistoryDB(t), zerolog.Nop())

	require.NoError(t, src.Store(ctx, series("BTC-USD", day("2024-01-01"), 100, 110)))
	require.NoError(t, src.Store(ctx, series("BTC-USD", day("2024-01-02"), 111)))

	pt, err := src.Load(ctx, []string{"BTC-USD"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{100}, {111}}, pt.Prices)
}

func TestSQLiteSource_MissingAsset(t *testing.T) {
	ctx := context.Background()
	src := NewSQLiteSource(setupHistoryDB(t), zerolog.Nop())
	require.NoError(t, src.Store(ctx, series("BTC-USD", day("2024-01-01"), 100, 110)))

	_, err := src.Load(ctx, []string{"BTC-USD", "ETH-USD"}, time.Time{}, time.Time{})
	require.Error(t, err)
	assert.True(t, domain.IsData(err))
	assert.ErrorIs(t, err, domain.ErrMissingAsset)

	// Out of range counts as missing.
	_, err = src.Load(ctx, []string{"BTC-USD"}, day("2025-01-01"), time.Time{})
	assert.ErrorIs(t, err, domain.ErrMissingAsset)
}

func TestSQLiteSource_NoAssets(t *testing.T) {
	src := NewSQLiteSource(setupHistoryDB(t), zerolog.Nop())

	_, err := src.Load(context.Background(), nil, time.Time{}, time.Time{})
	assert.True(t, domain.IsConfiguration(err))
}

func TestSQLiteSource_UnmigratedDatabase(t *testing.T) {
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = NewSQLiteSource(db, zerolog.Nop()).Load(context.Background(), []string{"BTC-USD", "ETH-USD"}, time.Time{}, time.Time{})
	require.Error(t, err)
	assert.True(t, domain.IsData(err))
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "daily_prices")
}

func TestSQLiteSource_CanceledContext(t *testing.T) {
	src := NewSQLiteSource(setupHistoryDB(t), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Load(ctx, []string{"BTC-USD", "ETH-USD"}, time.Time{}, time.Time{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.ErrorKind(0), domain.KindOf(err))
}
