package prices

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptoptimizer/internal/database"
	"github.com/aristath/cryptoptimizer/internal/domain"
)

// SQLiteSource reads closes from the daily_prices table of a history
// database. The isin column holds the asset identifier.
type SQLiteSource struct {
	db  *database.DB
	log zerolog.Logger
}

// NewSQLiteSource creates a source over db.
func NewSQLiteSource(db *database.DB, log zerolog.Logger) *SQLiteSource {
	return &SQLiteSource{
		db:  db,
		log: log.With().Str("component", "sqlite_prices").Str("db", db.Name()).Logger(),
	}
}

// Load implements Source.
func (s *SQLiteSource) Load(ctx context.Context, assets []string, start, end time.Time) (domain.PriceTable, error) {
	const op = "prices.SQLiteSource.Load"

	if len(assets) == 0 {
		return domain.PriceTable{}, domain.ConfigurationError(op, domain.ErrTooFewAssets, "no assets requested")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(assets)), ",")
	query := fmt.Sprintf(`
		SELECT isin, date, close
		FROM daily_prices
		WHERE isin IN (%s)`, placeholders)
	args := make([]interface{}, 0, len(assets)+2)
	for _, a := range assets {
		args = append(args, a)
	}
	if !start.IsZero() {
		query += " AND date >= ?"
		args = append(args, start.Unix())
	}
	if !end.IsZero() {
		query += " AND date < ?"
		args = append(args, end.Unix())
	}
	query += " ORDER BY date ASC"

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return domain.PriceTable{}, s.queryError(ctx, op, "query daily prices", err)
	}
	defer rows.Close()

	observations := make(map[string]map[time.Time]float64, len(assets))
	count := 0
	for rows.Next() {
		var (
			asset    string
			dateUnix int64
			closeP   float64
		)
		if err := rows.Scan(&asset, &dateUnix, &closeP); err != nil {
			return domain.PriceTable{}, domain.DataError(op, domain.ErrCorruptPrice, "scan daily price: %v", err)
		}
		if observations[asset] == nil {
			observations[asset] = make(map[time.Time]float64)
		}
		observations[asset][time.Unix(dateUnix, 0).UTC()] = closeP
		count++
	}
	if err := rows.Err(); err != nil {
		return domain.PriceTable{}, s.queryError(ctx, op, "iterate daily prices", err)
	}

	for _, asset := range assets {
		if len(observations[asset]) == 0 {
			return domain.PriceTable{}, domain.DataError(op, domain.ErrMissingAsset, "no price history for %s", asset)
		}
	}

	s.log.Debug().
		Int("assets", len(assets)).
		Int("observations", count).
		Msg("Loaded prices from history database")
	return NewTable(assets, observations), nil
}

// queryError classifies a failed read. Cancellation is passed through as is;
// anything else (missing table, unreadable file) means the data is unavailable.
func (s *SQLiteSource) queryError(ctx context.Context, op, action string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.log.Error().Err(err).Msg("Failed to " + action)
	return domain.DataError(op, domain.ErrSourceUnavailable, "%s in %s: %v", action, s.db.Name(), err)
}

// Store upserts closes for one asset, skipping missing prices. It is used
// to import history.
func (s *SQLiteSource) Store(ctx context.Context, series domain.AssetSeries) error {
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO daily_prices (isin, date, close)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range series.Points {
		if math.IsNaN(p.Price) {
			continue
		}
		if _, err := stmt.ExecContext(ctx, series.Asset, Day(p.Time).Unix(), p.Price); err != nil {
			return fmt.Errorf("failed to store price for %s: %w", series.Asset, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prices: %w", err)
	}
	return nil
}
