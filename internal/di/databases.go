package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptoptimizer/internal/config"
	"github.com/aristath/cryptoptimizer/internal/database"
)

// InitializeDatabases opens the price history database when one is configured.
// The analysis never writes to it, so it is opened read-only.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}
	if cfg.PriceDBPath == "" {
		return container, nil
	}

	historyDB, err := database.New(database.Config{
		Path:    cfg.PriceDBPath,
		Profile: database.ProfileReadOnly,
		Name:    "history",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	if err := historyDB.QuickCheck(context.Background()); err != nil {
		historyDB.Close()
		return nil, err
	}
	container.HistoryDB = historyDB

	log.Info().Str("path", historyDB.Path()).Msg("History database opened")
	return container, nil
}
