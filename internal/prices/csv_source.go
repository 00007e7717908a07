package prices

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptoptimizer/internal/domain"
)

// CSVSource reads a wide price file: a header "date,<asset>,<asset>..." and
// one row per date. Empty, "NaN" and "null" cells are missing prices.
type CSVSource struct {
	path string
	log  zerolog.Logger
}

// NewCSVSource creates a source backed by the file at path.
func NewCSVSource(path string, log zerolog.Logger) *CSVSource {
	return &CSVSource{
		path: path,
		log:  log.With().Str("component", "csv_prices").Str("path", path).Logger(),
	}
}

// Load implements Source.
func (s *CSVSource) Load(ctx context.Context, assets []string, start, end time.Time) (domain.PriceTable, error) {
	const op = "prices.CSVSource.Load"

	if err := ctx.Err(); err != nil {
		return domain.PriceTable{}, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return domain.PriceTable{}, domain.DataError(op, err, "open price file")
	}
	defer f.Close()

	table, err := ReadCSV(f)
	if err != nil {
		return domain.PriceTable{}, err
	}
	selected, err := Select(table, assets)
	if err != nil {
		return domain.PriceTable{}, err
	}
	sliced := Slice(selected, start, end)

	s.log.Debug().
		Int("assets", len(assets)).
		Int("rows", len(sliced.Dates)).
		Msg("Loaded prices from CSV")
	return sliced, nil
}

// ReadCSV parses a wide price table.
func ReadCSV(r io.Reader) (domain.PriceTable, error) {
	const op = "prices.ReadCSV"

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return domain.PriceTable{}, domain.DataError(op, domain.ErrEmptySeries, "price file is empty")
	}
	if err != nil {
		return domain.PriceTable{}, domain.DataError(op, domain.ErrCorruptPrice, "read header: %v", err)
	}
	if len(header) < 2 {
		return domain.PriceTable{}, domain.DataError(op, domain.ErrCorruptPrice, "header needs a date column and at least one asset")
	}

	assets := make([]string, len(header)-1)
	seen := make(map[string]bool, len(assets))
	for i, name := range header[1:] {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return domain.PriceTable{}, domain.DataError(op, domain.ErrCorruptPrice, "invalid or duplicate asset column %q", name)
		}
		seen[name] = true
		assets[i] = name
	}

	table := domain.PriceTable{Assets: assets}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.PriceTable{}, domain.DataError(op, domain.ErrCorruptPrice, "line %d: %v", line, err)
		}

		date, err := parseDate(record[0])
		if err != nil {
			return domain.PriceTable{}, domain.DataError(op, domain.ErrCorruptPrice, "line %d: invalid date %q", line, record[0])
		}
		row := make([]float64, len(assets))
		for i, cell := range record[1:] {
			p, err := parsePrice(cell)
			if err != nil {
				return domain.PriceTable{}, domain.DataError(op, domain.ErrCorruptPrice, "line %d: %s has non-numeric price %q", line, assets[i], cell)
			}
			row[i] = p
		}
		table.Dates = append(table.Dates, date)
		table.Prices = append(table.Prices, row)
	}
	return table, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

func parsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "na":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
