package portfolio

import (
	"sort"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/shopspring/decimal"
)

// YearPnL is the realized result for one calendar year.
type YearPnL struct {
	Year  int             `json:"year"`
	Sales int             `json:"sales"`
	PnL   decimal.Decimal `json:"pnl"`
}

// FilterSalesByYear returns the sales that settled in the given year.
// A zero year returns the input unchanged.
func FilterSalesByYear(sales []domain.RealizedSale, year int) []domain.RealizedSale {
	if year == 0 {
		return sales
	}
	var filtered []domain.RealizedSale
	for _, s := range sales {
		if s.Date.Year() == year {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// GroupSalesByYear aggregates realized P&L per calendar year, ordered by year.
func GroupSalesByYear(sales []domain.RealizedSale) []YearPnL {
	byYear := make(map[int]*YearPnL)
	for _, s := range sales {
		y := s.Date.Year()
		entry, ok := byYear[y]
		if !ok {
			entry = &YearPnL{Year: y, PnL: decimal.Zero}
			byYear[y] = entry
		}
		entry.Sales++
		entry.PnL = entry.PnL.Add(s.PnL)
	}

	result := make([]YearPnL, 0, len(byYear))
	for _, entry := range byYear {
		result = append(result, *entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Year < result[j].Year })
	return result
}
