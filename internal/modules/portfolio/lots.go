// Package portfolio derives open positions, realized gains and portfolio
// totals from the transaction ledger by FIFO cost-basis replay.
package portfolio

import (
	"fmt"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/shopspring/decimal"
)

// ReplayResult is the outcome of replaying one asset's full history.
type ReplayResult struct {
	Lots  []domain.Lot          // Remaining lot queue, oldest first
	Sales []domain.RealizedSale // One event per SELL transaction
}

// RemainingQuantity sums the remaining lot quantities.
func (r ReplayResult) RemainingQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range r.Lots {
		total = total.Add(lot.Quantity)
	}
	return total
}

// RemainingCost sums the remaining lot costs.
func (r ReplayResult) RemainingCost() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range r.Lots {
		total = total.Add(lot.Cost())
	}
	return total
}

// Replay runs one asset's ordered transaction history through the FIFO lot
// queue. The input must already be in ledger order (date ascending, creation
// timestamp ascending); callers get that from the transaction repository.
//
// BUY pushes a lot whose unit cost amortizes commission and tax:
// price + (commission+tax)/quantity. GIFT pushes a lot at zero cost (ZERO
// mode) or at the supplied market price (MARKET mode, no fee amortization:
// gift rows carry no fees). SELL consumes from the front of the queue and
// emits exactly one realized-sale event.
//
// A SELL that requests more quantity than the queue holds returns
// domain.ErrInsufficientLots. The queue state never goes negative.
func Replay(txs []domain.Transaction, giftMode domain.GiftCostMode) (ReplayResult, error) {
	var res ReplayResult

	for _, tx := range txs {
		switch tx.Type {
		case domain.TransactionBuy:
			fees := tx.Commission.Add(tx.Tax)
			unitCost := tx.Price.Add(fees.Div(tx.Quantity))
			res.Lots = append(res.Lots, domain.Lot{Quantity: tx.Quantity, UnitCost: unitCost})

		case domain.TransactionGift:
			unitCost := decimal.Zero
			if giftMode == domain.GiftCostMarket {
				unitCost = tx.Price
			}
			res.Lots = append(res.Lots, domain.Lot{Quantity: tx.Quantity, UnitCost: unitCost})

		case domain.TransactionSell:
			cost, err := consume(&res.Lots, tx.Quantity)
			if err != nil {
				return ReplayResult{}, fmt.Errorf("sell of %s on %s: %w",
					tx.Quantity.String(), tx.Date.Format("2006-01-02"), err)
			}
			proceeds := tx.Quantity.Mul(tx.Price).Sub(tx.Commission).Sub(tx.Tax)
			res.Sales = append(res.Sales, domain.RealizedSale{
				Date:     tx.Date,
				AssetID:  tx.AssetID,
				Quantity: tx.Quantity,
				Proceeds: proceeds,
				Cost:     cost,
				PnL:      proceeds.Sub(cost),
			})

		default:
			return ReplayResult{}, fmt.Errorf("unknown transaction type %q", tx.Type)
		}
	}

	return res, nil
}

// consume takes the required quantity from the front of the lot queue and
// returns the summed cost of what was consumed. The queue is only modified
// when the full quantity is available.
func consume(lots *[]domain.Lot, required decimal.Decimal) (decimal.Decimal, error) {
	available := decimal.Zero
	for _, lot := range *lots {
		available = available.Add(lot.Quantity)
	}
	if required.GreaterThan(available) {
		return decimal.Zero, fmt.Errorf("%w: need %s, have %s",
			domain.ErrInsufficientLots, required.String(), available.String())
	}

	cost := decimal.Zero
	queue := *lots
	for required.IsPositive() {
		front := &queue[0]
		consumed := decimal.Min(required, front.Quantity)
		cost = cost.Add(consumed.Mul(front.UnitCost))
		front.Quantity = front.Quantity.Sub(consumed)
		required = required.Sub(consumed)
		if front.Quantity.IsZero() {
			queue = queue[1:]
		}
	}
	*lots = queue
	return cost, nil
}
