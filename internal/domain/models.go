// Package domain contains the core types of the fintrack valuation engine.
// The domain layer is pure: no database, HTTP or logging dependencies.
//
// All money and quantity values use shopspring decimals so that ledger replay
// is exact and repeated valuations of unchanged data produce identical totals.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetType classifies an asset.
type AssetType string

const (
	AssetTypeStock  AssetType = "STOCK"
	AssetTypeETF    AssetType = "ETF"
	AssetTypeFund   AssetType = "FUND"
	AssetTypeCrypto AssetType = "CRYPTO"
)

// PriceMode determines how an asset's current price is maintained.
type PriceMode string

const (
	PriceModeManual PriceMode = "MANUAL"
	PriceModeAuto   PriceMode = "AUTO"
)

// PriceSource identifies where the current price came from.
type PriceSource string

const (
	PriceSourceYahoo  PriceSource = "YAHOO"
	PriceSourceManual PriceSource = "MANUAL"
)

// PriceStatus records the outcome of the last price refresh for an asset.
// Empty until the first refresh cycle touches the asset.
type PriceStatus string

const (
	PriceStatusOK       PriceStatus = "OK"
	PriceStatusError    PriceStatus = "ERROR"
	PriceStatusNoTicker PriceStatus = "NO_TICKER"
)

// Asset is an instrument that can be held in the portfolio.
type Asset struct {
	ID             string
	Name           string
	Ticker         string // Empty when the asset has no quotable ticker
	ISIN           string
	Type           AssetType
	Currency       string
	CurrentPrice   *decimal.Decimal // nil until a price is known
	PriceMode      PriceMode
	PriceSource    PriceSource
	PriceStatus    PriceStatus
	IssuerCountry  string
	PriceUpdatedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TransactionType is the kind of ledger entry.
type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
	TransactionGift TransactionType = "GIFT"
)

// Transaction is an immutable ledger entry. Transactions are never mutated
// once created; corrections are recorded as new transactions. Processing
// order is (Date ascending, CreatedAt ascending), which defines FIFO
// consumption order for sells.
type Transaction struct {
	ID         string
	Date       time.Time // Date of the operation (midnight UTC)
	Type       TransactionType
	AssetID    string
	AccountID  string // Optional settlement account
	Quantity   decimal.Decimal
	Price      decimal.Decimal // Unit price; required for BUY/SELL, optional for GIFT
	Commission decimal.Decimal
	Tax        decimal.Decimal
	Notes      string
	CreatedAt  time.Time // Stable tie-break for same-day ordering
}

// Lot is a cost-basis parcel produced by ledger replay. Lots are ephemeral:
// they exist only inside a replay and are never persisted.
type Lot struct {
	Quantity decimal.Decimal // Remaining quantity
	UnitCost decimal.Decimal // Per-unit acquisition cost
}

// Cost returns the total remaining cost of the lot.
func (l Lot) Cost() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCost)
}

// RealizedSale is the realized gain/loss event emitted for one SELL
// transaction, with the cost of the specific lots it consumed.
type RealizedSale struct {
	Date      time.Time
	AssetID   string
	AssetName string
	Quantity  decimal.Decimal
	Proceeds  decimal.Decimal // quantity*price - commission - tax
	Cost      decimal.Decimal // Sum of consumed lot costs
	PnL       decimal.Decimal // Proceeds - Cost
}

// Position is a derived open holding. Positions with zero remaining quantity
// do not exist; fully closed positions vanish from the position set.
type Position struct {
	AssetID          string
	AssetName        string
	Ticker           string
	Quantity         decimal.Decimal
	Cost             decimal.Decimal
	MarketValue      decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	UnrealizedPnLPct decimal.Decimal
}

// ValuationWarning flags an asset that could not be valued cleanly
// (oversold ledger, missing price). Warnings never abort a valuation.
type ValuationWarning struct {
	AssetID   string
	AssetName string
	Message   string
}

// Valuation is the portfolio-level result consumed by both interactive
// requests and the snapshot job. Both observe identical numbers for
// identical underlying data.
type Valuation struct {
	Positions          []Position
	TotalMarketValue   decimal.Decimal
	TotalCost          decimal.Decimal
	TotalUnrealizedPnL decimal.Decimal
	Warnings           []ValuationWarning
}

// PortfolioSnapshot is a persisted point-in-time capture of portfolio totals.
// Immutable once written. "Latest" means max CapturedAt.
type PortfolioSnapshot struct {
	ID                 string
	BatchID            string
	CapturedAt         time.Time
	TotalMarketValue   decimal.Decimal
	TotalCost          decimal.Decimal
	TotalUnrealizedPnL decimal.Decimal
}

// PositionSnapshot is the per-asset capture belonging to a snapshot batch.
type PositionSnapshot struct {
	ID               string
	BatchID          string
	CapturedAt       time.Time
	AssetID          string
	Quantity         decimal.Decimal
	CostBasis        decimal.Decimal
	MarketValue      decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	UnrealizedPnLPct decimal.Decimal
}

// Account is a manually maintained cash account.
type Account struct {
	ID        string
	Name      string
	Type      string
	Currency  string
	Balance   decimal.Decimal // Synced to the latest snapshot balance
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountSnapshot is a manually entered cash balance at a date.
// One snapshot per (account, date); re-entering the same date overwrites.
type AccountSnapshot struct {
	ID        string
	AccountID string
	Date      time.Time
	Balance   decimal.Decimal
	Note      string
	CreatedAt time.Time
}

// PricePoint is one persisted daily price observation for an asset.
type PricePoint struct {
	AssetID string
	Date    time.Time
	Price   decimal.Decimal
	Source  PriceSource
}

// GiftCostMode selects the cost basis assigned to GIFT lots.
type GiftCostMode string

const (
	GiftCostZero   GiftCostMode = "ZERO"   // Gift lots enter at zero cost
	GiftCostMarket GiftCostMode = "MARKET" // Gift lots enter at the supplied market price
)

// CostBasisMethod is the lot consumption policy. Only FIFO is supported.
type CostBasisMethod string

const CostBasisFIFO CostBasisMethod = "FIFO"

// Settings is the single process-wide configuration record. It is stored as
// one row with a fixed identity and lazily created with defaults on first
// load. Mutated only through an explicit update operation.
type Settings struct {
	BaseCurrency        string
	CostBasisMethod     CostBasisMethod
	GiftCostMode        GiftCostMode
	RoundingMoney       int32 // Decimal places for money values
	RoundingQty         int32 // Decimal places for quantities
	PriceUpdateInterval int   // Auto price refresh interval in minutes, 0 = disabled
	DefaultPriceSource  PriceSource
	SnapshotFrequency   int // Snapshot frequency in minutes, 0 = disabled
}

// DefaultSettings returns the settings applied when the record is first created.
func DefaultSettings() Settings {
	return Settings{
		BaseCurrency:        "EUR",
		CostBasisMethod:     CostBasisFIFO,
		GiftCostMode:        GiftCostZero,
		RoundingMoney:       2,
		RoundingQty:         6,
		PriceUpdateInterval: 0,
		DefaultPriceSource:  PriceSourceYahoo,
		SnapshotFrequency:   1440,
	}
}
