package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/Gonzalez8/fintrack/internal/modules/accounts"
	"github.com/Gonzalez8/fintrack/internal/modules/assets"
	"github.com/Gonzalez8/fintrack/internal/modules/ledger"
	"github.com/Gonzalez8/fintrack/internal/modules/portfolio"
	"github.com/Gonzalez8/fintrack/internal/modules/reports"
	"github.com/Gonzalez8/fintrack/internal/modules/settings"
	"github.com/Gonzalez8/fintrack/internal/modules/snapshots"
)

const dateLayout = "2006-01-02"

// Handlers bundles the API handlers. They decode, call a service or
// repository, and encode; no business logic lives here.
type Handlers struct {
	assets   *assets.Repository
	refresh  *assets.RefreshService
	ledger   *ledger.TransactionRepository
	accounts *accounts.Repository
	valuator *portfolio.Service
	snaps    *snapshots.Repository
	writer   *snapshots.Writer
	settings *settings.Repository
	reports  *reports.Service
	log      zerolog.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(
	assetRepo *assets.Repository,
	refresh *assets.RefreshService,
	ledgerRepo *ledger.TransactionRepository,
	accountRepo *accounts.Repository,
	valuator *portfolio.Service,
	snapRepo *snapshots.Repository,
	writer *snapshots.Writer,
	settingsRepo *settings.Repository,
	reportsSvc *reports.Service,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		assets:   assetRepo,
		refresh:  refresh,
		ledger:   ledgerRepo,
		accounts: accountRepo,
		valuator: valuator,
		snaps:    snapRepo,
		writer:   writer,
		settings: settingsRepo,
		reports:  reportsSvc,
		log:      log.With().Str("component", "handlers").Logger(),
	}
}

// --- assets ---

type assetPayload struct {
	ID            string  `json:"id,omitempty"`
	Name          string  `json:"name"`
	Ticker        string  `json:"ticker,omitempty"`
	ISIN          string  `json:"isin,omitempty"`
	Type          string  `json:"type,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	CurrentPrice  *string `json:"current_price,omitempty"`
	PriceMode     string  `json:"price_mode,omitempty"`
	PriceSource   string  `json:"price_source,omitempty"`
	PriceStatus   string  `json:"price_status,omitempty"`
	IssuerCountry string  `json:"issuer_country,omitempty"`
}

func assetToPayload(a domain.Asset) assetPayload {
	p := assetPayload{
		ID:            a.ID,
		Name:          a.Name,
		Ticker:        a.Ticker,
		ISIN:          a.ISIN,
		Type:          string(a.Type),
		Currency:      a.Currency,
		PriceMode:     string(a.PriceMode),
		PriceSource:   string(a.PriceSource),
		PriceStatus:   string(a.PriceStatus),
		IssuerCountry: a.IssuerCountry,
	}
	if a.CurrentPrice != nil {
		s := a.CurrentPrice.String()
		p.CurrentPrice = &s
	}
	return p
}

// HandleListAssets returns all assets.
func (h *Handlers) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	all, err := h.assets.GetAll()
	if err != nil {
		h.writeError(w, err)
		return
	}
	payloads := make([]assetPayload, 0, len(all))
	for _, a := range all {
		payloads = append(payloads, assetToPayload(a))
	}
	h.writeJSON(w, http.StatusOK, payloads)
}

// HandleCreateAsset creates an asset.
func (h *Handlers) HandleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req assetPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.writeBadRequest(w, "name is required")
		return
	}

	a := domain.Asset{
		Name:          req.Name,
		Ticker:        req.Ticker,
		ISIN:          req.ISIN,
		Type:          domain.AssetType(req.Type),
		Currency:      req.Currency,
		PriceMode:     domain.PriceMode(req.PriceMode),
		IssuerCountry: req.IssuerCountry,
	}
	// The first two ISIN letters identify the issuer country.
	if a.IssuerCountry == "" && len(a.ISIN) >= 2 {
		a.IssuerCountry = a.ISIN[:2]
	}

	created, err := h.assets.Create(a)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, assetToPayload(created))
}

// HandleGetAsset returns one asset.
func (h *Handlers) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.assets.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, assetToPayload(a))
}

// HandleSetManualPrice sets the price of a manually priced asset.
func (h *Handlers) HandleSetManualPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		h.writeBadRequest(w, "invalid price")
		return
	}

	if err := h.assets.SetManualPrice(chi.URLParam(r, "id"), price); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandlePositionHistory returns the captured position history of one asset.
func (h *Handlers) HandlePositionHistory(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 0)
	history, err := h.snaps.PositionHistory(chi.URLParam(r, "id"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	type point struct {
		CapturedAt    time.Time       `json:"captured_at"`
		Quantity      decimal.Decimal `json:"quantity"`
		CostBasis     decimal.Decimal `json:"cost_basis"`
		MarketValue   decimal.Decimal `json:"market_value"`
		UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	}
	points := make([]point, 0, len(history))
	for _, pos := range history {
		points = append(points, point{
			CapturedAt:    pos.CapturedAt,
			Quantity:      pos.Quantity,
			CostBasis:     pos.CostBasis,
			MarketValue:   pos.MarketValue,
			UnrealizedPnL: pos.UnrealizedPnL,
		})
	}
	h.writeJSON(w, http.StatusOK, points)
}

// HandlePriceHistory returns one asset's stored daily prices.
func (h *Handlers) HandlePriceHistory(w http.ResponseWriter, r *http.Request) {
	points, err := h.assets.PriceHistory(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	type point struct {
		Date   string          `json:"date"`
		Price  decimal.Decimal `json:"price"`
		Source string          `json:"source"`
	}
	out := make([]point, 0, len(points))
	for _, p := range points {
		out = append(out, point{
			Date:   p.Date.Format(dateLayout),
			Price:  p.Price,
			Source: string(p.Source),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleRefreshPrices runs a price refresh cycle for auto-priced assets.
func (h *Handlers) HandleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	result, err := h.refresh.Refresh(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// --- transactions ---

type transactionPayload struct {
	ID         string `json:"id,omitempty"`
	Date       string `json:"date"`
	Type       string `json:"type"`
	AssetID    string `json:"asset_id"`
	AccountID  string `json:"account_id,omitempty"`
	Quantity   string `json:"quantity"`
	Price      string `json:"price,omitempty"`
	Commission string `json:"commission,omitempty"`
	Tax        string `json:"tax,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// HandleListTransactions returns the ledger in processing order.
func (h *Handlers) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.ledger.GetAll()
	if err != nil {
		h.writeError(w, err)
		return
	}
	payloads := make([]transactionPayload, 0, len(txs))
	for _, tx := range txs {
		payloads = append(payloads, transactionPayload{
			ID:         tx.ID,
			Date:       tx.Date.Format(dateLayout),
			Type:       string(tx.Type),
			AssetID:    tx.AssetID,
			AccountID:  tx.AccountID,
			Quantity:   tx.Quantity.String(),
			Price:      tx.Price.String(),
			Commission: tx.Commission.String(),
			Tax:        tx.Tax.String(),
			Notes:      tx.Notes,
		})
	}
	h.writeJSON(w, http.StatusOK, payloads)
}

// HandleCreateTransaction appends a ledger entry.
func (h *Handlers) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		h.writeBadRequest(w, "invalid date, expected YYYY-MM-DD")
		return
	}

	tx := domain.Transaction{
		Date:      date,
		Type:      domain.TransactionType(req.Type),
		AssetID:   req.AssetID,
		AccountID: req.AccountID,
		Notes:     req.Notes,
	}
	if tx.Quantity, err = decimal.NewFromString(req.Quantity); err != nil {
		h.writeBadRequest(w, "invalid quantity")
		return
	}
	if tx.Price, err = optionalDecimal(req.Price); err != nil {
		h.writeBadRequest(w, "invalid price")
		return
	}
	if tx.Commission, err = optionalDecimal(req.Commission); err != nil {
		h.writeBadRequest(w, "invalid commission")
		return
	}
	if tx.Tax, err = optionalDecimal(req.Tax); err != nil {
		h.writeBadRequest(w, "invalid tax")
		return
	}

	created, err := h.ledger.Create(tx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	req.ID = created.ID
	h.writeJSON(w, http.StatusCreated, req)
}

// --- accounts ---

// HandleListAccounts returns all cash accounts.
func (h *Handlers) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	all, err := h.accounts.GetAll()
	if err != nil {
		h.writeError(w, err)
		return
	}

	type payload struct {
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		Type     string          `json:"type"`
		Currency string          `json:"currency"`
		Balance  decimal.Decimal `json:"balance"`
	}
	out := make([]payload, 0, len(all))
	for _, a := range all {
		out = append(out, payload{ID: a.ID, Name: a.Name, Type: a.Type, Currency: a.Currency, Balance: a.Balance})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleCreateAccount creates a cash account.
func (h *Handlers) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.writeBadRequest(w, "name is required")
		return
	}

	created, err := h.accounts.Create(domain.Account{Name: req.Name, Type: req.Type, Currency: req.Currency})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": created.ID})
}

type accountSnapshotPayload struct {
	AccountID string `json:"account_id"`
	Date      string `json:"date"`
	Balance   string `json:"balance"`
	Note      string `json:"note,omitempty"`
}

func (p accountSnapshotPayload) toDomain() (domain.AccountSnapshot, error) {
	date, err := time.Parse(dateLayout, p.Date)
	if err != nil {
		return domain.AccountSnapshot{}, errors.New("invalid date, expected YYYY-MM-DD")
	}
	balance, err := decimal.NewFromString(p.Balance)
	if err != nil {
		return domain.AccountSnapshot{}, errors.New("invalid balance")
	}
	return domain.AccountSnapshot{
		AccountID: p.AccountID,
		Date:      date,
		Balance:   balance,
		Note:      p.Note,
	}, nil
}

// HandleListAccountSnapshots returns one account's balance history.
func (h *Handlers) HandleListAccountSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.accounts.Snapshots(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]accountSnapshotPayload, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, accountSnapshotPayload{
			AccountID: s.AccountID,
			Date:      s.Date.Format(dateLayout),
			Balance:   s.Balance.String(),
			Note:      s.Note,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleUpsertAccountSnapshot records one balance entry.
func (h *Handlers) HandleUpsertAccountSnapshot(w http.ResponseWriter, r *http.Request) {
	var req accountSnapshotPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}
	snap, err := req.toDomain()
	if err != nil {
		h.writeBadRequest(w, err.Error())
		return
	}

	created, err := h.accounts.UpsertSnapshot(snap)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": created.ID})
}

// HandleBulkAccountSnapshots records many balance entries atomically.
func (h *Handlers) HandleBulkAccountSnapshots(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Snapshots []accountSnapshotPayload `json:"snapshots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Snapshots) == 0 {
		h.writeBadRequest(w, "snapshots is empty")
		return
	}

	snaps := make([]domain.AccountSnapshot, 0, len(req.Snapshots))
	for _, p := range req.Snapshots {
		snap, err := p.toDomain()
		if err != nil {
			h.writeBadRequest(w, err.Error())
			return
		}
		snaps = append(snaps, snap)
	}

	created, err := h.accounts.BulkUpsertSnapshots(snaps)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int{"count": len(created)})
}

// --- portfolio and snapshots ---

type positionPayload struct {
	AssetID          string          `json:"asset_id"`
	AssetName        string          `json:"asset_name"`
	Ticker           string          `json:"ticker,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	Cost             decimal.Decimal `json:"cost"`
	MarketValue      decimal.Decimal `json:"market_value"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPct decimal.Decimal `json:"unrealized_pnl_pct"`
}

type valuationPayload struct {
	Positions          []positionPayload         `json:"positions"`
	TotalMarketValue   decimal.Decimal           `json:"total_market_value"`
	TotalCost          decimal.Decimal           `json:"total_cost"`
	TotalUnrealizedPnL decimal.Decimal           `json:"total_unrealized_pnl"`
	Warnings           []domain.ValuationWarning `json:"warnings,omitempty"`
}

// HandleValuation returns the live portfolio valuation.
func (h *Handlers) HandleValuation(w http.ResponseWriter, r *http.Request) {
	valuation, err := h.valuator.Valuate()
	if err != nil {
		h.writeError(w, err)
		return
	}

	payload := valuationPayload{
		Positions:          make([]positionPayload, 0, len(valuation.Positions)),
		TotalMarketValue:   valuation.TotalMarketValue,
		TotalCost:          valuation.TotalCost,
		TotalUnrealizedPnL: valuation.TotalUnrealizedPnL,
		Warnings:           valuation.Warnings,
	}
	for _, pos := range valuation.Positions {
		payload.Positions = append(payload.Positions, positionPayload{
			AssetID:          pos.AssetID,
			AssetName:        pos.AssetName,
			Ticker:           pos.Ticker,
			Quantity:         pos.Quantity,
			Cost:             pos.Cost,
			MarketValue:      pos.MarketValue,
			UnrealizedPnL:    pos.UnrealizedPnL,
			UnrealizedPnLPct: pos.UnrealizedPnLPct,
		})
	}
	h.writeJSON(w, http.StatusOK, payload)
}

type snapshotPayload struct {
	BatchID            string          `json:"batch_id"`
	CapturedAt         time.Time       `json:"captured_at"`
	TotalMarketValue   decimal.Decimal `json:"total_market_value"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	TotalUnrealizedPnL decimal.Decimal `json:"total_unrealized_pnl"`
}

func snapshotToPayload(s domain.PortfolioSnapshot) snapshotPayload {
	return snapshotPayload{
		BatchID:            s.BatchID,
		CapturedAt:         s.CapturedAt,
		TotalMarketValue:   s.TotalMarketValue,
		TotalCost:          s.TotalCost,
		TotalUnrealizedPnL: s.TotalUnrealizedPnL,
	}
}

// HandleLatestSnapshot returns the most recent portfolio snapshot.
func (h *Handlers) HandleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	latest, err := h.snaps.Latest()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if latest == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshots yet"})
		return
	}
	h.writeJSON(w, http.StatusOK, snapshotToPayload(*latest))
}

// HandleSnapshotHistory returns snapshots newest first.
func (h *Handlers) HandleSnapshotHistory(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 0)
	history, err := h.snaps.History(limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]snapshotPayload, 0, len(history))
	for _, s := range history {
		out = append(out, snapshotToPayload(s))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleSnapshotCheck forces a snapshot writer run, bypassing the frequency
// check but not the dedup or integrity guards.
func (h *Handlers) HandleSnapshotCheck(w http.ResponseWriter, r *http.Request) {
	result, err := h.writer.Run()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// --- reports ---

// HandleRealizedPnL returns realized P&L, grouped by year or, with ?year=,
// the individual sales of one year.
func (h *Handlers) HandleRealizedPnL(w http.ResponseWriter, r *http.Request) {
	year := intQuery(r, "year", 0)
	if year == 0 {
		years, err := h.reports.RealizedByYear()
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, years)
		return
	}

	sales, err := h.reports.RealizedSales(year)
	if err != nil {
		h.writeError(w, err)
		return
	}

	type salePayload struct {
		Date      string          `json:"date"`
		AssetID   string          `json:"asset_id"`
		AssetName string          `json:"asset_name"`
		Quantity  decimal.Decimal `json:"quantity"`
		Proceeds  decimal.Decimal `json:"proceeds"`
		Cost      decimal.Decimal `json:"cost"`
		PnL       decimal.Decimal `json:"pnl"`
	}
	out := make([]salePayload, 0, len(sales))
	for _, s := range sales {
		out = append(out, salePayload{
			Date:      s.Date.Format(dateLayout),
			AssetID:   s.AssetID,
			AssetName: s.AssetName,
			Quantity:  s.Quantity,
			Proceeds:  s.Proceeds,
			Cost:      s.Cost,
			PnL:       s.PnL,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleEvolution returns the month-end net worth series.
func (h *Handlers) HandleEvolution(w http.ResponseWriter, r *http.Request) {
	series, err := h.reports.Evolution()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, series)
}

// --- settings ---

type settingsPayload struct {
	BaseCurrency        string `json:"base_currency"`
	CostBasisMethod     string `json:"cost_basis_method"`
	GiftCostMode        string `json:"gift_cost_mode"`
	RoundingMoney       int32  `json:"rounding_money"`
	RoundingQty         int32  `json:"rounding_qty"`
	PriceUpdateInterval int    `json:"price_update_interval"`
	DefaultPriceSource  string `json:"default_price_source"`
	SnapshotFrequency   int    `json:"snapshot_frequency"`
}

// HandleGetSettings returns the configuration record.
func (h *Handlers) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Load()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, settingsPayload{
		BaseCurrency:        cfg.BaseCurrency,
		CostBasisMethod:     string(cfg.CostBasisMethod),
		GiftCostMode:        string(cfg.GiftCostMode),
		RoundingMoney:       cfg.RoundingMoney,
		RoundingQty:         cfg.RoundingQty,
		PriceUpdateInterval: cfg.PriceUpdateInterval,
		DefaultPriceSource:  string(cfg.DefaultPriceSource),
		SnapshotFrequency:   cfg.SnapshotFrequency,
	})
}

// HandleUpdateSettings overwrites the configuration record.
func (h *Handlers) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.GiftCostMode != string(domain.GiftCostZero) && req.GiftCostMode != string(domain.GiftCostMarket) {
		h.writeBadRequest(w, "gift_cost_mode must be ZERO or MARKET")
		return
	}
	if req.CostBasisMethod != string(domain.CostBasisFIFO) {
		h.writeBadRequest(w, "cost_basis_method must be FIFO")
		return
	}

	err := h.settings.Update(domain.Settings{
		BaseCurrency:        req.BaseCurrency,
		CostBasisMethod:     domain.CostBasisMethod(req.CostBasisMethod),
		GiftCostMode:        domain.GiftCostMode(req.GiftCostMode),
		RoundingMoney:       req.RoundingMoney,
		RoundingQty:         req.RoundingQty,
		PriceUpdateInterval: req.PriceUpdateInterval,
		DefaultPriceSource:  domain.PriceSource(req.DefaultPriceSource),
		SnapshotFrequency:   req.SnapshotFrequency,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handlers) writeBadRequest(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrManualPriceMode),
		errors.Is(err, domain.ErrInvalidPriceValue),
		errors.Is(err, domain.ErrInsufficientLots):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("Request failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func optionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func intQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
