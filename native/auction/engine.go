package auction

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"isolend/core/events"
	"isolend/native/fpmath"
	"isolend/native/lending"
)

// Engine runs Dutch auctions over the pools registered with it. It holds
// the liquidator authority each pool was configured with and serializes
// its own operations; pools are driven strictly through their seize hook.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	addr    common.Address
	state   State
	oracle  lending.PriceSource
	pools   map[string]Pool
	emitter events.Emitter
	paused  bool
	now     func() uint64
}

// NewEngine constructs an auction engine acting under the given
// liquidator address.
func NewEngine(cfg Config, addr common.Address) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg: Config{
			Duration:     cfg.Duration,
			StartPremium: new(big.Int).Set(cfg.StartPremium),
			EndDiscount:  new(big.Int).Set(cfg.EndDiscount),
			CloseFactor:  new(big.Int).Set(cfg.CloseFactor),
		},
		addr:    addr,
		pools:   make(map[string]Pool),
		emitter: events.NoopEmitter{},
		now:     func() uint64 { return uint64(time.Now().Unix()) },
	}, nil
}

// SetState wires the persistence layer.
func (e *Engine) SetState(state State) { e.state = state }

// SetOracle wires the price source used for auction pricing.
func (e *Engine) SetOracle(oracle lending.PriceSource) { e.oracle = oracle }

// SetEmitter wires the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter != nil {
		e.emitter = emitter
	}
}

// SetPaused toggles the liquidation pause switch.
func (e *Engine) SetPaused(paused bool) { e.paused = paused }

// SetNowFunc overrides the clock, primarily for tests.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now != nil {
		e.now = now
	}
}

// Address returns the liquidator authority the engine acts under.
func (e *Engine) Address() common.Address { return e.addr }

// Config returns a copy of the auction configuration.
func (e *Engine) Config() Config {
	return Config{
		Duration:     e.cfg.Duration,
		StartPremium: new(big.Int).Set(e.cfg.StartPremium),
		EndDiscount:  new(big.Int).Set(e.cfg.EndDiscount),
		CloseFactor:  new(big.Int).Set(e.cfg.CloseFactor),
	}
}

// RegisterPool makes a pool eligible for liquidation through this engine.
func (e *Engine) RegisterPool(pool Pool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pools[pool.Key()] = pool
}

// StartAuction opens a Dutch auction for an unhealthy position. The debt
// put up for repayment is the outstanding debt scaled by the close
// factor; the collateral offered covers that debt plus the liquidation
// penalty at current oracle prices, capped at the user's balance.
func (e *Engine) StartAuction(market string, user common.Address) (*Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, err
	}
	pool, ok := e.pools[market]
	if !ok {
		return nil, ErrUnknownPool
	}

	if _, exists, err := e.state.ActiveAuction(market, user); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAuctionAlreadyExists
	}

	liquidatable, err := pool.IsLiquidatable(user)
	if err != nil {
		return nil, err
	}
	if !liquidatable {
		return nil, ErrPositionNotLiquidatable
	}

	debt, err := pool.DebtOf(user)
	if err != nil {
		return nil, err
	}
	debtToRepay, err := fpmath.MulUp(debt, e.cfg.CloseFactor)
	if err != nil {
		return nil, err
	}
	if debtToRepay.Cmp(debt) > 0 {
		debtToRepay.Set(debt)
	}
	if debtToRepay.Sign() == 0 {
		return nil, ErrPositionNotLiquidatable
	}

	cfg := pool.Config()
	collateralPrice, err := e.oracle.GetPrice(cfg.CollateralToken)
	if err != nil {
		return nil, err
	}
	borrowPrice, err := e.oracle.GetPrice(cfg.BorrowToken)
	if err != nil {
		return nil, err
	}

	// Offer collateral worth debtToRepay plus the penalty bonus.
	debtValue, err := tokenValue(debtToRepay, borrowPrice, cfg.BorrowDecimals)
	if err != nil {
		return nil, err
	}
	bonus := new(big.Int).Add(fpmath.WAD, cfg.LiquidationPenalty)
	targetValue, err := fpmath.MulUp(debtValue, bonus)
	if err != nil {
		return nil, err
	}
	collateralForSale, err := tokenAmount(targetValue, collateralPrice, cfg.CollateralDecimals)
	if err != nil {
		return nil, err
	}
	position, err := pool.Position(user)
	if err != nil {
		return nil, err
	}
	if collateralForSale.Cmp(position.CollateralAmount) > 0 {
		collateralForSale.Set(position.CollateralAmount)
	}

	startPrice, err := fpmath.MulDown(collateralPrice, new(big.Int).Add(fpmath.WAD, e.cfg.StartPremium))
	if err != nil {
		return nil, err
	}
	endPrice, err := fpmath.MulDown(collateralPrice, new(big.Int).Sub(fpmath.WAD, e.cfg.EndDiscount))
	if err != nil {
		return nil, err
	}

	id, err := e.state.NextAuctionID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	record := &Auction{
		ID:                id,
		Market:            market,
		User:              user,
		DebtToRepay:       debtToRepay,
		CollateralForSale: collateralForSale,
		StartPrice:        startPrice,
		EndPrice:          endPrice,
		StartTime:         now,
		EndTime:           now + e.cfg.Duration,
		Status:            StatusActive,
	}
	if err := e.state.PutAuction(record); err != nil {
		return nil, err
	}
	if err := e.state.SetActiveAuction(market, user, id); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.AuctionStarted{
		AuctionID:         id,
		Market:            market,
		User:              user,
		DebtToRepay:       new(big.Int).Set(debtToRepay),
		CollateralForSale: new(big.Int).Set(collateralForSale),
		StartPrice:        new(big.Int).Set(startPrice),
		EndPrice:          new(big.Int).Set(endPrice),
		StartTime:         record.StartTime,
		EndTime:           record.EndTime,
	})
	return record.clone(), nil
}

// GetCurrentPrice returns the decayed collateral price for an active
// auction: linear from startPrice to endPrice over the duration, then
// flat at endPrice.
func (e *Engine) GetCurrentPrice(id uint64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, err := e.loadAuction(id)
	if err != nil {
		return nil, err
	}
	if !record.Active() {
		return nil, ErrAuctionNotActive
	}
	return e.priceAt(record, e.now())
}

// Liquidate fills an active, unexpired auction. The caller repays up to
// maxDebtToRepay of the auctioned debt and receives collateral valued at
// the current decayed price, capped at the remaining allocation. Returns
// the debt repaid and collateral received.
func (e *Engine) Liquidate(caller common.Address, id uint64, maxDebtToRepay *big.Int) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, nil, err
	}
	if maxDebtToRepay == nil || maxDebtToRepay.Sign() <= 0 {
		return nil, nil, ErrInsufficientRepayment
	}

	record, err := e.loadAuction(id)
	if err != nil {
		return nil, nil, err
	}
	if !record.Active() {
		return nil, nil, ErrAuctionNotActive
	}
	now := e.now()
	if now > record.EndTime {
		return nil, nil, ErrAuctionExpired
	}
	pool, ok := e.pools[record.Market]
	if !ok {
		return nil, nil, ErrUnknownPool
	}

	debtRepaid := new(big.Int).Set(maxDebtToRepay)
	if debtRepaid.Cmp(record.DebtToRepay) > 0 {
		debtRepaid.Set(record.DebtToRepay)
	}

	price, err := e.priceAt(record, now)
	if err != nil {
		return nil, nil, err
	}
	cfg := pool.Config()
	borrowPrice, err := e.oracle.GetPrice(cfg.BorrowToken)
	if err != nil {
		return nil, nil, err
	}
	debtValue, err := tokenValue(debtRepaid, borrowPrice, cfg.BorrowDecimals)
	if err != nil {
		return nil, nil, err
	}
	collateralReceived, err := tokenAmount(debtValue, price, cfg.CollateralDecimals)
	if err != nil {
		return nil, nil, err
	}
	if collateralReceived.Cmp(record.CollateralForSale) > 0 {
		// The remaining allocation cannot cover the full repayment at the
		// decayed price; the filler only pays for what is actually sold.
		collateralReceived.Set(record.CollateralForSale)
		soldValue, err := tokenValue(collateralReceived, price, cfg.CollateralDecimals)
		if err != nil {
			return nil, nil, err
		}
		debtRepaid, err = tokenAmount(soldValue, borrowPrice, cfg.BorrowDecimals)
		if err != nil {
			return nil, nil, err
		}
		if debtRepaid.Cmp(record.DebtToRepay) > 0 {
			debtRepaid.Set(record.DebtToRepay)
		}
		if debtRepaid.Sign() == 0 {
			return nil, nil, ErrInsufficientRepayment
		}
	}

	// The pool seize validates the filler's funds before writing anything,
	// so the auction decrement is only recorded once the settlement holds.
	if err := pool.LiquidateSeize(e.addr, record.User, debtRepaid, collateralReceived, caller); err != nil {
		return nil, nil, err
	}

	record.DebtToRepay = new(big.Int).Sub(record.DebtToRepay, debtRepaid)
	record.CollateralForSale = new(big.Int).Sub(record.CollateralForSale, collateralReceived)
	// Collateral exhaustion also settles: any residual debt stays on the
	// position and a fresh auction cannot sell what is no longer there.
	settled := record.DebtToRepay.Sign() == 0 || record.CollateralForSale.Sign() == 0
	if settled {
		record.Status = StatusSettled
	}
	if err := e.state.PutAuction(record); err != nil {
		return nil, nil, err
	}
	if settled {
		if err := e.state.ClearActiveAuction(record.Market, record.User); err != nil {
			return nil, nil, err
		}
	}

	e.emitter.Emit(events.AuctionLiquidated{
		AuctionID:          id,
		Market:             record.Market,
		User:               record.User,
		Liquidator:         caller,
		DebtRepaid:         new(big.Int).Set(debtRepaid),
		CollateralReceived: new(big.Int).Set(collateralReceived),
		Price:              price,
	})
	if settled {
		e.emitter.Emit(events.AuctionSettled{AuctionID: id, Market: record.Market, User: record.User})
	}
	return debtRepaid, collateralReceived, nil
}

// CancelExpiredAuction removes an auction whose window has fully lapsed,
// freeing the (market, user) slot for a freshly priced auction. Callable
// by anyone.
func (e *Engine) CancelExpiredAuction(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return ErrNilState
	}
	record, err := e.loadAuction(id)
	if err != nil {
		return err
	}
	if !record.Active() {
		return ErrAuctionNotActive
	}
	if e.now() <= record.EndTime {
		return ErrAuctionNotExpired
	}

	record.Status = StatusCancelled
	if err := e.state.PutAuction(record); err != nil {
		return err
	}
	if err := e.state.ClearActiveAuction(record.Market, record.User); err != nil {
		return err
	}
	e.emitter.Emit(events.AuctionCancelled{AuctionID: id, Market: record.Market, User: record.User})
	return nil
}

// Auction returns a copy of the stored auction record.
func (e *Engine) Auction(id uint64) (*Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, err := e.loadAuction(id)
	if err != nil {
		return nil, err
	}
	return record.clone(), nil
}

// Auctions enumerates every stored auction.
func (e *Engine) Auctions() ([]*Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, ErrNilState
	}
	records, err := e.state.ListAuctions()
	if err != nil {
		return nil, err
	}
	out := make([]*Auction, 0, len(records))
	for _, record := range records {
		record.normalize()
		out = append(out, record.clone())
	}
	return out, nil
}

func (e *Engine) guard() error {
	if e.state == nil || e.oracle == nil {
		return ErrNilState
	}
	if e.paused {
		return ErrModulePaused
	}
	return nil
}

func (e *Engine) loadAuction(id uint64) (*Auction, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	record, err := e.state.GetAuction(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrUnknownAuction
	}
	record.normalize()
	return record, nil
}

// priceAt interpolates the auction price linearly between start and end.
func (e *Engine) priceAt(record *Auction, now uint64) (*big.Int, error) {
	if now <= record.StartTime {
		return new(big.Int).Set(record.StartPrice), nil
	}
	duration := record.EndTime - record.StartTime
	elapsed := now - record.StartTime
	if duration == 0 || elapsed >= duration {
		return new(big.Int).Set(record.EndPrice), nil
	}
	span := new(big.Int).Sub(record.StartPrice, record.EndPrice)
	decay := new(big.Int).Mul(span, new(big.Int).SetUint64(elapsed))
	decay.Quo(decay, new(big.Int).SetUint64(duration))
	return new(big.Int).Sub(record.StartPrice, decay), nil
}

// tokenValue prices a raw token amount into WAD USD.
func tokenValue(amount, price *big.Int, decimals uint8) (*big.Int, error) {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return fpmath.MulDivDown(amount, price, unit)
}

// tokenAmount converts a WAD USD value back into raw token units at the
// given price.
func tokenAmount(value, price *big.Int, decimals uint8) (*big.Int, error) {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return fpmath.MulDivDown(value, unit, price)
}
