package lending

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"isolend/core/events"
	"isolend/native/fpmath"
	"isolend/native/rates"
)

// Pool orchestrates the state transitions of one isolated market. Every
// public operation is serialized by the pool's mutex, accrues interest
// first, stages all accounting writes, persists them, and only then hands
// off to the token ledger.
type Pool struct {
	mu      sync.Mutex
	cfg     MarketConfig
	state   PoolState
	ledger  TokenLedger
	oracle  PriceSource
	model   *rates.Model
	pauses  ActionPauses
	emitter events.Emitter
	now     func() uint64
}

// NewPool constructs a pool for the given market configuration.
func NewPool(cfg MarketConfig, model *rates.Model) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if model == nil {
		return nil, errInvalidParameters
	}
	return &Pool{
		cfg:     cfg,
		model:   model.Clone(),
		emitter: events.NoopEmitter{},
		now:     func() uint64 { return uint64(time.Now().Unix()) },
	}, nil
}

// SetState wires the engine to the persistence layer.
func (p *Pool) SetState(state PoolState) { p.state = state }

// SetLedger wires the external token-transfer boundary.
func (p *Pool) SetLedger(ledger TokenLedger) { p.ledger = ledger }

// SetOracle wires the price source used for health valuation.
func (p *Pool) SetOracle(oracle PriceSource) { p.oracle = oracle }

// SetEmitter wires the event sink.
func (p *Pool) SetEmitter(emitter events.Emitter) {
	if emitter != nil {
		p.emitter = emitter
	}
}

// SetPauses replaces the per-flow pause switches.
func (p *Pool) SetPauses(pauses ActionPauses) { p.pauses = pauses }

// SetNowFunc overrides the clock, primarily for tests.
func (p *Pool) SetNowFunc(now func() uint64) {
	if now != nil {
		p.now = now
	}
}

// Config returns the market's immutable configuration.
func (p *Pool) Config() MarketConfig { return p.cfg }

// Key returns the market key.
func (p *Pool) Key() string { return p.cfg.Key }

// Deposit transfers borrow asset from the supplier into the pool and
// mints supply shares. The minted share amount is returned.
func (p *Pool) Deposit(supplier common.Address, amount *big.Int) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.guard(p.pauses.Supply); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errZeroAmount
	}
	if err := p.ensureFunds(p.cfg.BorrowToken, supplier, amount); err != nil {
		return nil, err
	}

	market, err := p.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := p.accrue(market); err != nil {
		return nil, err
	}

	// Mint 1:1 against an empty pool, otherwise pro rata rounded down so
	// the pool never over-issues.
	minted := new(big.Int).Set(amount)
	if market.TotalSupplyShares.Sign() > 0 {
		minted, err = fpmath.MulDivDown(amount, market.TotalSupplyShares, p.effectiveSupply(market))
		if err != nil {
			return nil, err
		}
	}
	if minted.Sign() == 0 {
		return nil, errZeroAmount
	}

	position, err := p.ensurePosition(supplier)
	if err != nil {
		return nil, err
	}
	position.SupplyShares = new(big.Int).Add(position.SupplyShares, minted)
	market.TotalSupplyAssets = new(big.Int).Add(market.TotalSupplyAssets, amount)
	market.TotalSupplyShares = new(big.Int).Add(market.TotalSupplyShares, minted)

	if err := p.state.PutPosition(p.cfg.Key, position); err != nil {
		return nil, err
	}
	if err := p.state.PutMarket(p.cfg.Key, market); err != nil {
		return nil, err
	}
	if err := p.ledger.Transfer(p.cfg.BorrowToken, supplier, p.cfg.Treasury, amount); err != nil {
		return nil, err
	}

	p.emitter.Emit(events.LendingSupplied{Market: p.cfg.Key, Supplier: supplier, Amount: new(big.Int).Set(amount), Shares: minted})
	return minted, nil
}

// Withdraw burns supply shares and releases the requested asset amount
// back to the supplier. The burned share amount is returned. Liquidity
// already lent out cannot be withdrawn.
func (p *Pool) Withdraw(supplier common.Address, shares *big.Int) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.guard(p.pauses.Supply); err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, errZeroAmount
	}

	market, err := p.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := p.accrue(market); err != nil {
		return nil, err
	}
	if market.TotalSupplyShares.Sign() == 0 {
		return nil, errInsufficientLiquidity
	}

	position, err := p.ensurePosition(supplier)
	if err != nil {
		return nil, err
	}
	if position.SupplyShares.Cmp(shares) < 0 {
		return nil, errInsufficientBalance
	}

	// Payout rounds down, protecting the remaining depositors.
	amount, err := fpmath.MulDivDown(shares, p.effectiveSupply(market), market.TotalSupplyShares)
	if err != nil {
		return nil, err
	}

	liquidity := availableLiquidity(market)
	if amount.Cmp(liquidity) > 0 {
		return nil, errInsufficientLiquidity
	}

	position.SupplyShares = new(big.Int).Sub(position.SupplyShares, shares)
	market.TotalSupplyAssets = new(big.Int).Sub(market.TotalSupplyAssets, amount)
	market.TotalSupplyShares = new(big.Int).Sub(market.TotalSupplyShares, shares)

	if err := p.persistPosition(position); err != nil {
		return nil, err
	}
	if err := p.state.PutMarket(p.cfg.Key, market); err != nil {
		return nil, err
	}
	if err := p.ledger.Transfer(p.cfg.BorrowToken, p.cfg.Treasury, supplier, amount); err != nil {
		return nil, err
	}

	p.emitter.Emit(events.LendingWithdrawn{Market: p.cfg.Key, Supplier: supplier, Amount: amount, Shares: new(big.Int).Set(shares)})
	return amount, nil
}

// DepositCollateral locks collateral for the caller, 1:1 with no shares.
func (p *Pool) DepositCollateral(user common.Address, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.guard(p.pauses.Supply); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errZeroAmount
	}
	if err := p.ensureFunds(p.cfg.CollateralToken, user, amount); err != nil {
		return err
	}

	market, err := p.ensureMarket()
	if err != nil {
		return err
	}
	if err := p.accrue(market); err != nil {
		return err
	}

	position, err := p.ensurePosition(user)
	if err != nil {
		return err
	}
	position.CollateralAmount = new(big.Int).Add(position.CollateralAmount, amount)
	market.TotalCollateral = new(big.Int).Add(market.TotalCollateral, amount)

	if err := p.state.PutPosition(p.cfg.Key, position); err != nil {
		return err
	}
	if err := p.state.PutMarket(p.cfg.Key, market); err != nil {
		return err
	}
	if err := p.ledger.Transfer(p.cfg.CollateralToken, user, p.cfg.Treasury, amount); err != nil {
		return err
	}

	p.emitter.Emit(events.LendingCollateralDeposited{Market: p.cfg.Key, User: user, Amount: new(big.Int).Set(amount)})
	return nil
}

// WithdrawCollateral releases collateral back to the caller provided the
// remaining position stays healthy.
func (p *Pool) WithdrawCollateral(user common.Address, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.guard(p.pauses.Borrow); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errZeroAmount
	}

	market, err := p.ensureMarket()
	if err != nil {
		return err
	}
	if err := p.accrue(market); err != nil {
		return err
	}

	position, err := p.ensurePosition(user)
	if err != nil {
		return err
	}
	if position.CollateralAmount.Cmp(amount) < 0 {
		return errInsufficientCollateral
	}

	remaining := new(big.Int).Sub(position.CollateralAmount, amount)
	healthy, err := p.healthyWith(market, remaining, position.BorrowShares)
	if err != nil {
		return err
	}
	if !healthy {
		return errWouldBeUndercollateralized
	}

	position.CollateralAmount = remaining
	market.TotalCollateral = new(big.Int).Sub(market.TotalCollateral, amount)

	if err := p.persistPosition(position); err != nil {
		return err
	}
	if err := p.state.PutMarket(p.cfg.Key, market); err != nil {
		return err
	}
	if err := p.ledger.Transfer(p.cfg.CollateralToken, p.cfg.Treasury, user, amount); err != nil {
		return err
	}

	p.emitter.Emit(events.LendingCollateralWithdrawn{Market: p.cfg.Key, User: user, Amount: new(big.Int).Set(amount)})
	return nil
}

// Borrow draws liquidity against the caller's collateral. Borrow shares
// round up so debt is never understated.
func (p *Pool) Borrow(borrower common.Address, amount *big.Int) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.guard(p.pauses.Borrow); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errZeroAmount
	}

	market, err := p.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := p.accrue(market); err != nil {
		return nil, err
	}

	if amount.Cmp(availableLiquidity(market)) > 0 {
		return nil, errInsufficientLiquidity
	}

	position, err := p.ensurePosition(borrower)
	if err != nil {
		return nil, err
	}

	minted, err := fpmath.DivUp(amount, market.BorrowIndex)
	if err != nil {
		return nil, err
	}
	projectedShares := new(big.Int).Add(position.BorrowShares, minted)

	healthy, err := p.healthyWith(market, position.CollateralAmount, projectedShares)
	if err != nil {
		return nil, err
	}
	if !healthy {
		return nil, errWouldBeUndercollateralized
	}

	position.BorrowShares = projectedShares
	market.TotalBorrowShares = new(big.Int).Add(market.TotalBorrowShares, minted)
	market.TotalBorrowAssets = new(big.Int).Add(market.TotalBorrowAssets, amount)

	if err := p.state.PutPosition(p.cfg.Key, position); err != nil {
		return nil, err
	}
	if err := p.state.PutMarket(p.cfg.Key, market); err != nil {
		return nil, err
	}
	if err := p.ledger.Transfer(p.cfg.BorrowToken, p.cfg.Treasury, borrower, amount); err != nil {
		return nil, err
	}

	p.emitter.Emit(events.LendingBorrowed{Market: p.cfg.Key, Borrower: borrower, Amount: new(big.Int).Set(amount), Shares: minted})
	return minted, nil
}

// Repay retires debt, capped at the position's outstanding amount. The
// actual amount repaid is returned.
func (p *Pool) Repay(borrower common.Address, amount *big.Int) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.guard(p.pauses.Repay); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errZeroAmount
	}

	market, err := p.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := p.accrue(market); err != nil {
		return nil, err
	}

	position, err := p.ensurePosition(borrower)
	if err != nil {
		return nil, err
	}
	if position.BorrowShares.Sign() == 0 {
		return nil, errNoDebt
	}

	debt, err := fpmath.MulUp(position.BorrowShares, market.BorrowIndex)
	if err != nil {
		return nil, err
	}
	repaid := new(big.Int).Set(amount)
	if repaid.Cmp(debt) > 0 {
		repaid.Set(debt)
	}
	if err := p.ensureFunds(p.cfg.BorrowToken, borrower, repaid); err != nil {
		return nil, err
	}

	var burned *big.Int
	if repaid.Cmp(debt) == 0 {
		burned = new(big.Int).Set(position.BorrowShares)
	} else {
		burned, err = fpmath.DivDown(repaid, market.BorrowIndex)
		if err != nil {
			return nil, err
		}
		if burned.Cmp(position.BorrowShares) > 0 {
			burned.Set(position.BorrowShares)
		}
	}

	position.BorrowShares = new(big.Int).Sub(position.BorrowShares, burned)
	market.TotalBorrowShares = new(big.Int).Sub(market.TotalBorrowShares, burned)
	market.TotalBorrowAssets = new(big.Int).Sub(market.TotalBorrowAssets, repaid)
	if market.TotalBorrowAssets.Sign() < 0 {
		market.TotalBorrowAssets = big.NewInt(0)
	}

	if err := p.persistPosition(position); err != nil {
		return nil, err
	}
	if err := p.state.PutMarket(p.cfg.Key, market); err != nil {
		return nil, err
	}
	if err := p.ledger.Transfer(p.cfg.BorrowToken, borrower, p.cfg.Treasury, repaid); err != nil {
		return nil, err
	}

	p.emitter.Emit(events.LendingRepaid{Market: p.cfg.Key, Borrower: borrower, Amount: repaid, Shares: burned})
	return repaid, nil
}

// LiquidateSeize is the liquidation hook: it reduces the borrower's debt
// and collateral and releases the seized collateral to the recipient.
// Only the configured liquidator may call it. The liquidator is expected
// to have collected the repaid debt from the executing caller before
// invoking the hook; the repayment is settled from the recipient's ledger
// balance last.
func (p *Pool) LiquidateSeize(caller common.Address, user common.Address, debtRepaid, collateralSeized *big.Int, recipient common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.cfg.Liquidator {
		return errOnlyLiquidator
	}
	if err := p.guard(p.pauses.Liquidate); err != nil {
		return err
	}
	if debtRepaid == nil || debtRepaid.Sign() <= 0 || collateralSeized == nil || collateralSeized.Sign() < 0 {
		return errZeroAmount
	}

	market, err := p.ensureMarket()
	if err != nil {
		return err
	}
	if err := p.accrue(market); err != nil {
		return err
	}

	position, err := p.ensurePosition(user)
	if err != nil {
		return err
	}
	if position.BorrowShares.Sign() == 0 {
		return errNoDebt
	}
	if position.CollateralAmount.Cmp(collateralSeized) < 0 {
		return errInsufficientCollateral
	}

	debt, err := fpmath.MulUp(position.BorrowShares, market.BorrowIndex)
	if err != nil {
		return err
	}
	repaid := new(big.Int).Set(debtRepaid)
	if repaid.Cmp(debt) > 0 {
		repaid.Set(debt)
	}
	if err := p.ensureFunds(p.cfg.BorrowToken, recipient, repaid); err != nil {
		return err
	}

	var burned *big.Int
	if repaid.Cmp(debt) == 0 {
		burned = new(big.Int).Set(position.BorrowShares)
	} else {
		burned, err = fpmath.DivDown(repaid, market.BorrowIndex)
		if err != nil {
			return err
		}
		if burned.Cmp(position.BorrowShares) > 0 {
			burned.Set(position.BorrowShares)
		}
	}

	position.BorrowShares = new(big.Int).Sub(position.BorrowShares, burned)
	position.CollateralAmount = new(big.Int).Sub(position.CollateralAmount, collateralSeized)
	market.TotalBorrowShares = new(big.Int).Sub(market.TotalBorrowShares, burned)
	market.TotalBorrowAssets = new(big.Int).Sub(market.TotalBorrowAssets, repaid)
	if market.TotalBorrowAssets.Sign() < 0 {
		market.TotalBorrowAssets = big.NewInt(0)
	}
	market.TotalCollateral = new(big.Int).Sub(market.TotalCollateral, collateralSeized)

	if err := p.persistPosition(position); err != nil {
		return err
	}
	if err := p.state.PutMarket(p.cfg.Key, market); err != nil {
		return err
	}
	if collateralSeized.Sign() > 0 {
		if err := p.ledger.Transfer(p.cfg.CollateralToken, p.cfg.Treasury, recipient, collateralSeized); err != nil {
			return err
		}
	}
	if err := p.ledger.Transfer(p.cfg.BorrowToken, recipient, p.cfg.Treasury, repaid); err != nil {
		return err
	}

	p.emitter.Emit(events.LendingPositionLiquidated{
		Market:           p.cfg.Key,
		Borrower:         user,
		Recipient:        recipient,
		DebtRepaid:       repaid,
		CollateralSeized: new(big.Int).Set(collateralSeized),
	})
	return nil
}

// WithdrawReserves pays accrued reserves out to a recipient. Restricted
// to the factory authority and bounded by idle liquidity.
func (p *Pool) WithdrawReserves(caller, recipient common.Address, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.cfg.Factory {
		return errOnlyFactory
	}
	if amount == nil || amount.Sign() <= 0 {
		return errZeroAmount
	}

	market, err := p.ensureMarket()
	if err != nil {
		return err
	}
	if err := p.accrue(market); err != nil {
		return err
	}
	if amount.Cmp(market.Reserves) > 0 || amount.Cmp(availableLiquidity(market)) > 0 {
		return errInsufficientLiquidity
	}

	market.Reserves = new(big.Int).Sub(market.Reserves, amount)
	market.TotalSupplyAssets = new(big.Int).Sub(market.TotalSupplyAssets, amount)

	if err := p.state.PutMarket(p.cfg.Key, market); err != nil {
		return err
	}
	return p.ledger.Transfer(p.cfg.BorrowToken, p.cfg.Treasury, recipient, amount)
}

// Deactivate marks the market inactive. Only the factory may call it;
// thereafter all mutating operations are refused.
func (p *Pool) Deactivate(caller common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.cfg.Factory {
		return errOnlyFactory
	}
	market, err := p.ensureMarket()
	if err != nil {
		return err
	}
	market.Active = false
	return p.state.PutMarket(p.cfg.Key, market)
}

// AccrueInterest advances the borrow index to the current time and
// persists the market. Exposed so keepers can checkpoint accrual without
// another operation.
func (p *Pool) AccrueInterest() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	market, err := p.ensureMarket()
	if err != nil {
		return err
	}
	if err := p.accrue(market); err != nil {
		return err
	}
	return p.state.PutMarket(p.cfg.Key, market)
}

// ensureFunds verifies the payer can cover a transfer before any state
// is persisted. Failures abort the operation with no partial write.
func (p *Pool) ensureFunds(token, payer common.Address, amount *big.Int) error {
	if p.ledger.BalanceOf(token, payer).Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	return nil
}

func (p *Pool) guard(paused bool) error {
	if p == nil || p.state == nil || p.ledger == nil {
		return errNilState
	}
	if paused {
		return errModulePaused
	}
	return nil
}

func (p *Pool) ensureMarket() (*Market, error) {
	if p == nil || p.state == nil {
		return nil, errNilState
	}
	market, err := p.state.GetMarket(p.cfg.Key)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, errNilMarket
	}
	market.normalize()
	if !market.Active {
		return nil, errMarketInactive
	}
	return market, nil
}

func (p *Pool) ensurePosition(user common.Address) (*Position, error) {
	position, err := p.state.GetPosition(p.cfg.Key, user)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &Position{User: user}
	}
	position.normalize()
	return position, nil
}

// persistPosition stores the position, purging it once fully closed.
func (p *Pool) persistPosition(position *Position) error {
	if position.Empty() {
		return p.state.DeletePosition(p.cfg.Key, position.User)
	}
	return p.state.PutPosition(p.cfg.Key, position)
}

// effectiveSupply is the supplier-owned portion of pool custody: total
// supply minus the protocol reserve claim.
func (p *Pool) effectiveSupply(market *Market) *big.Int {
	effective := new(big.Int).Sub(market.TotalSupplyAssets, market.Reserves)
	if effective.Sign() <= 0 {
		return big.NewInt(1)
	}
	return effective
}

func availableLiquidity(market *Market) *big.Int {
	liquidity := new(big.Int).Sub(market.TotalSupplyAssets, market.TotalBorrowAssets)
	if liquidity.Sign() < 0 {
		return big.NewInt(0)
	}
	return liquidity
}

// accrue applies simple interest over the elapsed interval, growing the
// borrow index monotonically and routing the reserve share of interest
// into the reserve bucket.
func (p *Pool) accrue(market *Market) error {
	now := p.now()
	if market.LastAccrualTime == 0 {
		market.LastAccrualTime = now
		return nil
	}
	if now <= market.LastAccrualTime {
		return nil
	}
	elapsed := now - market.LastAccrualTime
	market.LastAccrualTime = now

	if market.TotalBorrowAssets.Sign() == 0 {
		return nil
	}

	apr := p.model.BorrowRateAPR(market.TotalSupplyAssets, market.TotalBorrowAssets)
	ratePerSecond := rates.RatePerSecond(apr)
	if ratePerSecond.Sign() == 0 {
		return nil
	}

	// growth = ratePerSecond * elapsed, a WAD fraction of the principal.
	growth := new(big.Int).Mul(ratePerSecond, new(big.Int).SetUint64(elapsed))
	interest, err := fpmath.MulDown(market.TotalBorrowAssets, growth)
	if err != nil {
		return err
	}
	if interest.Sign() == 0 {
		return nil
	}

	factor := new(big.Int).Add(fpmath.WAD, growth)
	index, err := fpmath.MulDown(market.BorrowIndex, factor)
	if err != nil {
		return err
	}
	if index.Cmp(market.BorrowIndex) < 0 {
		index = market.BorrowIndex
	}
	market.BorrowIndex = index

	reserveShare, err := fpmath.MulDown(interest, p.cfg.ReserveFactor)
	if err != nil {
		return err
	}

	market.TotalBorrowAssets = new(big.Int).Add(market.TotalBorrowAssets, interest)
	market.TotalSupplyAssets = new(big.Int).Add(market.TotalSupplyAssets, interest)
	market.Reserves = new(big.Int).Add(market.Reserves, reserveShare)

	p.emitter.Emit(events.LendingInterestAccrued{
		Market:      p.cfg.Key,
		Interest:    new(big.Int).Set(interest),
		Reserves:    reserveShare,
		BorrowIndex: new(big.Int).Set(market.BorrowIndex),
		Utilization: p.model.Utilization(market.TotalSupplyAssets, market.TotalBorrowAssets),
		Elapsed:     elapsed,
	})
	return nil
}
