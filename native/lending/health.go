package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"isolend/native/fpmath"
)

// HealthFactor values the user's position at current oracle prices and
// returns collateralValue*liquidationThreshold/debtValue as a WAD ratio.
// Debt-free positions report MaxHealthFactor.
func (p *Pool) HealthFactor(user common.Address) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthFactorOf(user)
}

// IsLiquidatable reports whether the user's health factor is below 1.
func (p *Pool) IsLiquidatable(user common.Address) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	hf, err := p.healthFactorOf(user)
	if err != nil {
		return false, err
	}
	return hf.Cmp(fpmath.WAD) < 0, nil
}

func (p *Pool) healthFactorOf(user common.Address) (*big.Int, error) {
	market, err := p.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := p.accrue(market); err != nil {
		return nil, err
	}
	if err := p.state.PutMarket(p.cfg.Key, market); err != nil {
		return nil, err
	}
	position, err := p.ensurePosition(user)
	if err != nil {
		return nil, err
	}
	return p.healthFactor(market, position.CollateralAmount, position.BorrowShares)
}

// Position returns a copy of the user's position after accrual.
func (p *Pool) Position(user common.Address) (*Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	market, err := p.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := p.accrue(market); err != nil {
		return nil, err
	}
	if err := p.state.PutMarket(p.cfg.Key, market); err != nil {
		return nil, err
	}
	position, err := p.ensurePosition(user)
	if err != nil {
		return nil, err
	}
	return &Position{
		User:             position.User,
		SupplyShares:     new(big.Int).Set(position.SupplyShares),
		CollateralAmount: new(big.Int).Set(position.CollateralAmount),
		BorrowShares:     new(big.Int).Set(position.BorrowShares),
	}, nil
}

// Positions enumerates every open position in the market after accrual.
func (p *Pool) Positions() ([]*Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	market, err := p.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := p.accrue(market); err != nil {
		return nil, err
	}
	if err := p.state.PutMarket(p.cfg.Key, market); err != nil {
		return nil, err
	}
	positions, err := p.state.ListPositions(p.cfg.Key)
	if err != nil {
		return nil, err
	}
	for _, position := range positions {
		position.normalize()
	}
	return positions, nil
}

// DebtOf converts the user's borrow shares into current debt, rounded up.
func (p *Pool) DebtOf(user common.Address) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	market, err := p.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := p.accrue(market); err != nil {
		return nil, err
	}
	if err := p.state.PutMarket(p.cfg.Key, market); err != nil {
		return nil, err
	}
	position, err := p.ensurePosition(user)
	if err != nil {
		return nil, err
	}
	if position.BorrowShares.Sign() == 0 {
		return big.NewInt(0), nil
	}
	return fpmath.MulUp(position.BorrowShares, market.BorrowIndex)
}

// Snapshot returns a copy of the market after accrual, for read surfaces.
func (p *Pool) Snapshot() (*Market, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	market, err := p.ensureMarket()
	if err != nil {
		return nil, err
	}
	if err := p.accrue(market); err != nil {
		return nil, err
	}
	if err := p.state.PutMarket(p.cfg.Key, market); err != nil {
		return nil, err
	}
	return &Market{
		TotalSupplyAssets: new(big.Int).Set(market.TotalSupplyAssets),
		TotalSupplyShares: new(big.Int).Set(market.TotalSupplyShares),
		TotalBorrowAssets: new(big.Int).Set(market.TotalBorrowAssets),
		TotalBorrowShares: new(big.Int).Set(market.TotalBorrowShares),
		TotalCollateral:   new(big.Int).Set(market.TotalCollateral),
		Reserves:          new(big.Int).Set(market.Reserves),
		BorrowIndex:       new(big.Int).Set(market.BorrowIndex),
		LastAccrualTime:   market.LastAccrualTime,
		Active:            market.Active,
	}, nil
}

// healthFactor computes collateralValue*threshold/debtValue with both
// legs valued in WAD USD at current oracle prices.
func (p *Pool) healthFactor(market *Market, collateral, borrowShares *big.Int) (*big.Int, error) {
	if borrowShares.Sign() == 0 {
		return new(big.Int).Set(MaxHealthFactor), nil
	}
	if collateral.Sign() == 0 {
		return big.NewInt(0), nil
	}

	collateralValue, err := p.tokenValue(p.cfg.CollateralToken, collateral, p.cfg.CollateralDecimals)
	if err != nil {
		return nil, err
	}
	debt, err := fpmath.MulUp(borrowShares, market.BorrowIndex)
	if err != nil {
		return nil, err
	}
	debtValue, err := p.tokenValue(p.cfg.BorrowToken, debt, p.cfg.BorrowDecimals)
	if err != nil {
		return nil, err
	}
	if debtValue.Sign() == 0 {
		return new(big.Int).Set(MaxHealthFactor), nil
	}

	weighted, err := fpmath.MulDown(collateralValue, p.cfg.LiquidationThreshold)
	if err != nil {
		return nil, err
	}
	hf, err := fpmath.DivDown(weighted, debtValue)
	if err != nil {
		return nil, err
	}
	if hf.Cmp(MaxHealthFactor) > 0 {
		return new(big.Int).Set(MaxHealthFactor), nil
	}
	return hf, nil
}

// healthyWith checks the borrow-side constraint for a hypothetical
// position: debt value must not exceed collateral value scaled by LTV.
// Used to gate new borrows and collateral withdrawals; liquidation uses
// the looser liquidation threshold instead.
func (p *Pool) healthyWith(market *Market, collateral, borrowShares *big.Int) (bool, error) {
	if borrowShares.Sign() == 0 {
		return true, nil
	}
	if collateral.Sign() == 0 {
		return false, nil
	}

	collateralValue, err := p.tokenValue(p.cfg.CollateralToken, collateral, p.cfg.CollateralDecimals)
	if err != nil {
		return false, err
	}
	debt, err := fpmath.MulUp(borrowShares, market.BorrowIndex)
	if err != nil {
		return false, err
	}
	debtValue, err := p.tokenValue(p.cfg.BorrowToken, debt, p.cfg.BorrowDecimals)
	if err != nil {
		return false, err
	}

	limit, err := fpmath.MulDown(collateralValue, p.cfg.LTV)
	if err != nil {
		return false, err
	}
	return debtValue.Cmp(limit) <= 0, nil
}

// tokenValue prices a raw token amount into WAD USD, scaling out the
// token's native decimals.
func (p *Pool) tokenValue(token common.Address, amount *big.Int, decimals uint8) (*big.Int, error) {
	if p.oracle == nil {
		return nil, errNilState
	}
	price, err := p.oracle.GetPrice(token)
	if err != nil {
		return nil, err
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return fpmath.MulDivDown(amount, price, unit)
}
