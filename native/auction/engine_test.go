package auction_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"isolend/core/state"
	"isolend/native/auction"
	"isolend/native/fpmath"
	"isolend/native/lending"
	"isolend/native/rates"
	"isolend/storage"
)

var (
	collateralToken = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	borrowToken     = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	treasury        = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	liquidatorAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	factory         = common.HexToAddress("0x00000000000000000000000000000000000000f3")
	supplier        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	borrower        = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	keeper          = common.HexToAddress("0x00000000000000000000000000000000000000a3")
)

func pct(bps int64) *big.Int {
	return new(big.Int).Div(new(big.Int).Mul(big.NewInt(bps), fpmath.WAD), big.NewInt(10_000))
}

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fpmath.WAD)
}

type fixedOracle struct {
	prices map[common.Address]*big.Int
}

func (o *fixedOracle) GetPrice(token common.Address) (*big.Int, error) {
	price, ok := o.prices[token]
	if !ok {
		return nil, errors.New("no price")
	}
	return new(big.Int).Set(price), nil
}

type testEnv struct {
	engine *auction.Engine
	pool   *lending.Pool
	ledger *lending.MemoryLedger
	oracle *fixedOracle
	clock  uint64
}

func (e *testEnv) advance(seconds uint64) { e.clock += seconds }

// newTestEnv wires the full stack: pool and auction engine over one
// state manager, with the borrower already holding an unhealthy
// position. Collateral was worth $1250 at borrow time and $1000 now, so
// the $900 debt sits above the 80% liquidation threshold.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	manager := state.NewManager(db)

	cfg := lending.MarketConfig{
		Key:                  "eth-usd",
		CollateralToken:      collateralToken,
		BorrowToken:          borrowToken,
		CollateralDecimals:   18,
		BorrowDecimals:       18,
		LTV:                  pct(7_500),
		LiquidationThreshold: pct(8_000),
		LiquidationPenalty:   pct(500),
		ReserveFactor:        pct(1_000),
		Treasury:             treasury,
		Liquidator:           liquidatorAddr,
		Factory:              factory,
	}
	model, err := rates.NewModel(big.NewInt(0), pct(400), pct(7_500), pct(8_000))
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	pool, err := lending.NewPool(cfg, model)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	env := &testEnv{
		pool:   pool,
		ledger: lending.NewMemoryLedger(),
		oracle: &fixedOracle{prices: map[common.Address]*big.Int{
			collateralToken: wad(1_250),
			borrowToken:     fpmath.Wad(),
		}},
		clock: 1_700_000_000,
	}
	if err := manager.PutMarket(cfg.Key, lending.NewMarket()); err != nil {
		t.Fatalf("seed market: %v", err)
	}
	pool.SetState(manager)
	pool.SetLedger(env.ledger)
	pool.SetOracle(env.oracle)
	pool.SetNowFunc(func() uint64 { return env.clock })

	engine, err := auction.NewEngine(auction.Config{
		Duration:     600,
		StartPremium: pct(500),
		EndDiscount:  pct(1_000),
		CloseFactor:  fpmath.Wad(),
	}, liquidatorAddr)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.SetState(manager)
	engine.SetOracle(env.oracle)
	engine.SetNowFunc(func() uint64 { return env.clock })
	engine.RegisterPool(pool)
	env.engine = engine

	env.ledger.Mint(borrowToken, supplier, wad(100_000))
	env.ledger.Mint(borrowToken, keeper, wad(100_000))
	env.ledger.Mint(collateralToken, borrower, wad(10))

	if _, err := pool.Deposit(supplier, wad(10_000)); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}
	if err := pool.DepositCollateral(borrower, wad(1)); err != nil {
		t.Fatalf("seed collateral: %v", err)
	}
	if _, err := pool.Borrow(borrower, wad(900)); err != nil {
		t.Fatalf("seed borrow: %v", err)
	}

	// Collateral drops to $1000: health factor 1000*0.8/900 < 1.
	env.oracle.prices[collateralToken] = wad(1_000)
	return env
}

func TestStartAuctionRequiresUnhealthyPosition(t *testing.T) {
	env := newTestEnv(t)

	// A healthy position cannot be auctioned.
	env.oracle.prices[collateralToken] = wad(1_250)
	if _, err := env.engine.StartAuction("eth-usd", borrower); !errors.Is(err, auction.ErrPositionNotLiquidatable) {
		t.Fatalf("expected ErrPositionNotLiquidatable, got %v", err)
	}
	if _, err := env.engine.StartAuction("eth-usd", supplier); !errors.Is(err, auction.ErrPositionNotLiquidatable) {
		t.Fatalf("debt-free user: expected ErrPositionNotLiquidatable, got %v", err)
	}
	if _, err := env.engine.StartAuction("btc-usd", borrower); !errors.Is(err, auction.ErrUnknownPool) {
		t.Fatalf("expected ErrUnknownPool, got %v", err)
	}
}

func TestStartAuctionPricingAndSizing(t *testing.T) {
	env := newTestEnv(t)

	record, err := env.engine.StartAuction("eth-usd", borrower)
	if err != nil {
		t.Fatalf("start auction: %v", err)
	}
	if record.StartPrice.Cmp(wad(1_050)) != 0 {
		t.Fatalf("start price: got %s want %s", record.StartPrice, wad(1_050))
	}
	if record.EndPrice.Cmp(wad(900)) != 0 {
		t.Fatalf("end price: got %s want %s", record.EndPrice, wad(900))
	}
	if record.EndTime-record.StartTime != 600 {
		t.Fatalf("duration mismatch: %d", record.EndTime-record.StartTime)
	}
	if record.DebtToRepay.Cmp(wad(900)) != 0 {
		t.Fatalf("debt to repay: got %s want %s", record.DebtToRepay, wad(900))
	}
	// Collateral covering 900 * 1.05 = 945 USD at $1000 is 0.945 units.
	wantCollateral := new(big.Int).Div(new(big.Int).Mul(wad(945), fpmath.WAD), wad(1_000))
	if record.CollateralForSale.Cmp(wantCollateral) != 0 {
		t.Fatalf("collateral for sale: got %s want %s", record.CollateralForSale, wantCollateral)
	}

	// Only one active auction per (pool, user).
	if _, err := env.engine.StartAuction("eth-usd", borrower); !errors.Is(err, auction.ErrAuctionAlreadyExists) {
		t.Fatalf("expected ErrAuctionAlreadyExists, got %v", err)
	}
}

func TestCurrentPriceDecaysLinearly(t *testing.T) {
	env := newTestEnv(t)

	record, err := env.engine.StartAuction("eth-usd", borrower)
	if err != nil {
		t.Fatalf("start auction: %v", err)
	}

	price, err := env.engine.GetCurrentPrice(record.ID)
	if err != nil {
		t.Fatalf("price at start: %v", err)
	}
	if price.Cmp(wad(1_050)) != 0 {
		t.Fatalf("price at elapsed=0: got %s want %s", price, wad(1_050))
	}

	env.advance(300)
	price, err = env.engine.GetCurrentPrice(record.ID)
	if err != nil {
		t.Fatalf("price at midpoint: %v", err)
	}
	if price.Cmp(wad(975)) != 0 {
		t.Fatalf("price at elapsed=300: got %s want %s", price, wad(975))
	}

	// Monotonically non-increasing through the window, flat afterwards.
	last := new(big.Int).Set(price)
	for i := 0; i < 4; i++ {
		env.advance(100)
		price, err = env.engine.GetCurrentPrice(record.ID)
		if err != nil {
			t.Fatalf("price: %v", err)
		}
		if price.Cmp(last) > 0 {
			t.Fatalf("price increased: %s -> %s", last, price)
		}
		last.Set(price)
	}
	if last.Cmp(wad(900)) != 0 {
		t.Fatalf("price past duration: got %s want %s", last, wad(900))
	}
}

func TestLiquidateSettlesAuction(t *testing.T) {
	env := newTestEnv(t)

	record, err := env.engine.StartAuction("eth-usd", borrower)
	if err != nil {
		t.Fatalf("start auction: %v", err)
	}

	if _, _, err := env.engine.Liquidate(keeper, record.ID, big.NewInt(0)); !errors.Is(err, auction.ErrInsufficientRepayment) {
		t.Fatalf("expected ErrInsufficientRepayment, got %v", err)
	}

	env.advance(300)
	repaid, received, err := env.engine.Liquidate(keeper, record.ID, wad(900))
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if repaid.Cmp(wad(900)) != 0 {
		t.Fatalf("repaid: got %s want %s", repaid, wad(900))
	}
	// 900 USD of collateral at the decayed $975 price.
	want := new(big.Int).Div(new(big.Int).Mul(wad(900), fpmath.WAD), wad(975))
	if received.Cmp(want) != 0 {
		t.Fatalf("collateral received: got %s want %s", received, want)
	}
	if got := env.ledger.BalanceOf(collateralToken, keeper); got.Cmp(want) != 0 {
		t.Fatalf("keeper collateral balance: got %s want %s", got, want)
	}

	stored, err := env.engine.Auction(record.ID)
	if err != nil {
		t.Fatalf("load auction: %v", err)
	}
	if stored.Status != auction.StatusSettled {
		t.Fatalf("auction should settle, status %s", stored.Status)
	}
	if _, _, err := env.engine.Liquidate(keeper, record.ID, wad(1)); !errors.Is(err, auction.ErrAuctionNotActive) {
		t.Fatalf("expected ErrAuctionNotActive on settled auction, got %v", err)
	}
}

func TestSerializedLiquidatorsShareTheAuction(t *testing.T) {
	env := newTestEnv(t)

	record, err := env.engine.StartAuction("eth-usd", borrower)
	if err != nil {
		t.Fatalf("start auction: %v", err)
	}

	repaid, received, err := env.engine.Liquidate(keeper, record.ID, wad(500))
	if err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if repaid.Cmp(wad(500)) != 0 {
		t.Fatalf("first fill repaid %s", repaid)
	}

	// The second caller asks for the full 900 but only the remaining 400
	// is available; the collateral allocation cannot be double-spent.
	remainingCollateral := new(big.Int).Sub(record.CollateralForSale, received)
	repaid, received, err = env.engine.Liquidate(supplier, record.ID, wad(900))
	if err != nil {
		t.Fatalf("second fill: %v", err)
	}
	if repaid.Cmp(wad(400)) != 0 {
		t.Fatalf("second fill should repay the remainder, got %s", repaid)
	}
	if received.Cmp(remainingCollateral) > 0 {
		t.Fatalf("second fill overdrew collateral: %s > %s", received, remainingCollateral)
	}

	stored, err := env.engine.Auction(record.ID)
	if err != nil {
		t.Fatalf("load auction: %v", err)
	}
	if stored.Status != auction.StatusSettled || stored.DebtToRepay.Sign() != 0 {
		t.Fatalf("auction should be fully settled: %+v", stored)
	}
}

func TestExpiryAndCancellation(t *testing.T) {
	env := newTestEnv(t)

	record, err := env.engine.StartAuction("eth-usd", borrower)
	if err != nil {
		t.Fatalf("start auction: %v", err)
	}

	if err := env.engine.CancelExpiredAuction(record.ID); !errors.Is(err, auction.ErrAuctionNotExpired) {
		t.Fatalf("expected ErrAuctionNotExpired, got %v", err)
	}

	env.advance(601)
	if _, _, err := env.engine.Liquidate(keeper, record.ID, wad(1)); !errors.Is(err, auction.ErrAuctionExpired) {
		t.Fatalf("expected ErrAuctionExpired, got %v", err)
	}
	if err := env.engine.CancelExpiredAuction(record.ID); err != nil {
		t.Fatalf("cancel expired: %v", err)
	}
	stored, err := env.engine.Auction(record.ID)
	if err != nil {
		t.Fatalf("load auction: %v", err)
	}
	if stored.Status != auction.StatusCancelled {
		t.Fatalf("auction should cancel, status %s", stored.Status)
	}

	// The slot frees up for a freshly priced auction.
	fresh, err := env.engine.StartAuction("eth-usd", borrower)
	if err != nil {
		t.Fatalf("restart auction: %v", err)
	}
	if fresh.ID == record.ID {
		t.Fatalf("auction IDs must be unique")
	}
	if err := env.engine.CancelExpiredAuction(record.ID); !errors.Is(err, auction.ErrAuctionNotActive) {
		t.Fatalf("expected ErrAuctionNotActive re-cancelling, got %v", err)
	}
}

func TestPauseBlocksLiquidations(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetPaused(true)
	if _, err := env.engine.StartAuction("eth-usd", borrower); !errors.Is(err, auction.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	env.engine.SetPaused(false)
	if _, err := env.engine.StartAuction("eth-usd", borrower); err != nil {
		t.Fatalf("start after unpause: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	base := auction.Config{
		Duration:     600,
		StartPremium: pct(500),
		EndDiscount:  pct(1_000),
		CloseFactor:  fpmath.Wad(),
	}
	cases := []struct {
		name   string
		mutate func(*auction.Config)
		want   error
	}{
		{"zero duration", func(c *auction.Config) { c.Duration = 0 }, auction.ErrInvalidDuration},
		{"negative premium", func(c *auction.Config) { c.StartPremium = big.NewInt(-1) }, auction.ErrInvalidStartPremium},
		{"discount at one", func(c *auction.Config) { c.EndDiscount = fpmath.Wad() }, auction.ErrInvalidEndDiscount},
		{"zero close factor", func(c *auction.Config) { c.CloseFactor = big.NewInt(0) }, auction.ErrInvalidCloseFactor},
		{"close factor above one", func(c *auction.Config) { c.CloseFactor = pct(10_001) }, auction.ErrInvalidCloseFactor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
			if !errors.Is(err, auction.ErrInvalidConfig) {
				t.Fatalf("variant should wrap ErrInvalidConfig: %v", err)
			}
		})
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}
}

func TestCloseFactorLimitsAuctionSize(t *testing.T) {
	env := newTestEnv(t)

	engine, err := auction.NewEngine(auction.Config{
		Duration:     600,
		StartPremium: pct(500),
		EndDiscount:  pct(1_000),
		CloseFactor:  pct(5_000),
	}, liquidatorAddr)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	engine.SetState(state.NewManager(db))
	engine.SetOracle(env.oracle)
	engine.SetNowFunc(func() uint64 { return env.clock })
	engine.RegisterPool(env.pool)

	record, err := engine.StartAuction("eth-usd", borrower)
	if err != nil {
		t.Fatalf("start auction: %v", err)
	}
	if record.DebtToRepay.Cmp(wad(450)) != 0 {
		t.Fatalf("half the 900 debt should be auctioned, got %s", record.DebtToRepay)
	}
}

func TestFailedFillLeavesAuctionUntouched(t *testing.T) {
	env := newTestEnv(t)

	record, err := env.engine.StartAuction("eth-usd", borrower)
	if err != nil {
		t.Fatalf("start auction: %v", err)
	}

	// A filler with no borrow tokens cannot settle the repayment leg.
	stranger := common.HexToAddress("0x00000000000000000000000000000000000000a4")
	if _, _, err := env.engine.Liquidate(stranger, record.ID, wad(900)); !errors.Is(err, lending.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	after, err := env.engine.Auction(record.ID)
	if err != nil {
		t.Fatalf("reload auction: %v", err)
	}
	if !after.Active() {
		t.Fatalf("failed fill changed auction status: %v", after.Status)
	}
	if after.DebtToRepay.Cmp(record.DebtToRepay) != 0 || after.CollateralForSale.Cmp(record.CollateralForSale) != 0 {
		t.Fatalf("failed fill decremented the auction: debt %s collateral %s", after.DebtToRepay, after.CollateralForSale)
	}
	debt, err := env.pool.DebtOf(borrower)
	if err != nil {
		t.Fatalf("debt: %v", err)
	}
	if debt.Cmp(wad(900)) != 0 {
		t.Fatalf("failed fill wrote off debt: %s", debt)
	}

	// A funded keeper can still settle the whole auction afterwards.
	repaid, _, err := env.engine.Liquidate(keeper, record.ID, wad(900))
	if err != nil {
		t.Fatalf("funded fill: %v", err)
	}
	if repaid.Cmp(wad(900)) != 0 {
		t.Fatalf("unexpected repayment: %s", repaid)
	}
}

func TestCollateralExhaustionSettlesAuction(t *testing.T) {
	env := newTestEnv(t)

	// Collateral crashes far below the debt: one unit cannot cover the
	// $900 repayment even at the premium price.
	env.oracle.prices[collateralToken] = wad(500)

	record, err := env.engine.StartAuction("eth-usd", borrower)
	if err != nil {
		t.Fatalf("start auction: %v", err)
	}
	if record.CollateralForSale.Cmp(wad(1)) != 0 {
		t.Fatalf("collateral for sale should cap at the position, got %s", record.CollateralForSale)
	}

	// At the $525 start price the whole unit is worth $525; the filler
	// pays only for what is sold.
	repaid, received, err := env.engine.Liquidate(keeper, record.ID, wad(900))
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if repaid.Cmp(wad(525)) != 0 {
		t.Fatalf("repayment should match the collateral sold: %s", repaid)
	}
	if received.Cmp(wad(1)) != 0 {
		t.Fatalf("fill should take the full allocation: %s", received)
	}

	after, err := env.engine.Auction(record.ID)
	if err != nil {
		t.Fatalf("reload auction: %v", err)
	}
	if after.Active() {
		t.Fatalf("exhausted auction should settle")
	}
	if after.CollateralForSale.Sign() != 0 {
		t.Fatalf("collateral allocation should be spent: %s", after.CollateralForSale)
	}
	if after.DebtToRepay.Cmp(wad(375)) != 0 {
		t.Fatalf("residual debt should stay on the record: %s", after.DebtToRepay)
	}
}
