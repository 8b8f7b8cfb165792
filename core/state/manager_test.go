package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"isolend/native/auction"
	"isolend/native/lending"
	"isolend/storage"
)

var (
	user  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	other = common.HexToAddress("0x00000000000000000000000000000000000000a2")
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db)
}

func TestMarketRoundTrip(t *testing.T) {
	m := newTestManager(t)

	if got, err := m.GetMarket("eth-usd"); err != nil || got != nil {
		t.Fatalf("missing market should be (nil, nil), got %v %v", got, err)
	}

	market := lending.NewMarket()
	market.TotalSupplyAssets = big.NewInt(12345)
	market.LastAccrualTime = 1_700_000_000
	if err := m.PutMarket("eth-usd", market); err != nil {
		t.Fatalf("put market: %v", err)
	}

	loaded, err := m.GetMarket("eth-usd")
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	if loaded.TotalSupplyAssets.Cmp(market.TotalSupplyAssets) != 0 {
		t.Fatalf("supply mismatch: %s", loaded.TotalSupplyAssets)
	}
	if loaded.LastAccrualTime != market.LastAccrualTime {
		t.Fatalf("accrual time mismatch: %d", loaded.LastAccrualTime)
	}
	if !loaded.Active {
		t.Fatalf("active flag lost")
	}
}

func TestPositionRoundTripAndDelete(t *testing.T) {
	m := newTestManager(t)

	position := &lending.Position{
		User:             user,
		SupplyShares:     big.NewInt(10),
		CollateralAmount: big.NewInt(20),
		BorrowShares:     big.NewInt(30),
	}
	if err := m.PutPosition("eth-usd", position); err != nil {
		t.Fatalf("put position: %v", err)
	}

	loaded, err := m.GetPosition("eth-usd", user)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if loaded.User != user || loaded.BorrowShares.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("position mismatch: %+v", loaded)
	}

	// Markets are isolated namespaces.
	if got, err := m.GetPosition("btc-usd", user); err != nil || got != nil {
		t.Fatalf("foreign market lookup should miss, got %v %v", got, err)
	}

	if err := m.DeletePosition("eth-usd", user); err != nil {
		t.Fatalf("delete position: %v", err)
	}
	if got, err := m.GetPosition("eth-usd", user); err != nil || got != nil {
		t.Fatalf("deleted position should miss, got %v %v", got, err)
	}
}

func TestListPositions(t *testing.T) {
	m := newTestManager(t)

	for _, u := range []common.Address{user, other} {
		if err := m.PutPosition("eth-usd", &lending.Position{
			User:             u,
			SupplyShares:     big.NewInt(0),
			CollateralAmount: big.NewInt(1),
			BorrowShares:     big.NewInt(0),
		}); err != nil {
			t.Fatalf("put position: %v", err)
		}
	}
	if err := m.PutPosition("btc-usd", &lending.Position{
		User:             user,
		SupplyShares:     big.NewInt(0),
		CollateralAmount: big.NewInt(1),
		BorrowShares:     big.NewInt(0),
	}); err != nil {
		t.Fatalf("put position: %v", err)
	}

	positions, err := m.ListPositions("eth-usd")
	if err != nil {
		t.Fatalf("list positions: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
}

func TestAuctionSequenceAndIndex(t *testing.T) {
	m := newTestManager(t)

	first, err := m.NextAuctionID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	second, err := m.NextAuctionID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("sequence should be monotonic from 1: %d %d", first, second)
	}

	record := &auction.Auction{
		ID:                first,
		Market:            "eth-usd",
		User:              user,
		DebtToRepay:       big.NewInt(100),
		CollateralForSale: big.NewInt(1),
		StartPrice:        big.NewInt(1050),
		EndPrice:          big.NewInt(900),
		StartTime:         1_700_000_000,
		EndTime:           1_700_000_600,
		Status:            auction.StatusActive,
	}
	if err := m.PutAuction(record); err != nil {
		t.Fatalf("put auction: %v", err)
	}
	loaded, err := m.GetAuction(first)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if loaded.Status != auction.StatusActive || loaded.DebtToRepay.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("auction mismatch: %+v", loaded)
	}

	if _, ok, err := m.ActiveAuction("eth-usd", user); err != nil || ok {
		t.Fatalf("index should start empty, ok=%v err=%v", ok, err)
	}
	if err := m.SetActiveAuction("eth-usd", user, first); err != nil {
		t.Fatalf("set index: %v", err)
	}
	id, ok, err := m.ActiveAuction("eth-usd", user)
	if err != nil || !ok || id != first {
		t.Fatalf("index lookup mismatch: id=%d ok=%v err=%v", id, ok, err)
	}
	if err := m.ClearActiveAuction("eth-usd", user); err != nil {
		t.Fatalf("clear index: %v", err)
	}
	if _, ok, err := m.ActiveAuction("eth-usd", user); err != nil || ok {
		t.Fatalf("index should clear, ok=%v err=%v", ok, err)
	}
}

func TestListAuctionsOrdered(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < 3; i++ {
		id, err := m.NextAuctionID()
		if err != nil {
			t.Fatalf("next id: %v", err)
		}
		if err := m.PutAuction(&auction.Auction{
			ID:                id,
			Market:            "eth-usd",
			User:              user,
			DebtToRepay:       big.NewInt(int64(id)),
			CollateralForSale: big.NewInt(0),
			StartPrice:        big.NewInt(0),
			EndPrice:          big.NewInt(0),
			Status:            auction.StatusCancelled,
		}); err != nil {
			t.Fatalf("put auction: %v", err)
		}
	}

	records, err := m.ListAuctions()
	if err != nil {
		t.Fatalf("list auctions: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 auctions, got %d", len(records))
	}
	for i, record := range records {
		if record.ID != uint64(i+1) {
			t.Fatalf("auctions out of creation order: %v", records)
		}
	}
}
