package lending

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryLedger is an in-process TokenLedger keeping per-token balances.
// It backs the standalone daemon and tests; production deployments swap
// in an adapter over the real settlement layer.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[common.Address]map[common.Address]*big.Int
}

// NewMemoryLedger constructs an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[common.Address]map[common.Address]*big.Int)}
}

// Mint credits an account, growing supply out of thin air. Test and
// bootstrap helper only.
func (l *MemoryLedger) Mint(token, account common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(token, account, amount)
}

// BalanceOf reports the account's balance for a token.
func (l *MemoryLedger) BalanceOf(token, account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	holders, ok := l.balances[token]
	if !ok {
		return big.NewInt(0)
	}
	balance, ok := holders[account]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(balance)
}

// Transfer moves amount from one account to another, failing when the
// sender's balance is short.
func (l *MemoryLedger) Transfer(token common.Address, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errZeroAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	holders, ok := l.balances[token]
	if !ok {
		return errInsufficientFunds
	}
	balance, ok := holders[from]
	if !ok || balance.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	balance.Sub(balance, amount)
	l.credit(token, to, amount)
	return nil
}

func (l *MemoryLedger) credit(token, account common.Address, amount *big.Int) {
	holders, ok := l.balances[token]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		l.balances[token] = holders
	}
	balance, ok := holders[account]
	if !ok {
		balance = big.NewInt(0)
		holders[account] = balance
	}
	balance.Add(balance, amount)
}
