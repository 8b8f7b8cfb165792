// Package state persists markets, positions and auction records over a
// key-value database, implementing the narrow state boundaries consumed
// by the lending pools and the auction engine.
package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"isolend/native/auction"
	"isolend/native/lending"
	"isolend/storage"
)

// Manager provides durable reads and writes for the lending and auction
// engines. Records are JSON-encoded; keys are namespaced per prefixes.go.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func marketKey(key string) []byte {
	return append(append([]byte{}, marketPrefix...), key...)
}

func positionKey(market string, user common.Address) []byte {
	buf := append(append([]byte{}, positionPrefix...), market...)
	buf = append(buf, '/')
	return append(buf, user.Hex()...)
}

// auctionKey zero-pads the ID so lexical iteration yields creation order.
func auctionKey(id uint64) []byte {
	return append(append([]byte{}, auctionPrefix...), fmt.Sprintf("%020d", id)...)
}

func auctionIndexKey(market string, user common.Address) []byte {
	buf := append(append([]byte{}, auctionIndexPrefix...), market...)
	buf = append(buf, '/')
	return append(buf, user.Hex()...)
}

// --- lending.PoolState ---

// GetMarket loads a market's accounting record, nil when absent.
func (m *Manager) GetMarket(key string) (*lending.Market, error) {
	data, err := m.db.Get(marketKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	market := new(lending.Market)
	if err := json.Unmarshal(data, market); err != nil {
		return nil, fmt.Errorf("state: decode market %q: %w", key, err)
	}
	return market, nil
}

// PutMarket stores a market's accounting record.
func (m *Manager) PutMarket(key string, market *lending.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("state: encode market %q: %w", key, err)
	}
	return m.db.Put(marketKey(key), data)
}

// GetPosition loads one user's position in a market, nil when absent.
func (m *Manager) GetPosition(market string, user common.Address) (*lending.Position, error) {
	data, err := m.db.Get(positionKey(market, user))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	position := new(lending.Position)
	if err := json.Unmarshal(data, position); err != nil {
		return nil, fmt.Errorf("state: decode position: %w", err)
	}
	return position, nil
}

// PutPosition stores one user's position.
func (m *Manager) PutPosition(market string, position *lending.Position) error {
	data, err := json.Marshal(position)
	if err != nil {
		return fmt.Errorf("state: encode position: %w", err)
	}
	return m.db.Put(positionKey(market, position.User), data)
}

// DeletePosition purges a closed position.
func (m *Manager) DeletePosition(market string, user common.Address) error {
	return m.db.Delete(positionKey(market, user))
}

// ListPositions enumerates every stored position in a market.
func (m *Manager) ListPositions(market string) ([]*lending.Position, error) {
	prefix := append(append([]byte{}, positionPrefix...), market...)
	prefix = append(prefix, '/')
	var out []*lending.Position
	var decodeErr error
	err := m.db.IteratePrefix(prefix, func(_, value []byte) bool {
		position := new(lending.Position)
		if err := json.Unmarshal(value, position); err != nil {
			decodeErr = fmt.Errorf("state: decode position: %w", err)
			return false
		}
		out = append(out, position)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return out, nil
}

// --- auction.State ---

// NextAuctionID increments and returns the monotonic auction sequence.
func (m *Manager) NextAuctionID() (uint64, error) {
	var next uint64 = 1
	data, err := m.db.Get(auctionSeqKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}
	if len(data) == 8 {
		next = binary.BigEndian.Uint64(data) + 1
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := m.db.Put(auctionSeqKey, buf); err != nil {
		return 0, err
	}
	return next, nil
}

// GetAuction loads an auction record, nil when absent.
func (m *Manager) GetAuction(id uint64) (*auction.Auction, error) {
	data, err := m.db.Get(auctionKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record := new(auction.Auction)
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("state: decode auction %d: %w", id, err)
	}
	return record, nil
}

// PutAuction stores an auction record.
func (m *Manager) PutAuction(record *auction.Auction) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("state: encode auction %d: %w", record.ID, err)
	}
	return m.db.Put(auctionKey(record.ID), data)
}

// ActiveAuction resolves the one-active-auction index for (market, user).
func (m *Manager) ActiveAuction(market string, user common.Address) (uint64, bool, error) {
	data, err := m.db.Get(auctionIndexKey(market, user))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(data) != 8 {
		return 0, false, fmt.Errorf("state: corrupt auction index for %s/%s", market, user.Hex())
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// SetActiveAuction records the active auction for (market, user).
func (m *Manager) SetActiveAuction(market string, user common.Address, id uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return m.db.Put(auctionIndexKey(market, user), buf)
}

// ClearActiveAuction frees the (market, user) slot.
func (m *Manager) ClearActiveAuction(market string, user common.Address) error {
	return m.db.Delete(auctionIndexKey(market, user))
}

// ListAuctions enumerates every stored auction in creation order.
func (m *Manager) ListAuctions() ([]*auction.Auction, error) {
	var out []*auction.Auction
	var decodeErr error
	err := m.db.IteratePrefix(auctionPrefix, func(_, value []byte) bool {
		record := new(auction.Auction)
		if err := json.Unmarshal(value, record); err != nil {
			decodeErr = fmt.Errorf("state: decode auction: %w", err)
			return false
		}
		out = append(out, record)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return out, nil
}
