package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeOracleFallbackUsed is emitted when the router serves a price
	// sourced exclusively from the TWAP fallback.
	TypeOracleFallbackUsed = "oracle.fallback_used"
)

type OracleFallbackUsed struct {
	Token        common.Address
	Price        *big.Int
	PrimaryError string
}

func (OracleFallbackUsed) EventType() string { return TypeOracleFallbackUsed }
