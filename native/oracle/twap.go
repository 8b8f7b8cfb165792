package oracle

import (
	"errors"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"isolend/native/fpmath"
)

var (
	errTwapWindow       = errors.New("oracle twap: window must be positive")
	errTwapObservations = errors.New("oracle twap: observer returned short observation set")
	errTwapTokenPair    = errors.New("oracle twap: token not part of the pool pair")
)

// twapTick derives the mean tick over the window from two cumulative-tick
// observations.
func twapTick(pool PoolObserver, window uint32) (int64, error) {
	if window == 0 {
		return 0, errTwapWindow
	}
	ticks, _, err := pool.Observe([]uint32{window, 0})
	if err != nil {
		return 0, err
	}
	if len(ticks) < 2 {
		return 0, errTwapObservations
	}
	delta := ticks[1] - ticks[0]
	mean := delta / int64(window)
	// Match the reference convention of rounding toward negative infinity.
	if delta < 0 && delta%int64(window) != 0 {
		mean--
	}
	return mean, nil
}

// twapPrice converts the mean tick into a WAD price of token in terms of
// the pool's other token, adjusted for the decimal gap between the pair.
//
// A tick t encodes a token1/token0 price of 1.0001^t. The float64 pow is
// acceptable here: the result feeds the fallback path only and is always
// cross-checked against the primary feed or a deviation tolerance before
// it is trusted on its own.
func twapPrice(pool PoolObserver, token common.Address, window uint32, baseDecimals, quoteDecimals uint8) (*big.Int, error) {
	tick, err := twapTick(pool, window)
	if err != nil {
		return nil, err
	}

	var invert bool
	switch token {
	case pool.Token0():
		invert = false
	case pool.Token1():
		invert = true
	default:
		return nil, errTwapTokenPair
	}

	ratio := math.Pow(1.0001, float64(tick))
	if invert && ratio != 0 {
		ratio = 1 / ratio
	}
	if ratio <= 0 || math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return nil, ErrInvalidPrice
	}

	price := new(big.Float).SetPrec(128).SetFloat64(ratio)
	price.Mul(price, new(big.Float).SetInt(fpmath.WAD))

	// Normalize the decimal gap between the priced token and its quote.
	if baseDecimals != quoteDecimals {
		shift := new(big.Int).Exp(big.NewInt(10), big.NewInt(absDecimalGap(baseDecimals, quoteDecimals)), nil)
		if baseDecimals > quoteDecimals {
			price.Mul(price, new(big.Float).SetInt(shift))
		} else {
			price.Quo(price, new(big.Float).SetInt(shift))
		}
	}

	out, _ := price.Int(nil)
	if out.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	return out, nil
}

func absDecimalGap(a, b uint8) int64 {
	if a > b {
		return int64(a - b)
	}
	return int64(b - a)
}
