// Package fpmath implements 18-decimal fixed-point arithmetic over
// arbitrary-precision integers with 256-bit range enforcement.
//
// All amounts handled by the lending engine are unsigned 256-bit
// quantities scaled by WAD (1e18). Multiplications run through a wide
// big.Int intermediate and are rejected when the product no longer fits
// 256 bits, matching the overflow semantics of the reference arithmetic.
package fpmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("fpmath: result exceeds 256 bits")
	ErrDivisionByZero = errors.New("fpmath: division by zero")
	ErrNegative       = errors.New("fpmath: negative operand")
)

// WAD is the 18-decimal fixed-point unit: 1.0 == 1e18.
var WAD = big.NewInt(1_000_000_000_000_000_000)

// Wad returns a fresh copy of the WAD constant.
func Wad() *big.Int { return new(big.Int).Set(WAD) }

// checkRange rejects nil, negative and >256-bit values.
func checkRange(values ...*big.Int) error {
	for _, v := range values {
		if v == nil || v.Sign() < 0 {
			return ErrNegative
		}
		if _, overflow := uint256.FromBig(v); overflow {
			return ErrOverflow
		}
	}
	return nil
}

// MulDown computes floor(x*y/WAD).
func MulDown(x, y *big.Int) (*big.Int, error) {
	return MulDivDown(x, y, WAD)
}

// MulUp computes ceil(x*y/WAD).
func MulUp(x, y *big.Int) (*big.Int, error) {
	return MulDivUp(x, y, WAD)
}

// DivDown computes floor(x*WAD/y).
func DivDown(x, y *big.Int) (*big.Int, error) {
	return MulDivDown(x, WAD, y)
}

// DivUp computes ceil(x*WAD/y).
func DivUp(x, y *big.Int) (*big.Int, error) {
	return MulDivUp(x, WAD, y)
}

// MulDivDown computes floor(x*y/d). The intermediate product may occupy up
// to 512 bits; only the quotient must fit the 256-bit range.
func MulDivDown(x, y, d *big.Int) (*big.Int, error) {
	if err := checkRange(x, y); err != nil {
		return nil, err
	}
	if d == nil || d.Sign() < 0 {
		return nil, ErrNegative
	}
	if d.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	product := new(big.Int).Mul(x, y)
	quotient := product.Quo(product, d)
	if _, overflow := uint256.FromBig(quotient); overflow {
		return nil, ErrOverflow
	}
	return quotient, nil
}

// MulDivUp computes ceil(x*y/d).
func MulDivUp(x, y, d *big.Int) (*big.Int, error) {
	if err := checkRange(x, y); err != nil {
		return nil, err
	}
	if d == nil || d.Sign() < 0 {
		return nil, ErrNegative
	}
	if d.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	product := new(big.Int).Mul(x, y)
	quotient, remainder := new(big.Int).QuoRem(product, d, new(big.Int))
	if remainder.Sign() > 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	if _, overflow := uint256.FromBig(quotient); overflow {
		return nil, ErrOverflow
	}
	return quotient, nil
}
