package fpmath

import (
	"errors"
	"math/big"
	"testing"
)

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), WAD)
}

func TestMulRounding(t *testing.T) {
	// 1.5 * 1.5 = 2.25 exactly, no rounding involved.
	x := new(big.Int).Add(wad(1), new(big.Int).Rsh(WAD, 1))
	down, err := MulDown(x, x)
	if err != nil {
		t.Fatalf("mul down: %v", err)
	}
	up, err := MulUp(x, x)
	if err != nil {
		t.Fatalf("mul up: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(225), new(big.Int).Quo(WAD, big.NewInt(100)))
	if down.Cmp(want) != 0 || up.Cmp(want) != 0 {
		t.Fatalf("exact product mismatch: down=%s up=%s want=%s", down, up, want)
	}

	// 1 wei * 1 wei / WAD truncates to zero down, rounds to one up.
	one := big.NewInt(1)
	down, err = MulDown(one, one)
	if err != nil {
		t.Fatalf("mul down: %v", err)
	}
	up, err = MulUp(one, one)
	if err != nil {
		t.Fatalf("mul up: %v", err)
	}
	if down.Sign() != 0 {
		t.Fatalf("expected zero, got %s", down)
	}
	if up.Cmp(one) != 0 {
		t.Fatalf("expected one, got %s", up)
	}
}

func TestDivRounding(t *testing.T) {
	down, err := DivDown(big.NewInt(1), big.NewInt(3))
	if err != nil {
		t.Fatalf("div down: %v", err)
	}
	up, err := DivUp(big.NewInt(1), big.NewInt(3))
	if err != nil {
		t.Fatalf("div up: %v", err)
	}
	third := new(big.Int).Quo(WAD, big.NewInt(3))
	if down.Cmp(third) != 0 {
		t.Fatalf("unexpected floor division: got %s want %s", down, third)
	}
	if new(big.Int).Sub(up, down).Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("ceil should exceed floor by one: up=%s down=%s", up, down)
	}
}

func TestDivisionByZero(t *testing.T) {
	if _, err := DivDown(wad(1), big.NewInt(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	if _, err := MulDivUp(wad(1), wad(1), big.NewInt(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestOverflow(t *testing.T) {
	max256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	beyond := new(big.Int).Add(max256, big.NewInt(1))

	if _, err := MulDown(beyond, wad(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow for wide operand, got %v", err)
	}

	// Operands in range but quotient out of range.
	if _, err := MulDivDown(max256, max256, big.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow for wide quotient, got %v", err)
	}

	// A 512-bit intermediate with an in-range quotient succeeds.
	out, err := MulDivDown(max256, max256, max256)
	if err != nil {
		t.Fatalf("mul div down: %v", err)
	}
	if out.Cmp(max256) != 0 {
		t.Fatalf("unexpected quotient: %s", out)
	}
}

func TestNegativeRejected(t *testing.T) {
	if _, err := MulDown(big.NewInt(-1), wad(1)); !errors.Is(err, ErrNegative) {
		t.Fatalf("expected ErrNegative, got %v", err)
	}
	if _, err := MulDivDown(wad(1), wad(1), big.NewInt(-2)); !errors.Is(err, ErrNegative) {
		t.Fatalf("expected ErrNegative, got %v", err)
	}
}
