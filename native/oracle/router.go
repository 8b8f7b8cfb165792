package oracle

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"isolend/core/events"
	"isolend/native/fpmath"
)

// Config holds the per-token price sourcing configuration. It is written
// once by the router authority and only read on the query path.
type Config struct {
	// PrimaryFeed is the push feed consulted first. Optional.
	PrimaryFeed PriceFeed
	// FallbackPool supplies TWAP pricing when the primary is absent or
	// unusable. Optional, but at least one source must be present.
	FallbackPool PoolObserver
	// MaxStaleness bounds the age of the primary answer, in seconds.
	MaxStaleness uint64
	// MaxDeviation bounds the relative gap between the two sources when
	// both are valid, as a WAD fraction. Zero disables the cross-check.
	MaxDeviation *big.Int
	// TwapWindow is the fallback observation window, in seconds.
	TwapWindow uint32
	// BaseDecimals and QuoteDecimals describe the fallback pool pair so
	// the tick price can be normalized to the WAD/USD basis.
	BaseDecimals  uint8
	QuoteDecimals uint8
	// Enabled gates the token entirely.
	Enabled bool
}

// Router resolves WAD-scaled USD prices for configured tokens.
type Router struct {
	mu        sync.RWMutex
	authority common.Address
	configs   map[common.Address]Config

	uptime      UptimeFeed
	gracePeriod uint64

	now     func() uint64
	emitter events.Emitter
}

// NewRouter constructs a router whose configuration may only be changed by
// the supplied authority address.
func NewRouter(authority common.Address) *Router {
	return &Router{
		authority: authority,
		configs:   make(map[common.Address]Config),
		now:       func() uint64 { return uint64(time.Now().Unix()) },
		emitter:   events.NoopEmitter{},
	}
}

// SetEmitter wires the event sink used for observability signals.
func (r *Router) SetEmitter(emitter events.Emitter) {
	if r == nil || emitter == nil {
		return
	}
	r.mu.Lock()
	r.emitter = emitter
	r.mu.Unlock()
}

// SetUptimeFeed enables the sequencer liveness check. Prices are refused
// until the sequencer has been up for at least gracePeriod seconds.
func (r *Router) SetUptimeFeed(feed UptimeFeed, gracePeriod uint64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.uptime = feed
	r.gracePeriod = gracePeriod
	r.mu.Unlock()
}

// SetNowFunc overrides the clock, primarily for tests.
func (r *Router) SetNowFunc(now func() uint64) {
	if r == nil || now == nil {
		return
	}
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// SetConfig installs the sourcing configuration for a token. Only the
// router authority may call it.
func (r *Router) SetConfig(caller, token common.Address, cfg Config) error {
	if r == nil {
		return ErrNotConfigured
	}
	if caller != r.authority {
		return ErrNotAuthorized
	}
	if cfg.PrimaryFeed == nil && cfg.FallbackPool == nil {
		return ErrInvalidConfiguration
	}
	if cfg.FallbackPool != nil && cfg.TwapWindow == 0 {
		return ErrInvalidConfiguration
	}
	if cfg.MaxDeviation != nil && cfg.MaxDeviation.Sign() < 0 {
		return ErrInvalidConfiguration
	}
	r.mu.Lock()
	r.configs[token] = cfg
	r.mu.Unlock()
	return nil
}

// GetConfig returns the stored configuration for a token.
func (r *Router) GetConfig(token common.Address) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[token]
	return cfg, ok
}

// IsConfigured reports whether the token has an enabled configuration.
func (r *Router) IsConfigured(token common.Address) bool {
	cfg, ok := r.GetConfig(token)
	return ok && cfg.Enabled
}

// GetPrice resolves the USD price of token as a WAD value.
//
// Resolution order: sequencer gate, primary feed with round/staleness
// validation, TWAP fallback, deviation cross-check when both answered,
// otherwise whichever source is valid. Failure of both sources is
// terminal for the caller's operation.
func (r *Router) GetPrice(token common.Address) (*big.Int, error) {
	if r == nil {
		return nil, ErrNotConfigured
	}
	r.mu.RLock()
	cfg, ok := r.configs[token]
	uptime := r.uptime
	grace := r.gracePeriod
	now := r.now()
	emitter := r.emitter
	r.mu.RUnlock()

	if !ok || !cfg.Enabled {
		return nil, ErrNotConfigured
	}

	if uptime != nil {
		up, startedAt, err := uptime.Status()
		if err != nil || !up {
			return nil, ErrSequencerDown
		}
		if now < startedAt || now-startedAt < grace {
			return nil, ErrSequencerDown
		}
	}

	var (
		primaryPrice *big.Int
		primaryErr   error
	)
	if cfg.PrimaryFeed != nil {
		primaryPrice, primaryErr = r.readPrimary(cfg, now)
	}

	var (
		fallbackPrice *big.Int
		fallbackErr   error
	)
	if cfg.FallbackPool != nil {
		fallbackPrice, fallbackErr = twapPrice(cfg.FallbackPool, token, cfg.TwapWindow, cfg.BaseDecimals, cfg.QuoteDecimals)
	}

	switch {
	case primaryPrice != nil && fallbackPrice != nil:
		if cfg.MaxDeviation != nil && cfg.MaxDeviation.Sign() > 0 {
			if exceeded, err := deviationExceeds(primaryPrice, fallbackPrice, cfg.MaxDeviation); err != nil {
				return nil, err
			} else if exceeded {
				return nil, ErrDeviationTooHigh
			}
		}
		return primaryPrice, nil
	case primaryPrice != nil:
		return primaryPrice, nil
	case fallbackPrice != nil:
		emitter.Emit(events.OracleFallbackUsed{
			Token:        token,
			Price:        new(big.Int).Set(fallbackPrice),
			PrimaryError: errString(primaryErr),
		})
		return fallbackPrice, nil
	default:
		return nil, &BothOraclesFailedError{Token: token, PrimaryErr: primaryErr, FallbackErr: fallbackErr}
	}
}

func (r *Router) readPrimary(cfg Config, now uint64) (*big.Int, error) {
	round, err := cfg.PrimaryFeed.LatestRoundData()
	if err != nil {
		return nil, err
	}
	if round.RoundID == nil || round.AnsweredInRound == nil || round.AnsweredInRound.Cmp(round.RoundID) < 0 {
		return nil, ErrIncompleteRound
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if round.UpdatedAt > now {
		return nil, ErrFutureTimestamp
	}
	if cfg.MaxStaleness > 0 && now-round.UpdatedAt > cfg.MaxStaleness {
		return nil, ErrStalePrice
	}
	return normalizeDecimals(round.Answer, cfg.PrimaryFeed.Decimals())
}

// normalizeDecimals rescales a feed answer with the given decimals to WAD.
func normalizeDecimals(answer *big.Int, decimals uint8) (*big.Int, error) {
	switch {
	case decimals == 18:
		return new(big.Int).Set(answer), nil
	case decimals < 18:
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-decimals)), nil)
		out, err := fpmath.MulDivDown(answer, scale, big.NewInt(1))
		if err != nil {
			return nil, err
		}
		return out, nil
	default:
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-18)), nil)
		return new(big.Int).Quo(answer, scale), nil
	}
}

// deviationExceeds computes |p1-p2|*WAD/avg(p1,p2) and compares it to the
// tolerance.
func deviationExceeds(p1, p2, maxDeviation *big.Int) (bool, error) {
	diff := new(big.Int).Sub(p1, p2)
	if diff.Sign() < 0 {
		diff.Neg(diff)
	}
	avg := new(big.Int).Add(p1, p2)
	avg.Rsh(avg, 1)
	if avg.Sign() == 0 {
		return false, ErrInvalidPrice
	}
	relative, err := fpmath.MulDivDown(diff, fpmath.WAD, avg)
	if err != nil {
		return false, err
	}
	return relative.Cmp(maxDeviation) > 0, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
