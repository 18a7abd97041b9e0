// Package counterparty prices swaps for the devnet keeper. Real deployments
// route the paid asset to an external venue; the keeper only needs a quote.
package counterparty

import (
	"fmt"
	"math/bits"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/model"
)

// Exchanger quotes how much of receive a payment of amount in pay buys.
type Exchanger interface {
	Quote(pay asset.Ref, amount uint64, receive asset.Ref) (uint64, error)
}

// FixedRate converts every pair at Num/Den.
type FixedRate struct {
	Num uint64
	Den uint64
}

// Quote rounds down. A quote of zero is an error since nothing would be
// delivered.
func (r FixedRate) Quote(pay asset.Ref, amount uint64, receive asset.Ref) (uint64, error) {
	if r.Num == 0 || r.Den == 0 {
		return 0, fmt.Errorf("%w: rate %d/%d", model.ErrInvalidParameter, r.Num, r.Den)
	}
	if pay == receive {
		return 0, fmt.Errorf("%w: cannot swap %s for itself", model.ErrInvalidParameter, pay)
	}
	hi, lo := bits.Mul64(amount, r.Num)
	if hi >= r.Den {
		return 0, fmt.Errorf("%w: quote for %d %s overflows", model.ErrInvalidParameter, amount, pay)
	}
	out, _ := bits.Div64(hi, lo, r.Den)
	if out == 0 {
		return 0, fmt.Errorf("%w: %d %s buys no %s", model.ErrInvalidParameter, amount, pay, receive)
	}
	return out, nil
}
