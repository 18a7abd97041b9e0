package vault

import (
	"fmt"
	"strconv"
	"strings"

	"StrategyVault/internal/asset"
)

const swapNotePrefix = "swap/v1"

// SwapRequest is the out-of-band request a swap-initiator vault attaches to
// the payment it sends the counterparty.
type SwapRequest struct {
	Vault   string
	ToAsset asset.Ref
	Amount  uint64
}

// Encode renders the request as swap/v1:<vault>:<to asset id>:<amount>.
func (r SwapRequest) Encode() []byte {
	return []byte(fmt.Sprintf("%s:%s:%d:%d", swapNotePrefix, r.Vault, r.ToAsset.TokenID(), r.Amount))
}

// ParseSwapRequest decodes a note produced by Encode.
func ParseSwapRequest(note []byte) (SwapRequest, error) {
	parts := strings.Split(string(note), ":")
	if len(parts) < 4 || parts[0] != swapNotePrefix {
		return SwapRequest{}, fmt.Errorf("parse swap note %q: unexpected format", note)
	}
	n := len(parts)
	toAsset, err := strconv.ParseUint(parts[n-2], 10, 64)
	if err != nil {
		return SwapRequest{}, fmt.Errorf("parse swap note asset: %w", err)
	}
	amount, err := strconv.ParseUint(parts[n-1], 10, 64)
	if err != nil {
		return SwapRequest{}, fmt.Errorf("parse swap note amount: %w", err)
	}
	return SwapRequest{
		Vault:   strings.Join(parts[1:n-2], ":"),
		ToAsset: asset.Token(toAsset),
		Amount:  amount,
	}, nil
}
