package counterparty_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/counterparty"
	"StrategyVault/internal/model"
)

func TestFixedRateQuote(t *testing.T) {
	usdc := asset.Token(31566704)
	tests := []struct {
		name    string
		rate    counterparty.FixedRate
		amount  uint64
		want    uint64
		wantErr error
	}{
		{name: "even", rate: counterparty.FixedRate{Num: 5, Den: 2}, amount: 100, want: 250},
		{name: "rounds down", rate: counterparty.FixedRate{Num: 1, Den: 3}, amount: 10, want: 3},
		{name: "wide intermediate", rate: counterparty.FixedRate{Num: 1 << 40, Den: 1 << 41}, amount: math.MaxUint64, want: math.MaxUint64 / 2},
		{name: "zero quote", rate: counterparty.FixedRate{Num: 1, Den: 1000}, amount: 999, wantErr: model.ErrInvalidParameter},
		{name: "overflow", rate: counterparty.FixedRate{Num: 2, Den: 1}, amount: math.MaxUint64, wantErr: model.ErrInvalidParameter},
		{name: "no denominator", rate: counterparty.FixedRate{Num: 1}, amount: 1, wantErr: model.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rate.Quote(asset.Native, tt.amount, usdc)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := counterparty.FixedRate{Num: 1, Den: 1}.Quote(usdc, 1, usdc)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}
