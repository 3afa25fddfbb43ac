package gas

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeterCharge(t *testing.T) {
	m := NewMeter(uint256.NewInt(100))
	require.NoError(t, m.ChargeCPU(10))
	require.NoError(t, m.ChargeRAM(20))
	require.NoError(t, m.ChargeStorage(30))

	assert.Equal(t, uint64(40), m.Remaining().Uint64())
	assert.Equal(t, int64(10), m.ConsumedCPU().Int64())
	assert.Equal(t, int64(20), m.ConsumedRAM().Int64())
	assert.Equal(t, int64(30), m.ConsumedStorage().Int64())
	assert.Equal(t, uint64(60), m.ConsumedTotal().Uint64())
	assert.False(t, m.Exhausted())
}

func TestMeterOutOfGas(t *testing.T) {
	m := NewMeter(uint256.NewInt(50))
	require.NoError(t, m.ChargeCPU(45))

	err := m.ChargeRAM(10)
	require.Error(t, err)
	var oog *OutOfGasError
	require.True(t, errors.As(err, &oog))
	assert.Equal(t, DimensionRAM, oog.Dimension)
	assert.Equal(t, uint64(5), oog.Remaining.Uint64())
	assert.True(t, errors.Is(err, ErrOutOfGas))

	assert.True(t, m.Exhausted())
	assert.True(t, m.Remaining().IsZero())
	assert.Equal(t, uint64(50), m.ConsumedTotal().Uint64())

	// 耗尽之后任何扣费都失败
	assert.Error(t, m.ChargeCPU(0))
}

func TestNewMeterFromBig(t *testing.T) {
	tests := []struct {
		name    string
		limit   *big.Int
		wantErr bool
	}{
		{"normal", big.NewInt(1000), false},
		{"zero", big.NewInt(0), false},
		{"nil", nil, true},
		{"negative", big.NewInt(-1), true},
		{"overflow", new(big.Int).Lsh(big.NewInt(1), 256), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMeterFromBig(tt.limit)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.limit.Uint64(), m.Limit().Uint64())
		})
	}
}

func TestCostModel(t *testing.T) {
	c := DefaultCostModel()
	assert.Equal(t, uint64(123), c.StorageCostOf(123))
	assert.Equal(t, uint64(10), c.CPUCostForLoading(1000))
	assert.Equal(t, uint64(2), c.RAMCostForLoading(1000))
	assert.Equal(t, uint64(100), c.CPUCostForInstalling(1000))
	assert.Equal(t, uint64(7), c.RAMCostOfObjectWith(3))

	c.CPUPackageByteDivisor = 0
	assert.Equal(t, uint64(0), c.CPUCostForLoading(1000))

	assert.Equal(t, int64(600), Cost(big.NewInt(200), big.NewInt(3)).Int64())
	assert.Equal(t, int64(0), Cost(nil, big.NewInt(3)).Int64())
	assert.Equal(t, int64(20), Penalty(big.NewInt(10), big.NewInt(2)).Int64())
}
