package gas

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Dimension gas消耗的维度
type Dimension string

const (
	DimensionCPU     Dimension = "cpu"
	DimensionRAM     Dimension = "ram"
	DimensionStorage Dimension = "storage"
)

var ErrOutOfGas = errors.New("out of gas")

// OutOfGasError 某一维度扣费时剩余gas不足
type OutOfGasError struct {
	Dimension Dimension
	Required  *uint256.Int
	Remaining *uint256.Int
}

func (e *OutOfGasError) Error() string {
	return fmt.Sprintf("out of gas charging %s: required %s, remaining %s",
		e.Dimension, e.Required.ToBig(), e.Remaining.ToBig())
}

func (e *OutOfGasError) Unwrap() error {
	return ErrOutOfGas
}

// Meter 一笔交易的gas计量，三个维度共享同一份预算；非并发安全，每个builder独占一个
type Meter struct {
	limit     *uint256.Int
	remaining *uint256.Int
	consumed  map[Dimension]*uint256.Int
	exhausted bool
}

func NewMeter(limit *uint256.Int) *Meter {
	return &Meter{
		limit:     new(uint256.Int).Set(limit),
		remaining: new(uint256.Int).Set(limit),
		consumed: map[Dimension]*uint256.Int{
			DimensionCPU:     new(uint256.Int),
			DimensionRAM:     new(uint256.Int),
			DimensionStorage: new(uint256.Int),
		},
	}
}

// NewMeterFromBig 预算超过256位时返回错误
func NewMeterFromBig(limit *big.Int) (*Meter, error) {
	if limit == nil || limit.Sign() < 0 {
		return nil, errors.New("gas limit must be non negative")
	}
	l, overflow := uint256.FromBig(limit)
	if overflow {
		return nil, errors.New("gas limit overflow")
	}
	return NewMeter(l), nil
}

func (m *Meter) charge(dim Dimension, amount *uint256.Int) error {
	if m.exhausted {
		return &OutOfGasError{dim, new(uint256.Int).Set(amount), new(uint256.Int)}
	}
	if amount.Gt(m.remaining) {
		err := &OutOfGasError{dim, new(uint256.Int).Set(amount), new(uint256.Int).Set(m.remaining)}
		// 不足的部分也记入该维度，剩余清零
		m.consumed[dim].Add(m.consumed[dim], m.remaining)
		m.remaining.Clear()
		m.exhausted = true
		return err
	}
	m.remaining.Sub(m.remaining, amount)
	m.consumed[dim].Add(m.consumed[dim], amount)
	return nil
}

func (m *Meter) ChargeCPU(n uint64) error {
	return m.charge(DimensionCPU, uint256.NewInt(n))
}

func (m *Meter) ChargeRAM(n uint64) error {
	return m.charge(DimensionRAM, uint256.NewInt(n))
}

func (m *Meter) ChargeStorage(n uint64) error {
	return m.charge(DimensionStorage, uint256.NewInt(n))
}

// ChargeStorageBig 按字节数乘单价扣存储费用
func (m *Meter) ChargeStorageBig(amount *uint256.Int) error {
	return m.charge(DimensionStorage, amount)
}

func (m *Meter) Exhausted() bool {
	return m.exhausted
}

func (m *Meter) Limit() *uint256.Int {
	return new(uint256.Int).Set(m.limit)
}

func (m *Meter) Remaining() *uint256.Int {
	return new(uint256.Int).Set(m.remaining)
}

func (m *Meter) Consumed(dim Dimension) *uint256.Int {
	c, ok := m.consumed[dim]
	if !ok {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(c)
}

func (m *Meter) ConsumedCPU() *big.Int {
	return m.Consumed(DimensionCPU).ToBig()
}

func (m *Meter) ConsumedRAM() *big.Int {
	return m.Consumed(DimensionRAM).ToBig()
}

func (m *Meter) ConsumedStorage() *big.Int {
	return m.Consumed(DimensionStorage).ToBig()
}

// ConsumedTotal 三个维度之和
func (m *Meter) ConsumedTotal() *uint256.Int {
	return new(uint256.Int).Sub(m.limit, m.remaining)
}
