package gas

import (
	"math/big"
)

// CostModel 各类操作的gas价格，由共识配置决定
type CostModel struct {
	CPUBaseTransactionCost   uint64 `yaml:"cpuBaseTransactionCost" mapstructure:"cpuBaseTransactionCost"`
	StorageCostPerByte       uint64 `yaml:"storageCostPerByte" mapstructure:"storageCostPerByte"`
	CPUCostOfCall            uint64 `yaml:"cpuCostOfCall" mapstructure:"cpuCostOfCall"`
	CPUCostOfFieldAccess     uint64 `yaml:"cpuCostOfFieldAccess" mapstructure:"cpuCostOfFieldAccess"`
	RAMCostOfObject          uint64 `yaml:"ramCostOfObject" mapstructure:"ramCostOfObject"`
	RAMCostOfField           uint64 `yaml:"ramCostOfField" mapstructure:"ramCostOfField"`
	CPUCostOfDeserialization uint64 `yaml:"cpuCostOfDeserialization" mapstructure:"cpuCostOfDeserialization"`
	// 类加载按包字节数除以对应的除数计费
	CPUPackageByteDivisor uint64 `yaml:"cpuPackageByteDivisor" mapstructure:"cpuPackageByteDivisor"`
	RAMPackageByteDivisor uint64 `yaml:"ramPackageByteDivisor" mapstructure:"ramPackageByteDivisor"`
	InstallByteDivisor    uint64 `yaml:"installByteDivisor" mapstructure:"installByteDivisor"`
	CPUCostOfEvent        uint64 `yaml:"cpuCostOfEvent" mapstructure:"cpuCostOfEvent"`
}

func DefaultCostModel() *CostModel {
	return &CostModel{
		CPUBaseTransactionCost:   10,
		StorageCostPerByte:       1,
		CPUCostOfCall:            1,
		CPUCostOfFieldAccess:     1,
		RAMCostOfObject:          4,
		RAMCostOfField:           1,
		CPUCostOfDeserialization: 2,
		CPUPackageByteDivisor:    100,
		RAMPackageByteDivisor:    400,
		InstallByteDivisor:       10,
		CPUCostOfEvent:           5,
	}
}

func divide(n, divisor uint64) uint64 {
	if divisor == 0 {
		return 0
	}
	return n / divisor
}

// StorageCostOf 编码后大小的存储费用
func (c *CostModel) StorageCostOf(size int) uint64 {
	return uint64(size) * c.StorageCostPerByte
}

func (c *CostModel) CPUCostForLoading(packageBytes int) uint64 {
	return divide(uint64(packageBytes), c.CPUPackageByteDivisor)
}

func (c *CostModel) RAMCostForLoading(packageBytes int) uint64 {
	return divide(uint64(packageBytes), c.RAMPackageByteDivisor)
}

func (c *CostModel) CPUCostForInstalling(packageBytes int) uint64 {
	return divide(uint64(packageBytes), c.InstallByteDivisor)
}

// RAMCostOfObjectWith 对象加上其字段的内存费用
func (c *CostModel) RAMCostOfObjectWith(fields int) uint64 {
	return c.RAMCostOfObject + uint64(fields)*c.RAMCostOfField
}

// Cost gas换算成币的数量：gas × price
func Cost(gas, price *big.Int) *big.Int {
	if gas == nil || price == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(gas, price)
}

// Penalty 失败时扣除全部预算
func Penalty(limit, price *big.Int) *big.Int {
	return Cost(limit, price)
}
