package config

import (
	"fmt"
	"math/big"
	"time"

	"github.com/docker/go-units"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/xuperchain/objcore/kernel/gas"
	"github.com/xuperchain/objcore/lib/crypto/hash"
	"github.com/xuperchain/objcore/lib/crypto/signature"
	"github.com/xuperchain/objcore/lib/storage/kvdb"
	"github.com/xuperchain/objcore/lib/utils"
)

const (
	DefaultChainID       = "objcore"
	DefaultMaxGas        = 1000000000
	DefaultListen        = "127.0.0.1:37101"
	DefaultCodeCacheSize = 256
	DefaultRequestTTL    = 10 * time.Minute
	DefaultQueueSize     = 10000
)

// Consensus 所有节点必须一致的参数，决定响应的内容
type Consensus struct {
	ChainID              string `yaml:"chainId"`
	MaxGasPerTransaction uint64 `yaml:"maxGasPerTransaction"`
	MinGasPrice          uint64 `yaml:"minGasPrice"`
	// IgnoresGasPrice 不检查最低gas价格
	IgnoresGasPrice bool `yaml:"ignoresGasPrice"`
	// AllowsSelfCharged 允许SelfCharged类的接收者支付gas
	AllowsSelfCharged bool `yaml:"allowsSelfCharged"`
	// AllowsUnsignedFaucet 创世账户调用faucet不需要签名且gas价格为0
	AllowsUnsignedFaucet bool          `yaml:"allowsUnsignedFaucet"`
	SignatureAlgorithm   string        `yaml:"signatureAlgorithm"`
	HashAlgorithm        string        `yaml:"hashAlgorithm"`
	CheckPolicyVersion   int           `yaml:"checkPolicyVersion"`
	GasCostModel         gas.CostModel `yaml:"gasCostModel"`
}

func GetDefConsensus() *Consensus {
	return &Consensus{
		ChainID:              DefaultChainID,
		MaxGasPerTransaction: DefaultMaxGas,
		MinGasPrice:          1,
		SignatureAlgorithm:   signature.AlgorithmEd25519,
		HashAlgorithm:        hash.HashTypeSha256,
		CheckPolicyVersion:   1,
		GasCostModel:         *gas.DefaultCostModel(),
	}
}

func (c *Consensus) MaxGas() *big.Int {
	return new(big.Int).SetUint64(c.MaxGasPerTransaction)
}

func (c *Consensus) MinPrice() *big.Int {
	return new(big.Int).SetUint64(c.MinGasPrice)
}

type StorageConf struct {
	KVEngine string `yaml:"kvEngine"`
	// DataDir 相对EnvConf.DataDir
	DataDir string `yaml:"dataDir"`
	// MemCache 读缓存大小，如64MB
	MemCache     string `yaml:"memCache"`
	FileHandlers int    `yaml:"fileHandlers"`
	// Compress 响应使用snappy压缩
	Compress bool `yaml:"compress"`
}

// MemCacheMB 转换为kvdb需要的MB数
func (s *StorageConf) MemCacheMB() (int, error) {
	if s.MemCache == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(s.MemCache)
	if err != nil {
		return 0, fmt.Errorf("bad memCache %s: %v", s.MemCache, err)
	}
	return int(n / units.MiB), nil
}

// KVParameter 按存储配置生成kv实例参数
func (s *StorageConf) KVParameter(path string) (*kvdb.KVParameter, error) {
	cache, err := s.MemCacheMB()
	if err != nil {
		return nil, err
	}
	return &kvdb.KVParameter{
		DBPath:                path,
		KVEngineType:          s.KVEngine,
		MemCacheSize:          cache,
		FileHandlersCacheSize: s.FileHandlers,
	}, nil
}

type RPCConf struct {
	Listen string `yaml:"listen"`
	// MaxMsgSize 如4MB
	MaxMsgSize string `yaml:"maxMsgSize"`
}

func (r *RPCConf) MaxMsgBytes() (int, error) {
	if r.MaxMsgSize == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(r.MaxMsgSize)
	if err != nil {
		return 0, fmt.Errorf("bad maxMsgSize %s: %v", r.MaxMsgSize, err)
	}
	return int(n), nil
}

// NodeConf 节点配置
type NodeConf struct {
	Consensus Consensus   `yaml:"consensus"`
	Storage   StorageConf `yaml:"storage"`
	RPC       RPCConf     `yaml:"rpc"`
	// CodeCacheSize 缓存的classpath个数
	CodeCacheSize int `yaml:"codeCacheSize"`
	// RequestCacheTTL 已处理请求的去重时间
	RequestCacheTTL time.Duration `yaml:"requestCacheTTL"`
	QueueSize       int           `yaml:"queueSize"`
}

func LoadNodeConf(cfgFile string) (*NodeConf, error) {
	cfg := GetDefNodeConf()
	err := cfg.loadConf(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load node config failed.err:%s", err)
	}

	return cfg, nil
}

func GetDefNodeConf() *NodeConf {
	return &NodeConf{
		Consensus: *GetDefConsensus(),
		Storage: StorageConf{
			KVEngine:     kvdb.KVEngineTypeLDB,
			DataDir:      "objstore",
			MemCache:     "64MB",
			FileHandlers: 64,
			Compress:     true,
		},
		RPC: RPCConf{
			Listen:     DefaultListen,
			MaxMsgSize: "16MB",
		},
		CodeCacheSize:   DefaultCodeCacheSize,
		RequestCacheTTL: DefaultRequestTTL,
		QueueSize:       DefaultQueueSize,
	}
}

func (t *NodeConf) loadConf(cfgFile string) error {
	if cfgFile == "" || !utils.FileIsExist(cfgFile) {
		return fmt.Errorf("config file set error.path:%s", cfgFile)
	}

	viperObj := viper.New()
	viperObj.SetConfigFile(cfgFile)
	err := viperObj.ReadInConfig()
	if err != nil {
		return fmt.Errorf("read config failed.path:%s,err:%v", cfgFile, err)
	}

	if err = viperObj.Unmarshal(t, func(config *mapstructure.DecoderConfig) {
		config.TagName = "yaml"
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return fmt.Errorf("unmatshal config failed.path:%s,err:%v", cfgFile, err)
	}

	return nil
}
