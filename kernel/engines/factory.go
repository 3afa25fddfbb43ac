package engines

import (
	"fmt"
	"sort"
	"sync"

	xconf "github.com/xuperchain/objcore/kernel/common/xconfig"
	"github.com/xuperchain/objcore/lib/logs"
)

// 节点执行引擎
// 只约束最基本接口，具体暴露接口由各引擎实现，使用方通过引擎提供的类型转换函数获取
type BCEngine interface {
	// 初始化引擎
	Init(*xconf.EnvConf) error
	// 启动引擎(阻塞)
	Run()
	// 退出引擎，需要幂等
	Exit()
}

// 创建engine实例方法
type NewBCEngineFunc func() BCEngine

var (
	engineMu sync.RWMutex
	engines  = make(map[string]NewBCEngineFunc)
)

func Register(name string, f NewBCEngineFunc) {
	engineMu.Lock()
	defer engineMu.Unlock()

	if f == nil {
		panic("engines: Register new func is nil")
	}
	if _, dup := engines[name]; dup {
		panic("engines: Register called twice for func " + name)
	}
	engines[name] = f
}

func Engines() []string {
	engineMu.RLock()
	defer engineMu.RUnlock()
	list := make([]string, 0, len(engines))
	for name := range engines {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

func newBCEngine(name string) BCEngine {
	engineMu.RLock()
	defer engineMu.RUnlock()

	if f, ok := engines[name]; ok {
		return f()
	}

	return nil
}

// 采用工厂模式，对上层统一引擎创建操作
// 引擎注册通过init实现，由应用方选择具体要使用的引擎
func CreateBCEngine(egName string, envCfg *xconf.EnvConf) (BCEngine, error) {
	if egName == "" || envCfg == nil {
		return nil, fmt.Errorf("create bc engine failed because some param unset")
	}

	// 初始化日志实例，日志初始化操作是幂等的
	err := logs.InitLog(envCfg.GenConfFilePath(envCfg.LogConf), envCfg.GenDirAbsPath(envCfg.LogDir))
	if err != nil {
		return nil, fmt.Errorf("create bc engine failed because init log failed.err:%v", err)
	}

	engine := newBCEngine(egName)
	if engine == nil {
		return nil, fmt.Errorf("create bc engine failed because engine not exist. name:%s", egName)
	}

	err = engine.Init(envCfg)
	if err != nil {
		return nil, fmt.Errorf("init engine error: %v", err)
	}

	return engine, nil
}
