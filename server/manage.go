package server

import (
	"fmt"

	xconf "github.com/xuperchain/objcore/kernel/common/xconfig"
	"github.com/xuperchain/objcore/kernel/engines"
	"github.com/xuperchain/objcore/kernel/engines/objnode"
	"github.com/xuperchain/objcore/lib/logs"
	"github.com/xuperchain/objcore/server/metrics"
	"github.com/xuperchain/objcore/server/rpc"
)

const SubModName = "server"

// 由于需要同时启动多个服务组件，采用注册机制管理
type ServCom interface {
	Run() error
	Exit()
}

// 各server组件运行控制
type ServMG struct {
	log     logs.Logger
	servers []ServCom
}

func NewServMG(envCfg *xconf.EnvConf, engine engines.BCEngine) (*ServMG, error) {
	if envCfg == nil || engine == nil {
		return nil, fmt.Errorf("param error")
	}
	node, err := objnode.EngineConvert(engine)
	if err != nil {
		return nil, err
	}

	log, _ := logs.NewLogger("", SubModName)
	obj := &ServMG{
		log:     log,
		servers: make([]ServCom, 0),
	}

	// 实例化rpc服务
	rpcServ, err := rpc.NewRpcServMG(&node.Config().RPC, engine)
	if err != nil {
		return nil, err
	}
	obj.servers = append(obj.servers, rpcServ)

	if envCfg.MetricSwitch {
		metricServ, err := metrics.NewMetricServ(envCfg.MetricAddr)
		if err != nil {
			return nil, err
		}
		obj.servers = append(obj.servers, metricServ)
	}

	return obj, nil
}

// 启动全部服务，任一服务退出后触发其余服务退出，阻塞直到全部退出
func (t *ServMG) Run() error {
	ch := make(chan error, len(t.servers))

	for _, serv := range t.servers {
		go func(s ServCom) {
			ch <- s.Run()
		}(serv)
	}

	var firstErr error
	for exitCnt := 0; exitCnt < len(t.servers); exitCnt++ {
		err := <-ch
		if exitCnt == 0 {
			firstErr = err
			t.Exit()
		}
	}

	t.log.Trace("all server exit", "err", firstErr)
	return firstErr
}

// 退出rpc服务，释放相关资源，需要幂等
func (t *ServMG) Exit() {
	for _, serv := range t.servers {
		// 触发各service退出
		go func(s ServCom) {
			s.Exit()
		}(serv)
	}
}
