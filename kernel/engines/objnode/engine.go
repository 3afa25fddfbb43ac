package objnode

import (
	"fmt"
	"sync"

	"github.com/gammazero/deque"
	"github.com/patrickmn/go-cache"

	_ "github.com/xuperchain/objcore/bcs/code/lang"
	"github.com/xuperchain/objcore/bcs/code/native"
	"github.com/xuperchain/objcore/bcs/store/objstore"
	"github.com/xuperchain/objcore/kernel/code"
	xconf "github.com/xuperchain/objcore/kernel/common/xconfig"
	"github.com/xuperchain/objcore/kernel/engines"
	"github.com/xuperchain/objcore/kernel/engines/objnode/config"
	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/response"
	"github.com/xuperchain/objcore/kernel/store"
	"github.com/xuperchain/objcore/lib/logs"
	"github.com/xuperchain/objcore/lib/timer"
)

// ObjNode 单机节点：按FIFO顺序构造响应并提交到对象存储
type ObjNode struct {
	envCfg *xconf.EnvConf
	conf   *config.NodeConf
	log    logs.Logger
	store  store.Store
	engine *response.Engine

	// 待处理请求队列及其对应的任务
	mutex   sync.Mutex
	queue   deque.Deque
	pending map[protocol.TransactionReference]*task
	notify  chan struct{}
	// 被拒绝的请求，GetResponse时返回拒绝原因
	handled *cache.Cache

	exitOnce sync.Once
	exitCh   chan struct{}
	exitWG   sync.WaitGroup
	stopped  bool
}

func NewObjNode() engines.BCEngine {
	return &ObjNode{}
}

// 向工厂注册自己的创建方法
func init() {
	engines.Register(BCEngineName, NewObjNode)
}

// EngineConvert 转换引擎句柄类型
func EngineConvert(engine engines.BCEngine) (*ObjNode, error) {
	if engine == nil {
		return nil, fmt.Errorf("transfer engine type failed because param is nil")
	}

	if v, ok := engine.(*ObjNode); ok {
		return v, nil
	}

	return nil, fmt.Errorf("transfer engine type failed by type assert")
}

// Init 加载节点配置，打开存储并创建响应引擎
func (t *ObjNode) Init(envCfg *xconf.EnvConf) error {
	log, err := logs.NewLogger("", BCEngineName)
	if err != nil {
		return fmt.Errorf("init engine failed because new logger failed.err:%v", err)
	}
	xt := timer.NewXTimer()

	conf, err := config.LoadNodeConf(envCfg.GenConfFilePath(envCfg.NodeConf))
	if err != nil {
		return fmt.Errorf("init engine failed because load node config failed.err:%v", err)
	}
	xt.Mark("LoadNodeConf")

	param, err := conf.Storage.KVParameter(envCfg.GenDataAbsPath(conf.Storage.DataDir))
	if err != nil {
		return fmt.Errorf("init engine failed because storage config error.err:%v", err)
	}
	st, err := objstore.Open(param, objstore.Option{Compress: conf.Storage.Compress}, log)
	if err != nil {
		return fmt.Errorf("init engine failed because open store failed.err:%v", err)
	}
	xt.Mark("OpenStore")

	resolver, err := code.NewResolver(native.Loader{}, conf.CodeCacheSize)
	if err != nil {
		st.Close()
		return fmt.Errorf("init engine failed because new resolver failed.err:%v", err)
	}
	engine, err := response.NewEngine(&conf.Consensus, resolver, native.Instrumenter{}, log)
	if err != nil {
		st.Close()
		return fmt.Errorf("init engine failed because new response engine failed.err:%v", err)
	}

	t.envCfg = envCfg
	t.setup(conf, st, engine, log)
	log.Info("init engine succ", "chain", conf.Consensus.ChainID, "kv", conf.Storage.KVEngine,
		"packages", native.Drivers(), "timer", xt.Print())
	return nil
}

// NewNode 使用已创建的存储和响应引擎组装节点
func NewNode(conf *config.NodeConf, st store.Store, engine *response.Engine, log logs.Logger) (*ObjNode, error) {
	if conf == nil || st == nil || engine == nil || log == nil {
		return nil, fmt.Errorf("new node failed because some param unset")
	}
	t := &ObjNode{}
	t.setup(conf, st, engine, log)
	return t, nil
}

func (t *ObjNode) setup(conf *config.NodeConf, st store.Store, engine *response.Engine, log logs.Logger) {
	t.conf = conf
	t.store = st
	t.engine = engine
	t.log = log
	t.pending = make(map[protocol.TransactionReference]*task)
	t.notify = make(chan struct{}, 1)
	t.handled = cache.New(conf.RequestCacheTTL, HandledCacheGcTime)
	t.exitCh = make(chan struct{})
}

// Run 启动请求处理，阻塞直到Exit
func (t *ObjNode) Run() {
	t.exitWG.Add(1)
	defer t.exitWG.Done()

	t.log.Info("node started", "chain", t.conf.Consensus.ChainID)
	for {
		select {
		case <-t.exitCh:
			t.log.Info("node exit")
			return
		case <-t.notify:
			t.drain()
		}
	}
}

// Exit 停止处理并关闭存储，需要幂等
func (t *ObjNode) Exit() {
	t.exitOnce.Do(func() {
		close(t.exitCh)
		t.exitWG.Wait()

		t.mutex.Lock()
		t.stopped = true
		for t.queue.Len() > 0 {
			tk := t.queue.PopFront().(*task)
			delete(t.pending, tk.ref)
			tk.finish(nil, errNodeStopped())
		}
		t.mutex.Unlock()

		if err := t.store.Close(); err != nil {
			t.log.Warn("close store failed", "err", err)
		}
	})
}

func (t *ObjNode) Config() *config.NodeConf {
	return t.conf
}

func (t *ObjNode) Engine() *response.Engine {
	return t.engine
}

func (t *ObjNode) GetResponse(ref protocol.TransactionReference) (protocol.Response, error) {
	if v, ok := t.handled.Get(ref.String()); ok {
		return nil, v.(error)
	}
	return t.store.Response(ref)
}

func (t *ObjNode) GetRequest(ref protocol.TransactionReference) (protocol.Request, error) {
	return t.store.Request(ref)
}

func (t *ObjNode) GetState(obj protocol.StorageReference) ([]protocol.Update, error) {
	return t.store.State(obj)
}

func (t *ObjNode) GetManifest() (protocol.StorageReference, error) {
	return t.store.Manifest()
}
