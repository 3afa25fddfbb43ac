package logs

import (
	"fmt"
	"os"
	"sync"

	"github.com/xuperchain/objcore/lib/utils"
)

// 保留字段，按此顺序位于每条日志的最前面
const (
	CommFieldLogId  = "log_id"
	CommFieldCall   = "call"
	CommFieldPid    = "pid"
	CommFieldSubMod = "s_mod"
)

// GetFuncCall -> output -> Error/Warn/... -> 调用方
const DefaultCallDepth = 3

// 底层日志库约束接口，log15满足该接口
type LogDriver interface {
	Error(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
}

// Logger 带log_id和公共字段的日志对象
type Logger interface {
	GetLogId() string
	// SetCommField 追加之后每条日志都携带的字段
	SetCommField(key string, value interface{})
	// With 返回带额外字段的新日志对象，原对象不受影响
	With(ctx ...interface{}) Logger
	Error(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
}

type LogFitter struct {
	driver    LogDriver
	logId     string
	pid       int
	callDepth int

	mu     sync.RWMutex
	fields []interface{}
}

func NewLogFitter(driver LogDriver, logId string) (*LogFitter, error) {
	if driver == nil {
		return nil, fmt.Errorf("new logger param error")
	}
	if logId == "" {
		logId = utils.GenLogId()
	}

	return &LogFitter{
		driver:    driver,
		logId:     logId,
		pid:       os.Getpid(),
		callDepth: DefaultCallDepth,
	}, nil
}

func (t *LogFitter) GetLogId() string {
	return t.logId
}

func (t *LogFitter) SetCommField(key string, value interface{}) {
	if key == "" || value == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.fields = append(t.fields, key, value)
}

func (t *LogFitter) With(ctx ...interface{}) Logger {
	child := &LogFitter{
		driver:    t.driver,
		logId:     t.logId,
		pid:       t.pid,
		callDepth: t.callDepth,
	}
	child.fields = append(t.commFields(), pairs(ctx)...)
	return child
}

func (t *LogFitter) Error(msg string, ctx ...interface{}) { t.output(t.driver.Error, msg, ctx) }
func (t *LogFitter) Warn(msg string, ctx ...interface{})  { t.output(t.driver.Warn, msg, ctx) }
func (t *LogFitter) Info(msg string, ctx ...interface{})  { t.output(t.driver.Info, msg, ctx) }
func (t *LogFitter) Trace(msg string, ctx ...interface{}) { t.output(t.driver.Trace, msg, ctx) }
func (t *LogFitter) Debug(msg string, ctx ...interface{}) { t.output(t.driver.Debug, msg, ctx) }

func (t *LogFitter) commFields() []interface{} {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]interface{}, len(t.fields))
	copy(out, t.fields)
	return out
}

// output 拼装保留字段、公共字段和本次字段，ctx以log_id开头时替换默认log_id
func (t *LogFitter) output(write func(string, ...interface{}), msg string, ctx []interface{}) {
	if t.driver == nil {
		return
	}
	fileLine, _ := utils.GetFuncCall(t.callDepth)

	ctx = pairs(ctx)
	logId := interface{}(t.logId)
	if len(ctx) > 1 && fmt.Sprint(ctx[0]) == CommFieldLogId {
		logId = ctx[1]
		ctx = ctx[2:]
	}

	line := make([]interface{}, 0, 6+len(t.fields)+len(ctx))
	line = append(line, CommFieldLogId, logId, CommFieldCall, fileLine, CommFieldPid, t.pid)
	line = append(line, t.commFields()...)
	line = append(line, ctx...)
	write(msg, line...)
}

// pairs 奇数个参数时最后一个值补上key
func pairs(ctx []interface{}) []interface{} {
	if len(ctx)%2 == 0 {
		return ctx
	}
	out := make([]interface{}, 0, len(ctx)+1)
	out = append(out, ctx[:len(ctx)-1]...)
	return append(out, "unknow", ctx[len(ctx)-1])
}
