package context

import (
	"fmt"

	"github.com/xuperchain/objcore/kernel/engines/objnode"
	"github.com/xuperchain/objcore/lib/logs"
	"github.com/xuperchain/objcore/lib/timer"
)

const SubModName = "rpc"

// 请求级别上下文
type ReqCtx interface {
	GetNode() *objnode.ObjNode
	GetLog() logs.Logger
	GetTimer() *timer.XTimer
	GetClientIp() string
}

type ReqCtxImpl struct {
	node     *objnode.ObjNode
	log      logs.Logger
	timer    *timer.XTimer
	clientIp string
}

func NewReqCtx(node *objnode.ObjNode, reqId, clientIp string) (ReqCtx, error) {
	if node == nil {
		return nil, fmt.Errorf("new request context failed because node is nil")
	}

	log, err := logs.NewLogger(reqId, SubModName)
	if err != nil {
		return nil, fmt.Errorf("new request context failed because new logger failed.err:%s", err)
	}

	ctx := &ReqCtxImpl{
		node:     node,
		log:      log,
		timer:    timer.NewXTimer(),
		clientIp: clientIp,
	}

	return ctx, nil
}

func (t *ReqCtxImpl) GetNode() *objnode.ObjNode {
	return t.node
}

func (t *ReqCtxImpl) GetLog() logs.Logger {
	return t.log
}

func (t *ReqCtxImpl) GetTimer() *timer.XTimer {
	return t.timer
}

func (t *ReqCtxImpl) GetClientIp() string {
	return t.clientIp
}
