// 请求处理
package objnode

import (
	"context"

	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/common/xerror"
	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/response"
	"github.com/xuperchain/objcore/kernel/store"
	"github.com/xuperchain/objcore/lib/metrics"
	"github.com/xuperchain/objcore/lib/timer"
)

// task 一个待处理的请求，相同请求的提交方共享同一个task
type task struct {
	req  protocol.Request
	ref  protocol.TransactionReference
	done chan struct{}
	resp protocol.Response
	err  error
}

func newTask(req protocol.Request, ref protocol.TransactionReference) *task {
	return &task{req: req, ref: ref, done: make(chan struct{})}
}

func (tk *task) finish(resp protocol.Response, err error) {
	tk.resp = resp
	tk.err = err
	close(tk.done)
}

func errNodeStopped() error {
	return xerror.ErrNodeStopped
}

// Submit 提交请求并等待响应提交到存储
// ctx到期只是不再等待，请求仍然会被处理
func (t *ObjNode) Submit(ctx context.Context, req protocol.Request) (protocol.TransactionReference, protocol.Response, error) {
	if req == nil {
		return protocol.TransactionReference{}, nil, xerror.ErrParameter.More("nil request")
	}
	ref := t.engine.Reference(req)

	tk, err := t.enqueue(req, ref)
	if err != nil {
		return ref, nil, err
	}
	if tk == nil {
		// 已经提交过
		resp, err := t.GetResponse(ref)
		return ref, resp, err
	}

	select {
	case <-ctx.Done():
		return ref, nil, ctx.Err()
	case <-tk.done:
		return ref, tk.resp, tk.err
	}
}

// enqueue 请求已提交时返回nil，处理中的请求复用原来的task
func (t *ObjNode) enqueue(req protocol.Request, ref protocol.TransactionReference) (*task, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.stopped {
		return nil, errNodeStopped()
	}
	if tk, ok := t.pending[ref]; ok {
		return tk, nil
	}
	if t.conf.QueueSize > 0 && t.queue.Len() >= t.conf.QueueSize {
		return nil, xerror.ErrForbidden.More("request queue is full")
	}
	if _, err := t.store.Response(ref); err == nil {
		return nil, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, xerror.ErrStoreFailed.More("%v", err)
	}
	// 重新提交被拒绝的请求时再检查一次
	t.handled.Delete(ref.String())

	tk := newTask(req, ref)
	t.pending[ref] = tk
	t.queue.PushBack(tk)
	metrics.NodePendingGauge.Inc()

	select {
	case t.notify <- struct{}{}:
	default:
	}
	return tk, nil
}

func (t *ObjNode) pop() *task {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.queue.Len() == 0 {
		return nil
	}
	metrics.NodePendingGauge.Dec()
	return t.queue.PopFront().(*task)
}

// drain 按提交顺序逐个处理，一次只有一个提交
func (t *ObjNode) drain() {
	for {
		select {
		case <-t.exitCh:
			return
		default:
		}

		tk := t.pop()
		if tk == nil {
			return
		}
		resp, err := t.process(tk)

		t.mutex.Lock()
		delete(t.pending, tk.ref)
		t.mutex.Unlock()
		if err != nil && response.IsRejected(err) {
			t.handled.Set(tk.ref.String(), err, t.conf.RequestCacheTTL)
		}
		tk.finish(resp, err)
	}
}

// process 在最新快照上构造响应并提交，读集冲突时重新构造
func (t *ObjNode) process(tk *task) (protocol.Response, error) {
	xt := timer.NewXTimer()
	var lastErr error
	for i := 0; i < MaxCommitRetry; i++ {
		res, err := t.build(tk.req)
		xt.Mark("build")
		if err != nil {
			t.log.Debug("request not accepted", "tx", tk.ref.String(), "err", err)
			return nil, err
		}

		err = t.store.Commit(res.Record, res.ReadSet)
		xt.Mark("commit")
		if cost, _ := xt.Cost("commit"); cost > SlowCommitTime {
			t.log.Warn("slow commit", "tx", tk.ref.String(), "cost", cost.String())
		}
		if err == nil {
			t.log.Info("request handled", "tx", tk.ref.String(),
				"response", res.Record.Response.ResponseKind().String(), "retry", i,
				"timer", xt.Print())
			return res.Record.Response, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			t.log.Warn("commit failed", "tx", tk.ref.String(), "err", err)
			return nil, xerror.ErrStoreFailed.More("%v", err)
		}
		t.log.Debug("commit conflict, rebuild", "tx", tk.ref.String(), "err", err)
		lastErr = err
	}
	return nil, xerror.ErrConflict.More("%v", lastErr)
}

func (t *ObjNode) build(req protocol.Request) (*response.Result, error) {
	snap, err := t.store.Snapshot()
	if err != nil {
		return nil, xerror.ErrStoreFailed.More("%v", err)
	}
	defer snap.Release()
	return t.engine.Build(snap, req)
}
