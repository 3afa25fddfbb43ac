package store

import (
	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/protocol"
)

var (
	ErrNotFound = errors.New("not found in store")
	// ErrConflict 提交时读集中的对象已被其他交易修改
	ErrConflict = errors.New("read set conflict")
	ErrClosed   = errors.New("store closed")
)

// ReadSet 执行期间读过的对象及其版本（最后一次修改它的交易）
type ReadSet map[protocol.StorageReference]protocol.TransactionReference

// Merge 把other合并进来，已有的版本不覆盖
func (rs ReadSet) Merge(other ReadSet) {
	for ref, ver := range other {
		if _, ok := rs[ref]; !ok {
			rs[ref] = ver
		}
	}
}

// Reader 已提交状态的只读视图
type Reader interface {
	Request(ref protocol.TransactionReference) (protocol.Request, error)
	Response(ref protocol.TransactionReference) (protocol.Response, error)
	// ClassTag 对象创建时的类标签
	ClassTag(obj protocol.StorageReference) (protocol.ClassTag, error)
	// State 对象的类标签以及每个字段的最新值，按规范顺序
	State(obj protocol.StorageReference) ([]protocol.Update, error)
	// Version 最后修改对象的交易
	Version(obj protocol.StorageReference) (protocol.TransactionReference, error)
	// History 修改过对象的交易，新的在前
	History(obj protocol.StorageReference) ([]protocol.TransactionReference, error)
	Manifest() (protocol.StorageReference, error)
	IsInitialized() (bool, error)
}

// Snapshot 某一时刻的一致性视图，使用完必须Release
type Snapshot interface {
	Reader
	Release()
}

// Store 追加写的对象存储，提交串行执行
type Store interface {
	Reader
	Snapshot() (Snapshot, error)
	// Commit 校验读集后写入交易，读集中任何对象版本变化都返回ErrConflict
	Commit(record *protocol.TransactionRecord, readSet ReadSet) error
	Close() error
}
