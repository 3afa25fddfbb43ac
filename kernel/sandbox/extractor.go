package sandbox

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/protocol"
)

// ExtractUpdates 从roots和事件出发遍历可达对象，收集状态变化。
// 新对象输出类标签和全部字段，持久化对象只输出已加载且值变化的字段。
// 结果已经排序去重
func (e *Execution) ExtractUpdates(roots ...*Object) ([]protocol.Update, error) {
	seen := mapset.NewThreadUnsafeSet[protocol.StorageReference]()
	var updates []protocol.Update

	stack := make([]*Object, 0, len(roots)+len(e.events))
	stack = append(stack, roots...)
	stack = append(stack, e.events...)
	// 加载过的持久化对象即使已不可达，它的修改也要保存
	for _, obj := range e.deser.cache {
		stack = append(stack, obj)
	}

	for len(stack) > 0 {
		obj := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if obj == nil || !seen.Add(obj.ref) {
			continue
		}

		if obj.fresh {
			updates = append(updates, protocol.ClassTag{
				Object:    obj.ref,
				ClassName: obj.class.Name,
				Package:   obj.class.Package,
			})
		}
		for _, f := range obj.fields {
			s := obj.slots[f]
			if s == nil || !s.loaded {
				// 没有读过的字段不可能被修改
				continue
			}
			if child, ok := s.value.(*Object); ok {
				stack = append(stack, child)
			}
			sv, err := Serialize(s.value)
			if err != nil {
				return nil, errors.Wrapf(err, "field %s of %s", f, obj.ref)
			}
			if !obj.fresh && sv.Equal(valueOrNull(s.stored)) {
				continue
			}
			updates = append(updates, protocol.FieldUpdate{Object: obj.ref, Field: f, Value: sv})
		}
	}
	return protocol.SortUpdates(updates), nil
}

func valueOrNull(v protocol.StorageValue) protocol.StorageValue {
	if v == nil {
		return protocol.Null
	}
	return v
}
