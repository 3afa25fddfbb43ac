package sandbox

import (
	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/gas"
	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/store"
)

var ErrDeserialization = errors.New("deserialization failed")

// Charger 反序列化时的计费回调
type Charger interface {
	ChargeCPU(n uint64) error
	ChargeRAM(n uint64) error
}

// Deserializer 把存储中的对象按需加载为运行时对象。同一个引用总是得到同一个*Object，
// 并记录每个读过的对象的版本
type Deserializer struct {
	reader  store.Reader
	cp      *code.Classpath
	costs   *gas.CostModel
	charger Charger
	cache   map[protocol.StorageReference]*Object
	readSet store.ReadSet
}

func NewDeserializer(reader store.Reader, cp *code.Classpath, costs *gas.CostModel) *Deserializer {
	return &Deserializer{
		reader:  reader,
		cp:      cp,
		costs:   costs,
		cache:   make(map[protocol.StorageReference]*Object),
		readSet: make(store.ReadSet),
	}
}

// SetCharger 进入Initialized之后才开始计费
func (d *Deserializer) SetCharger(c Charger) {
	d.charger = c
}

func (d *Deserializer) ReadSet() store.ReadSet {
	return d.readSet
}

func (d *Deserializer) Classpath() *code.Classpath {
	return d.cp
}

// Deserialize 存储值转换为运行时值，引用被加载为对象
func (d *Deserializer) Deserialize(v protocol.StorageValue) (code.Value, error) {
	if ref, ok := v.(protocol.StorageReference); ok {
		return d.Object(ref)
	}
	rv, ok := toRuntime(v)
	if !ok {
		return nil, errors.Wrapf(ErrDeserialization, "unknown value %v", v)
	}
	return rv, nil
}

// Object 加载持久化对象；eager字段立即转换，引用字段懒加载
func (d *Deserializer) Object(ref protocol.StorageReference) (*Object, error) {
	if obj, ok := d.cache[ref]; ok {
		return obj, nil
	}

	state, err := d.reader.State(ref)
	if err != nil {
		return nil, errors.Wrapf(ErrDeserialization, "state of %s: %v", ref, err)
	}
	version, err := d.reader.Version(ref)
	if err != nil {
		return nil, errors.Wrapf(ErrDeserialization, "version of %s: %v", ref, err)
	}

	var className string
	stored := make(map[protocol.FieldSignature]protocol.StorageValue)
	for _, u := range state {
		switch tu := u.(type) {
		case protocol.ClassTag:
			className = tu.ClassName
		case protocol.FieldUpdate:
			stored[tu.Field] = tu.Value
		}
	}
	if className == "" {
		return nil, errors.Wrapf(ErrDeserialization, "object %s has no class tag", ref)
	}
	class, err := d.cp.Class(className)
	if err != nil {
		return nil, errors.Wrapf(ErrDeserialization, "object %s: %v", ref, err)
	}

	fields := d.cp.Fields(className)
	if d.charger != nil {
		if err := d.charger.ChargeCPU(d.costs.CPUCostOfDeserialization); err != nil {
			return nil, err
		}
		if err := d.charger.ChargeRAM(d.costs.RAMCostOfObjectWith(len(fields))); err != nil {
			return nil, err
		}
	}

	obj := newObject(ref, class, fields, false)
	for _, f := range fields {
		sv, ok := stored[f]
		if !ok {
			sv = protocol.Null
		}
		s := &slot{stored: sv}
		if rv, eager := toRuntime(sv); eager {
			s.value = rv
			s.loaded = true
		}
		obj.slots[f] = s
	}

	d.cache[ref] = obj
	d.readSet[ref] = version
	return obj, nil
}

// load 第一次读取引用字段时加载目标对象
func (d *Deserializer) load(s *slot) error {
	if s.loaded {
		return nil
	}
	v, err := d.Deserialize(s.stored)
	if err != nil {
		return err
	}
	s.value = v
	s.loaded = true
	return nil
}

// Lookup 已经加载过的对象
func (d *Deserializer) Lookup(ref protocol.StorageReference) (*Object, bool) {
	obj, ok := d.cache[ref]
	return obj, ok
}

// Loaded 加载过的持久化对象个数
func (d *Deserializer) Loaded() int {
	return len(d.cache)
}
