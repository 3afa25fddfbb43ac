package protocol

import (
	"bytes"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

type UpdateKind byte

const (
	KindClassTag UpdateKind = iota + 1
	KindUpdateOfField
)

// Update 对象状态的一条变更：类标签或字段值
type Update interface {
	UpdateKind() UpdateKind
	GetObject() StorageReference
	Equal(Update) bool
	String() string
	encodeBody(e *Encoder)
}

// ClassTag 记录对象的类以及定义该类的包
type ClassTag struct {
	Object    StorageReference     `json:"object"`
	ClassName string               `json:"className"`
	Package   TransactionReference `json:"package"`
}

func (u ClassTag) UpdateKind() UpdateKind      { return KindClassTag }
func (u ClassTag) GetObject() StorageReference { return u.Object }

func (u ClassTag) Equal(o Update) bool {
	ou, ok := o.(ClassTag)
	return ok && ou == u
}

func (u ClassTag) String() string {
	return "<" + u.Object.String() + ".class|" + u.ClassName + "|@" + u.Package.String() + ">"
}

func (u ClassTag) encodeBody(e *Encoder) {
	encodeStorageRef(e, 1, u.Object)
	e.String(2, u.ClassName)
	encodeTxRef(e, 3, u.Package)
}

type FieldUpdate struct {
	Object StorageReference `json:"object"`
	Field  FieldSignature   `json:"field"`
	Value  StorageValue     `json:"-"`
}

func (u FieldUpdate) UpdateKind() UpdateKind      { return KindUpdateOfField }
func (u FieldUpdate) GetObject() StorageReference { return u.Object }

func (u FieldUpdate) Equal(o Update) bool {
	ou, ok := o.(FieldUpdate)
	return ok && ou.Object == u.Object && ou.Field == u.Field && valueOrNull(ou.Value).Equal(valueOrNull(u.Value))
}

func (u FieldUpdate) String() string {
	return "<" + u.Object.String() + "|" + u.Field.String() + "|" + valueOrNull(u.Value).String() + ">"
}

func (u FieldUpdate) encodeBody(e *Encoder) {
	encodeStorageRef(e, 1, u.Object)
	encodeFieldSig(e, 2, u.Field)
	encodeValue(e, 3, u.Value)
}

var updateDecoders = map[UpdateKind]func(d *Decoder) Update{
	KindClassTag: func(d *Decoder) Update {
		var u ClassTag
		u.Object = decodeStorageRef(d, 1)
		u.ClassName = d.String(2)
		u.Package = decodeTxRef(d, 3)
		return u
	},
	KindUpdateOfField: func(d *Decoder) Update {
		var u FieldUpdate
		u.Object = decodeStorageRef(d, 1)
		u.Field = decodeFieldSig(d, 2)
		u.Value = decodeValue(d, 3)
		return u
	},
}

func encodeUpdate(e *Encoder, num int, u Update) {
	e.Message(fieldNum(num), func(sub *Encoder) {
		sub.Uvarint(1, uint64(u.UpdateKind()))
		sub.Message(2, u.encodeBody)
	})
}

func decodeUpdate(d *Decoder, num int) Update {
	var u Update
	d.Message(fieldNum(num), func(sub *Decoder) {
		kind := UpdateKind(sub.Uvarint(1))
		if sub.Err() != nil {
			return
		}
		dec, ok := updateDecoders[kind]
		if !ok {
			sub.fail(errors.Wrapf(ErrUnknownKind, "update kind %d", kind))
			return
		}
		sub.Message(2, func(body *Decoder) {
			u = dec(body)
		})
	})
	return u
}

func encodeUpdates(e *Encoder, num int, us []Update) {
	for _, u := range us {
		encodeUpdate(e, num, u)
	}
}

func decodeUpdates(d *Decoder, num int) []Update {
	var us []Update
	for d.Has(fieldNum(num)) {
		u := decodeUpdate(d, num)
		if d.Err() != nil {
			return nil
		}
		us = append(us, u)
	}
	return us
}

func MarshalUpdate(u Update) []byte {
	e := NewEncoder()
	encodeUpdate(e, 1, u)
	return e.Bytes()
}

func UnmarshalUpdate(b []byte) (Update, error) {
	d := NewDecoder(b)
	u := decodeUpdate(d, 1)
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return u, nil
}

// CompareUpdates 规范顺序：先按对象，同一对象类标签在前，字段更新按字段签名排序
func CompareUpdates(a, b Update) int {
	if c := a.GetObject().Compare(b.GetObject()); c != 0 {
		return c
	}
	if a.UpdateKind() != b.UpdateKind() {
		if a.UpdateKind() < b.UpdateKind() {
			return -1
		}
		return 1
	}
	switch ua := a.(type) {
	case ClassTag:
		ub := b.(ClassTag)
		if c := strings.Compare(ua.ClassName, ub.ClassName); c != 0 {
			return c
		}
		return ua.Package.Compare(ub.Package)
	case FieldUpdate:
		ub := b.(FieldUpdate)
		if c := ua.Field.Compare(ub.Field); c != 0 {
			return c
		}
	}
	// 同一字段的不同取值按编码排序，保证结果确定
	return bytes.Compare(MarshalUpdate(a), MarshalUpdate(b))
}

// SortUpdates 返回去重并按规范顺序排列后的新切片
func SortUpdates(us []Update) []Update {
	out := make([]Update, 0, len(us))
	for _, u := range us {
		if u != nil {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return CompareUpdates(out[i], out[j]) < 0
	})

	dedup := out[:0]
	for i, u := range out {
		if i > 0 && u.Equal(dedup[len(dedup)-1]) {
			continue
		}
		dedup = append(dedup, u)
	}
	return dedup
}

func UpdatesEqual(a, b []Update) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// UpdatesOf 过滤出某个对象的更新
func UpdatesOf(us []Update, obj StorageReference) []Update {
	var out []Update
	for _, u := range us {
		if u.GetObject() == obj {
			out = append(out, u)
		}
	}
	return out
}
