package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tmthrgd/go-hex"
)

const TransactionReferenceSize = 32

var ErrInvalidReference = errors.New("invalid reference")

// TransactionReference 请求规范编码的哈希，作为交易在存储中的唯一标识
type TransactionReference [TransactionReferenceSize]byte

func ParseTransactionReference(s string) (TransactionReference, error) {
	var ref TransactionReference
	if len(s) != 2*TransactionReferenceSize {
		return ref, errors.Wrapf(ErrInvalidReference, "bad length %d", len(s))
	}
	if _, err := hex.Decode(ref[:], []byte(s)); err != nil {
		return ref, errors.Wrap(ErrInvalidReference, err.Error())
	}
	return ref, nil
}

func TransactionReferenceFromBytes(b []byte) (TransactionReference, error) {
	var ref TransactionReference
	if len(b) != TransactionReferenceSize {
		return ref, errors.Wrapf(ErrInvalidReference, "bad length %d", len(b))
	}
	copy(ref[:], b)
	return ref, nil
}

func (r TransactionReference) String() string {
	return hex.EncodeToString(r[:])
}

func (r TransactionReference) IsZero() bool {
	return r == TransactionReference{}
}

func (r TransactionReference) Compare(o TransactionReference) int {
	return bytes.Compare(r[:], o[:])
}

func (r TransactionReference) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *TransactionReference) UnmarshalText(text []byte) error {
	ref, err := ParseTransactionReference(string(text))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

// StorageReference 交易Transaction创建的第Progressive个对象
type StorageReference struct {
	Transaction TransactionReference
	Progressive uint64
}

func ParseStorageReference(s string) (StorageReference, error) {
	var ref StorageReference
	pos := strings.IndexByte(s, '#')
	if pos < 0 {
		return ref, errors.Wrapf(ErrInvalidReference, "missing progressive in %q", s)
	}
	tx, err := ParseTransactionReference(s[:pos])
	if err != nil {
		return ref, err
	}
	n, err := strconv.ParseUint(s[pos+1:], 10, 64)
	if err != nil {
		return ref, errors.Wrap(ErrInvalidReference, err.Error())
	}
	ref.Transaction = tx
	ref.Progressive = n
	return ref, nil
}

func (r StorageReference) String() string {
	return fmt.Sprintf("%s#%d", r.Transaction, r.Progressive)
}

func (r StorageReference) IsZero() bool {
	return r.Transaction.IsZero() && r.Progressive == 0
}

func (r StorageReference) Compare(o StorageReference) int {
	if c := r.Transaction.Compare(o.Transaction); c != 0 {
		return c
	}
	switch {
	case r.Progressive < o.Progressive:
		return -1
	case r.Progressive > o.Progressive:
		return 1
	}
	return 0
}

func (r StorageReference) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *StorageReference) UnmarshalText(text []byte) error {
	ref, err := ParseStorageReference(string(text))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

func encodeTxRef(e *Encoder, num int, r TransactionReference) {
	e.RawBytes(fieldNum(num), r[:])
}

func decodeTxRef(d *Decoder, num int) TransactionReference {
	var ref TransactionReference
	b := d.RawBytes(fieldNum(num))
	if d.Err() != nil {
		return ref
	}
	if len(b) != TransactionReferenceSize {
		d.fail(errors.Wrapf(ErrMalformed, "transaction reference of %d bytes", len(b)))
		return ref
	}
	copy(ref[:], b)
	return ref
}

func encodeStorageRef(e *Encoder, num int, r StorageReference) {
	e.Message(fieldNum(num), func(sub *Encoder) {
		encodeTxRef(sub, 1, r.Transaction)
		sub.Uvarint(2, r.Progressive)
	})
}

func decodeStorageRef(d *Decoder, num int) StorageReference {
	var ref StorageReference
	d.Message(fieldNum(num), func(sub *Decoder) {
		ref.Transaction = decodeTxRef(sub, 1)
		ref.Progressive = sub.Uvarint(2)
	})
	return ref
}
