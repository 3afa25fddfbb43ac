package objstore

import (
	"encoding/binary"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/xuperchain/objcore/kernel/protocol"
)

// 表前缀
const (
	RequestTablePrefix  = "q/"
	ResponseTablePrefix = "r/"
	StateTablePrefix    = "s/"
	HistoryTablePrefix  = "h/"
	ManifestKey         = "m/manifest"
)

// 响应记录的首字节
const (
	encodingRaw    byte = 0
	encodingSnappy byte = 1
)

var errCorrupted = errors.New("corrupted record")

func requestKey(ref protocol.TransactionReference) []byte {
	return append([]byte(RequestTablePrefix), ref[:]...)
}

func responseKey(ref protocol.TransactionReference) []byte {
	return append([]byte(ResponseTablePrefix), ref[:]...)
}

func objectKey(prefix string, obj protocol.StorageReference) []byte {
	key := make([]byte, 0, len(prefix)+protocol.TransactionReferenceSize+8)
	key = append(key, prefix...)
	key = append(key, obj.Transaction[:]...)
	return binary.BigEndian.AppendUint64(key, obj.Progressive)
}

func encodeStorageRef(obj protocol.StorageReference) []byte {
	return objectKey("", obj)
}

func decodeStorageRef(b []byte) (protocol.StorageReference, error) {
	if len(b) != protocol.TransactionReferenceSize+8 {
		return protocol.StorageReference{}, errCorrupted
	}
	tx, err := protocol.TransactionReferenceFromBytes(b[:protocol.TransactionReferenceSize])
	if err != nil {
		return protocol.StorageReference{}, err
	}
	return protocol.StorageReference{
		Transaction: tx,
		Progressive: binary.BigEndian.Uint64(b[protocol.TransactionReferenceSize:]),
	}, nil
}

func encodeResponse(resp protocol.Response, compress bool) []byte {
	raw := protocol.MarshalResponse(resp)
	if !compress {
		return append([]byte{encodingRaw}, raw...)
	}
	return append([]byte{encodingSnappy}, snappy.Encode(nil, raw)...)
}

func decodeResponse(b []byte) (protocol.Response, error) {
	if len(b) == 0 {
		return nil, errCorrupted
	}
	raw := b[1:]
	switch b[0] {
	case encodingRaw:
	case encodingSnappy:
		var err error
		if raw, err = snappy.Decode(nil, raw); err != nil {
			return nil, errors.Wrap(errCorrupted, err.Error())
		}
	default:
		return nil, errors.Wrapf(errCorrupted, "unknown encoding %d", b[0])
	}
	return protocol.UnmarshalResponse(raw)
}

// encodeState 每个更新按长度前缀依次写入
func encodeState(updates []protocol.Update) []byte {
	var b []byte
	for _, u := range updates {
		b = protowire.AppendBytes(b, protocol.MarshalUpdate(u))
	}
	return b
}

func decodeState(b []byte) ([]protocol.Update, error) {
	var updates []protocol.Update
	for len(b) > 0 {
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, errors.Wrap(errCorrupted, protowire.ParseError(n).Error())
		}
		u, err := protocol.UnmarshalUpdate(raw)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
		b = b[n:]
	}
	return updates, nil
}

// history 是交易引用的拼接，新的在前
func decodeHistory(b []byte) ([]protocol.TransactionReference, error) {
	if len(b)%protocol.TransactionReferenceSize != 0 {
		return nil, errCorrupted
	}
	refs := make([]protocol.TransactionReference, 0, len(b)/protocol.TransactionReferenceSize)
	for ; len(b) > 0; b = b[protocol.TransactionReferenceSize:] {
		ref, err := protocol.TransactionReferenceFromBytes(b[:protocol.TransactionReferenceSize])
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
