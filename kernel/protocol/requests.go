package protocol

import (
	"bytes"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
)

type RequestKind byte

const (
	KindInitialPackageInstall RequestKind = iota + 1
	KindGameteCreation
	KindInitialization
	KindPackageInstall
	KindConstructorCall
	KindInstanceMethodCall
	KindStaticMethodCall
	KindInstanceSystemMethodCall
)

var requestKindNames = map[RequestKind]string{
	KindInitialPackageInstall:    "InitialPackageInstall",
	KindGameteCreation:           "GameteCreation",
	KindInitialization:           "Initialization",
	KindPackageInstall:           "PackageInstall",
	KindConstructorCall:          "ConstructorCall",
	KindInstanceMethodCall:       "InstanceMethodCall",
	KindStaticMethodCall:         "StaticMethodCall",
	KindInstanceSystemMethodCall: "InstanceSystemMethodCall",
}

func (k RequestKind) String() string {
	if name, ok := requestKindNames[k]; ok {
		return name
	}
	return "Unknown(" + strconv.Itoa(int(k)) + ")"
}

// Request 交易请求，创建后不可修改
type Request interface {
	RequestKind() RequestKind
	encodeBody(e *Encoder, withSignature bool)
}

// InitialRequest 节点初始化之前才允许执行的请求
type InitialRequest interface {
	Request
	initial()
}

// NonInitialRequest 有调用方并消耗gas的请求
type NonInitialRequest interface {
	Request
	GetCaller() StorageReference
	GetNonce() *big.Int
	GetChainID() string
	GetGasLimit() *big.Int
	GetGasPrice() *big.Int
	GetClasspath() TransactionReference
}

// SignedRequest 需要调用方签名的请求
type SignedRequest interface {
	NonInitialRequest
	GetSignature() []byte
	SetSignature(sig []byte)
}

// CodeCallRequest 调用构造函数或方法的请求
type CodeCallRequest interface {
	NonInitialRequest
	GetActuals() []StorageValue
}

type MethodCallRequest interface {
	CodeCallRequest
	GetMethod() MethodSignature
}

// InstanceCallRequest 有接收者的方法调用
type InstanceCallRequest interface {
	MethodCallRequest
	GetReceiver() StorageReference
}

func IsInitial(req Request) bool {
	_, ok := req.(InitialRequest)
	return ok
}

// TransactionCommon 非初始请求的公共字段
type TransactionCommon struct {
	Caller    StorageReference     `json:"caller"`
	Nonce     *big.Int             `json:"nonce"`
	ChainID   string               `json:"chainId"`
	GasLimit  *big.Int             `json:"gasLimit"`
	GasPrice  *big.Int             `json:"gasPrice"`
	Classpath TransactionReference `json:"classpath"`
	Signature []byte               `json:"signature,omitempty"`
}

func (c *TransactionCommon) GetCaller() StorageReference        { return c.Caller }
func (c *TransactionCommon) GetNonce() *big.Int                 { return bigOrZero(c.Nonce) }
func (c *TransactionCommon) GetChainID() string                 { return c.ChainID }
func (c *TransactionCommon) GetGasLimit() *big.Int              { return bigOrZero(c.GasLimit) }
func (c *TransactionCommon) GetGasPrice() *big.Int              { return bigOrZero(c.GasPrice) }
func (c *TransactionCommon) GetClasspath() TransactionReference { return c.Classpath }
func (c *TransactionCommon) GetSignature() []byte               { return c.Signature }
func (c *TransactionCommon) SetSignature(sig []byte)            { c.Signature = sig }

func (c *TransactionCommon) encode(e *Encoder, num int, withSignature bool) {
	e.Message(fieldNum(num), func(sub *Encoder) {
		encodeStorageRef(sub, 1, c.Caller)
		sub.BigInt(2, c.Nonce)
		sub.String(3, c.ChainID)
		sub.BigInt(4, c.GasLimit)
		sub.BigInt(5, c.GasPrice)
		encodeTxRef(sub, 6, c.Classpath)
		if withSignature {
			sub.RawBytes(7, c.Signature)
		} else {
			sub.RawBytes(7, nil)
		}
	})
}

func (c *TransactionCommon) decode(d *Decoder, num int) {
	d.Message(fieldNum(num), func(sub *Decoder) {
		c.Caller = decodeStorageRef(sub, 1)
		c.Nonce = sub.BigInt(2)
		c.ChainID = sub.String(3)
		c.GasLimit = sub.BigInt(4)
		c.GasPrice = sub.BigInt(5)
		c.Classpath = decodeTxRef(sub, 6)
		c.Signature = sub.RawBytes(7)
	})
}

// InitialPackageInstallRequest 初始化前安装包，不消耗gas
type InitialPackageInstallRequest struct {
	Package      []byte                 `json:"package"`
	Dependencies []TransactionReference `json:"dependencies"`
}

func (r *InitialPackageInstallRequest) RequestKind() RequestKind { return KindInitialPackageInstall }
func (r *InitialPackageInstallRequest) initial()                 {}

func (r *InitialPackageInstallRequest) encodeBody(e *Encoder, _ bool) {
	e.RawBytes(1, r.Package)
	encodeTxRefs(e, 2, r.Dependencies)
}

// GameteCreationRequest 创建持有初始资金的gamete账户
type GameteCreationRequest struct {
	Classpath     TransactionReference `json:"classpath"`
	InitialAmount *big.Int             `json:"initialAmount"`
	PublicKey     string               `json:"publicKey"`
}

func (r *GameteCreationRequest) RequestKind() RequestKind { return KindGameteCreation }
func (r *GameteCreationRequest) initial()                 {}

func (r *GameteCreationRequest) encodeBody(e *Encoder, _ bool) {
	encodeTxRef(e, 1, r.Classpath)
	e.BigInt(2, r.InitialAmount)
	e.String(3, r.PublicKey)
}

// InitializationRequest 设置manifest，之后节点不再接受初始请求
type InitializationRequest struct {
	Classpath TransactionReference `json:"classpath"`
	Manifest  StorageReference     `json:"manifest"`
}

func (r *InitializationRequest) RequestKind() RequestKind { return KindInitialization }
func (r *InitializationRequest) initial()                 {}

func (r *InitializationRequest) encodeBody(e *Encoder, _ bool) {
	encodeTxRef(e, 1, r.Classpath)
	encodeStorageRef(e, 2, r.Manifest)
}

type PackageInstallRequest struct {
	TransactionCommon
	Package      []byte                 `json:"package"`
	Dependencies []TransactionReference `json:"dependencies"`
}

func (r *PackageInstallRequest) RequestKind() RequestKind { return KindPackageInstall }

func (r *PackageInstallRequest) encodeBody(e *Encoder, withSignature bool) {
	r.TransactionCommon.encode(e, 1, withSignature)
	e.RawBytes(2, r.Package)
	encodeTxRefs(e, 3, r.Dependencies)
}

type ConstructorCallRequest struct {
	TransactionCommon
	Constructor ConstructorSignature `json:"constructor"`
	Actuals     StorageValues        `json:"actuals"`
}

func (r *ConstructorCallRequest) RequestKind() RequestKind     { return KindConstructorCall }
func (r *ConstructorCallRequest) GetActuals() []StorageValue { return r.Actuals }

func (r *ConstructorCallRequest) encodeBody(e *Encoder, withSignature bool) {
	r.TransactionCommon.encode(e, 1, withSignature)
	encodeConstructorSig(e, 2, r.Constructor)
	encodeValues(e, 3, r.Actuals)
}

type InstanceMethodCallRequest struct {
	TransactionCommon
	Method   MethodSignature  `json:"method"`
	Receiver StorageReference `json:"receiver"`
	Actuals  StorageValues    `json:"actuals"`
}

func (r *InstanceMethodCallRequest) RequestKind() RequestKind        { return KindInstanceMethodCall }
func (r *InstanceMethodCallRequest) GetActuals() []StorageValue    { return r.Actuals }
func (r *InstanceMethodCallRequest) GetMethod() MethodSignature    { return r.Method }
func (r *InstanceMethodCallRequest) GetReceiver() StorageReference { return r.Receiver }

func (r *InstanceMethodCallRequest) encodeBody(e *Encoder, withSignature bool) {
	r.TransactionCommon.encode(e, 1, withSignature)
	encodeMethodSig(e, 2, r.Method)
	encodeStorageRef(e, 3, r.Receiver)
	encodeValues(e, 4, r.Actuals)
}

type StaticMethodCallRequest struct {
	TransactionCommon
	Method  MethodSignature `json:"method"`
	Actuals StorageValues   `json:"actuals"`
}

func (r *StaticMethodCallRequest) RequestKind() RequestKind     { return KindStaticMethodCall }
func (r *StaticMethodCallRequest) GetActuals() []StorageValue { return r.Actuals }
func (r *StaticMethodCallRequest) GetMethod() MethodSignature { return r.Method }

func (r *StaticMethodCallRequest) encodeBody(e *Encoder, withSignature bool) {
	r.TransactionCommon.encode(e, 1, withSignature)
	encodeMethodSig(e, 2, r.Method)
	encodeValues(e, 3, r.Actuals)
}

// InstanceSystemMethodCallRequest 节点内部发起的调用，不签名，gas价格为0
type InstanceSystemMethodCallRequest struct {
	Caller    StorageReference     `json:"caller"`
	Nonce     *big.Int             `json:"nonce"`
	GasLimit  *big.Int             `json:"gasLimit"`
	Classpath TransactionReference `json:"classpath"`
	Method    MethodSignature      `json:"method"`
	Receiver  StorageReference     `json:"receiver"`
	Actuals   StorageValues        `json:"actuals"`
}

func (r *InstanceSystemMethodCallRequest) RequestKind() RequestKind {
	return KindInstanceSystemMethodCall
}

func (r *InstanceSystemMethodCallRequest) GetCaller() StorageReference        { return r.Caller }
func (r *InstanceSystemMethodCallRequest) GetNonce() *big.Int                 { return bigOrZero(r.Nonce) }
func (r *InstanceSystemMethodCallRequest) GetChainID() string                 { return "" }
func (r *InstanceSystemMethodCallRequest) GetGasLimit() *big.Int              { return bigOrZero(r.GasLimit) }
func (r *InstanceSystemMethodCallRequest) GetGasPrice() *big.Int              { return new(big.Int) }
func (r *InstanceSystemMethodCallRequest) GetClasspath() TransactionReference { return r.Classpath }
func (r *InstanceSystemMethodCallRequest) GetActuals() []StorageValue        { return r.Actuals }
func (r *InstanceSystemMethodCallRequest) GetMethod() MethodSignature        { return r.Method }
func (r *InstanceSystemMethodCallRequest) GetReceiver() StorageReference     { return r.Receiver }

func (r *InstanceSystemMethodCallRequest) encodeBody(e *Encoder, _ bool) {
	encodeStorageRef(e, 1, r.Caller)
	e.BigInt(2, r.Nonce)
	e.BigInt(3, r.GasLimit)
	encodeTxRef(e, 4, r.Classpath)
	encodeMethodSig(e, 5, r.Method)
	encodeStorageRef(e, 6, r.Receiver)
	encodeValues(e, 7, r.Actuals)
}

var requestDecoders = map[RequestKind]func(d *Decoder) Request{
	KindInitialPackageInstall: func(d *Decoder) Request {
		r := &InitialPackageInstallRequest{}
		r.Package = d.RawBytes(1)
		r.Dependencies = decodeTxRefs(d, 2)
		return r
	},
	KindGameteCreation: func(d *Decoder) Request {
		r := &GameteCreationRequest{}
		r.Classpath = decodeTxRef(d, 1)
		r.InitialAmount = d.BigInt(2)
		r.PublicKey = d.String(3)
		return r
	},
	KindInitialization: func(d *Decoder) Request {
		r := &InitializationRequest{}
		r.Classpath = decodeTxRef(d, 1)
		r.Manifest = decodeStorageRef(d, 2)
		return r
	},
	KindPackageInstall: func(d *Decoder) Request {
		r := &PackageInstallRequest{}
		r.TransactionCommon.decode(d, 1)
		r.Package = d.RawBytes(2)
		r.Dependencies = decodeTxRefs(d, 3)
		return r
	},
	KindConstructorCall: func(d *Decoder) Request {
		r := &ConstructorCallRequest{}
		r.TransactionCommon.decode(d, 1)
		r.Constructor = decodeConstructorSig(d, 2)
		r.Actuals = decodeValues(d, 3)
		return r
	},
	KindInstanceMethodCall: func(d *Decoder) Request {
		r := &InstanceMethodCallRequest{}
		r.TransactionCommon.decode(d, 1)
		r.Method = decodeMethodSig(d, 2)
		r.Receiver = decodeStorageRef(d, 3)
		r.Actuals = decodeValues(d, 4)
		return r
	},
	KindStaticMethodCall: func(d *Decoder) Request {
		r := &StaticMethodCallRequest{}
		r.TransactionCommon.decode(d, 1)
		r.Method = decodeMethodSig(d, 2)
		r.Actuals = decodeValues(d, 3)
		return r
	},
	KindInstanceSystemMethodCall: func(d *Decoder) Request {
		r := &InstanceSystemMethodCallRequest{}
		r.Caller = decodeStorageRef(d, 1)
		r.Nonce = d.BigInt(2)
		r.GasLimit = d.BigInt(3)
		r.Classpath = decodeTxRef(d, 4)
		r.Method = decodeMethodSig(d, 5)
		r.Receiver = decodeStorageRef(d, 6)
		r.Actuals = decodeValues(d, 7)
		return r
	},
}

func marshalRequest(req Request, withSignature bool) []byte {
	e := NewEncoder()
	e.Uvarint(1, uint64(req.RequestKind()))
	e.Message(2, func(sub *Encoder) {
		req.encodeBody(sub, withSignature)
	})
	return e.Bytes()
}

// MarshalRequest 请求的规范二进制编码
func MarshalRequest(req Request) []byte {
	return marshalRequest(req, true)
}

// SignedBytes 签名覆盖的内容：签名字段置空后的规范编码
func SignedBytes(req Request) []byte {
	return marshalRequest(req, false)
}

func UnmarshalRequest(b []byte) (Request, error) {
	d := NewDecoder(b)
	kind := RequestKind(d.Uvarint(1))
	if d.Err() != nil {
		return nil, d.Err()
	}
	dec, ok := requestDecoders[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "request kind %d", kind)
	}
	var req Request
	d.Message(2, func(body *Decoder) {
		req = dec(body)
	})
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return req, nil
}

// RequestsEqual 结构相等即规范编码相等
func RequestsEqual(a, b Request) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return bytes.Equal(MarshalRequest(a), MarshalRequest(b))
}

// Summer 计算摘要，lib/crypto/hash.Hasher满足该接口
type Summer interface {
	Sum(data []byte) []byte
}

// ReferenceOf 请求的交易引用为规范编码的摘要
func ReferenceOf(req Request, h Summer) TransactionReference {
	var ref TransactionReference
	copy(ref[:], h.Sum(MarshalRequest(req)))
	return ref
}

func encodeTxRefs(e *Encoder, num int, refs []TransactionReference) {
	for _, r := range refs {
		encodeTxRef(e, num, r)
	}
}

func decodeTxRefs(d *Decoder, num int) []TransactionReference {
	var refs []TransactionReference
	for d.Has(fieldNum(num)) {
		refs = append(refs, decodeTxRef(d, num))
	}
	return refs
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
