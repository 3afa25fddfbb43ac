package protocol

import (
	"bytes"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
)

type ResponseKind byte

const (
	KindGameteCreationResponse ResponseKind = iota + 1
	KindInitialPackageInstallResponse
	KindInitializationResponse
	KindPackageInstallSuccess
	KindPackageInstallFailed
	KindConstructorCallSuccess
	KindConstructorCallException
	KindConstructorCallFailed
	KindMethodCallVoidSuccess
	KindMethodCallValueSuccess
	KindMethodCallException
	KindMethodCallFailed
)

var responseKindNames = map[ResponseKind]string{
	KindGameteCreationResponse:        "GameteCreation",
	KindInitialPackageInstallResponse: "InitialPackageInstall",
	KindInitializationResponse:        "Initialization",
	KindPackageInstallSuccess:         "PackageInstallSuccess",
	KindPackageInstallFailed:          "PackageInstallFailed",
	KindConstructorCallSuccess:        "ConstructorCallSuccess",
	KindConstructorCallException:      "ConstructorCallExceptionedInCode",
	KindConstructorCallFailed:         "ConstructorCallFailed",
	KindMethodCallVoidSuccess:         "MethodCallVoidSuccess",
	KindMethodCallValueSuccess:        "MethodCallValueSuccess",
	KindMethodCallException:           "MethodCallExceptionedInCode",
	KindMethodCallFailed:              "MethodCallFailed",
}

func (k ResponseKind) String() string {
	if name, ok := responseKindNames[k]; ok {
		return name
	}
	return "Unknown(" + strconv.Itoa(int(k)) + ")"
}

// Response 执行请求的结果
type Response interface {
	ResponseKind() ResponseKind
	GetUpdates() []Update
	encodeBody(e *Encoder)
}

// NonInitialResponse 非初始请求的结果，带gas消耗
type NonInitialResponse interface {
	Response
	GetGasConsumed() GasConsumed
}

// FailedResponse 失败结果，扣除全部gas
type FailedResponse interface {
	NonInitialResponse
	GetFailure() Failure
}

// CodeCallResponse 调用代码后的结果，成功和代码异常时带事件
type CodeCallResponse interface {
	NonInitialResponse
	GetEvents() []StorageReference
}

type GasConsumed struct {
	CPU     *big.Int `json:"cpu"`
	RAM     *big.Int `json:"ram"`
	Storage *big.Int `json:"storage"`
}

func (g GasConsumed) GetGasConsumed() GasConsumed { return g }

// Total CPU+RAM+存储
func (g GasConsumed) Total() *big.Int {
	total := new(big.Int).Add(bigOrZero(g.CPU), bigOrZero(g.RAM))
	return total.Add(total, bigOrZero(g.Storage))
}

func (g GasConsumed) encode(e *Encoder, num int) {
	e.Message(fieldNum(num), func(sub *Encoder) {
		sub.BigInt(1, g.CPU)
		sub.BigInt(2, g.RAM)
		sub.BigInt(3, g.Storage)
	})
}

func decodeGas(d *Decoder, num int) GasConsumed {
	var g GasConsumed
	d.Message(fieldNum(num), func(sub *Decoder) {
		g.CPU = sub.BigInt(1)
		g.RAM = sub.BigInt(2)
		g.Storage = sub.BigInt(3)
	})
	return g
}

// Cause 代码中抛出的异常
type Cause struct {
	ClassNameOfCause string `json:"classNameOfCause"`
	MessageOfCause   string `json:"messageOfCause"`
	Where            string `json:"where"`
}

func (c Cause) encode(e *Encoder, num int) {
	e.Message(fieldNum(num), func(sub *Encoder) {
		sub.String(1, c.ClassNameOfCause)
		sub.String(2, c.MessageOfCause)
		sub.String(3, c.Where)
	})
}

func decodeCause(d *Decoder, num int) Cause {
	var c Cause
	d.Message(fieldNum(num), func(sub *Decoder) {
		c.ClassNameOfCause = sub.String(1)
		c.MessageOfCause = sub.String(2)
		c.Where = sub.String(3)
	})
	return c
}

type Failure struct {
	Cause
	GasConsumedForPenalty *big.Int `json:"gasConsumedForPenalty"`
}

func (f Failure) GetFailure() Failure { return f }

func (f Failure) encode(e *Encoder, num int) {
	e.Message(fieldNum(num), func(sub *Encoder) {
		f.Cause.encode(sub, 1)
		sub.BigInt(2, f.GasConsumedForPenalty)
	})
}

func decodeFailure(d *Decoder, num int) Failure {
	var f Failure
	d.Message(fieldNum(num), func(sub *Decoder) {
		f.Cause = decodeCause(sub, 1)
		f.GasConsumedForPenalty = sub.BigInt(2)
	})
	return f
}

func encodeStorageRefs(e *Encoder, num int, refs []StorageReference) {
	for _, r := range refs {
		encodeStorageRef(e, num, r)
	}
}

func decodeStorageRefs(d *Decoder, num int) []StorageReference {
	var refs []StorageReference
	for d.Has(fieldNum(num)) {
		refs = append(refs, decodeStorageRef(d, num))
	}
	return refs
}

type GameteCreationResponse struct {
	Updates Updates `json:"updates"`
	Gamete StorageReference `json:"gamete"`
}

func (r *GameteCreationResponse) GetUpdates() []Update { return r.Updates }

func (r *GameteCreationResponse) ResponseKind() ResponseKind { return KindGameteCreationResponse }

func (r *GameteCreationResponse) encodeBody(e *Encoder) {
	encodeUpdates(e, 1, r.Updates)
	encodeStorageRef(e, 2, r.Gamete)
}

type InitialPackageInstallResponse struct {
	InstrumentedPackage []byte `json:"instrumentedPackage"`
}

func (r *InitialPackageInstallResponse) ResponseKind() ResponseKind {
	return KindInitialPackageInstallResponse
}

func (r *InitialPackageInstallResponse) GetUpdates() []Update { return nil }

func (r *InitialPackageInstallResponse) encodeBody(e *Encoder) {
	e.RawBytes(1, r.InstrumentedPackage)
}

type InitializationResponse struct {
	Updates Updates `json:"updates"`
}

func (r *InitializationResponse) GetUpdates() []Update { return r.Updates }

func (r *InitializationResponse) ResponseKind() ResponseKind { return KindInitializationResponse }

func (r *InitializationResponse) encodeBody(e *Encoder) {
	encodeUpdates(e, 1, r.Updates)
}

type PackageInstallSuccessResponse struct {
	Updates Updates `json:"updates"`
	GasConsumed
	InstrumentedPackage []byte                 `json:"instrumentedPackage"`
	Dependencies        []TransactionReference `json:"dependencies"`
	VerificationVersion uint64                 `json:"verificationVersion"`
}

func (r *PackageInstallSuccessResponse) GetUpdates() []Update { return r.Updates }

func (r *PackageInstallSuccessResponse) ResponseKind() ResponseKind { return KindPackageInstallSuccess }

func (r *PackageInstallSuccessResponse) encodeBody(e *Encoder) {
	encodeUpdates(e, 1, r.Updates)
	r.GasConsumed.encode(e, 2)
	e.RawBytes(3, r.InstrumentedPackage)
	encodeTxRefs(e, 4, r.Dependencies)
	e.Uvarint(5, r.VerificationVersion)
}

type PackageInstallFailedResponse struct {
	Updates Updates `json:"updates"`
	GasConsumed
	Failure
}

func (r *PackageInstallFailedResponse) GetUpdates() []Update { return r.Updates }

func (r *PackageInstallFailedResponse) ResponseKind() ResponseKind { return KindPackageInstallFailed }

func (r *PackageInstallFailedResponse) encodeBody(e *Encoder) {
	encodeFailedBody(e, r.Updates, r.GasConsumed, r.Failure)
}

type ConstructorCallSuccessResponse struct {
	Updates Updates           `json:"updates"`
	Events  StorageReferences `json:"events"`
	GasConsumed
	NewObject StorageReference `json:"newObject"`
}

func (r *ConstructorCallSuccessResponse) GetUpdates() []Update { return r.Updates }

func (r *ConstructorCallSuccessResponse) GetEvents() []StorageReference { return r.Events }

func (r *ConstructorCallSuccessResponse) ResponseKind() ResponseKind {
	return KindConstructorCallSuccess
}

func (r *ConstructorCallSuccessResponse) encodeBody(e *Encoder) {
	encodeUpdates(e, 1, r.Updates)
	encodeStorageRefs(e, 2, r.Events)
	r.GasConsumed.encode(e, 3)
	encodeStorageRef(e, 4, r.NewObject)
}

type ConstructorCallExceptionResponse struct {
	Updates Updates           `json:"updates"`
	Events  StorageReferences `json:"events"`
	GasConsumed
	Cause
}

func (r *ConstructorCallExceptionResponse) GetUpdates() []Update { return r.Updates }

func (r *ConstructorCallExceptionResponse) GetEvents() []StorageReference { return r.Events }

func (r *ConstructorCallExceptionResponse) ResponseKind() ResponseKind {
	return KindConstructorCallException
}

func (r *ConstructorCallExceptionResponse) encodeBody(e *Encoder) {
	encodeExceptionBody(e, r.Updates, r.Events, r.GasConsumed, r.Cause)
}

type ConstructorCallFailedResponse struct {
	Updates Updates `json:"updates"`
	GasConsumed
	Failure
}

func (r *ConstructorCallFailedResponse) GetUpdates() []Update { return r.Updates }

func (r *ConstructorCallFailedResponse) ResponseKind() ResponseKind { return KindConstructorCallFailed }

func (r *ConstructorCallFailedResponse) encodeBody(e *Encoder) {
	encodeFailedBody(e, r.Updates, r.GasConsumed, r.Failure)
}

type MethodCallVoidSuccessResponse struct {
	Updates Updates           `json:"updates"`
	Events  StorageReferences `json:"events"`
	GasConsumed
}

func (r *MethodCallVoidSuccessResponse) GetUpdates() []Update { return r.Updates }

func (r *MethodCallVoidSuccessResponse) GetEvents() []StorageReference { return r.Events }

func (r *MethodCallVoidSuccessResponse) ResponseKind() ResponseKind { return KindMethodCallVoidSuccess }

func (r *MethodCallVoidSuccessResponse) encodeBody(e *Encoder) {
	encodeUpdates(e, 1, r.Updates)
	encodeStorageRefs(e, 2, r.Events)
	r.GasConsumed.encode(e, 3)
}

type MethodCallValueSuccessResponse struct {
	Updates Updates           `json:"updates"`
	Events  StorageReferences `json:"events"`
	GasConsumed
	Result StorageValue `json:"-"`
}

func (r *MethodCallValueSuccessResponse) GetUpdates() []Update { return r.Updates }

func (r *MethodCallValueSuccessResponse) GetEvents() []StorageReference { return r.Events }

func (r *MethodCallValueSuccessResponse) ResponseKind() ResponseKind {
	return KindMethodCallValueSuccess
}

func (r *MethodCallValueSuccessResponse) encodeBody(e *Encoder) {
	encodeUpdates(e, 1, r.Updates)
	encodeStorageRefs(e, 2, r.Events)
	r.GasConsumed.encode(e, 3)
	encodeValue(e, 4, r.Result)
}

type MethodCallExceptionResponse struct {
	Updates Updates           `json:"updates"`
	Events  StorageReferences `json:"events"`
	GasConsumed
	Cause
}

func (r *MethodCallExceptionResponse) GetUpdates() []Update { return r.Updates }

func (r *MethodCallExceptionResponse) GetEvents() []StorageReference { return r.Events }

func (r *MethodCallExceptionResponse) ResponseKind() ResponseKind { return KindMethodCallException }

func (r *MethodCallExceptionResponse) encodeBody(e *Encoder) {
	encodeExceptionBody(e, r.Updates, r.Events, r.GasConsumed, r.Cause)
}

type MethodCallFailedResponse struct {
	Updates Updates `json:"updates"`
	GasConsumed
	Failure
}

func (r *MethodCallFailedResponse) GetUpdates() []Update { return r.Updates }

func (r *MethodCallFailedResponse) ResponseKind() ResponseKind { return KindMethodCallFailed }

func (r *MethodCallFailedResponse) encodeBody(e *Encoder) {
	encodeFailedBody(e, r.Updates, r.GasConsumed, r.Failure)
}

func encodeFailedBody(e *Encoder, us []Update, gas GasConsumed, f Failure) {
	encodeUpdates(e, 1, us)
	gas.encode(e, 2)
	f.encode(e, 3)
}

func encodeExceptionBody(e *Encoder, us []Update, events []StorageReference, gas GasConsumed, c Cause) {
	encodeUpdates(e, 1, us)
	encodeStorageRefs(e, 2, events)
	gas.encode(e, 3)
	c.encode(e, 4)
}

func decodeFailedBody(d *Decoder) (Updates, GasConsumed, Failure) {
	us := decodeUpdates(d, 1)
	gas := decodeGas(d, 2)
	f := decodeFailure(d, 3)
	return us, gas, f
}

func decodeExceptionBody(d *Decoder) (Updates, []StorageReference, GasConsumed, Cause) {
	us := decodeUpdates(d, 1)
	events := decodeStorageRefs(d, 2)
	gas := decodeGas(d, 3)
	c := decodeCause(d, 4)
	return us, events, gas, c
}

var responseDecoders = map[ResponseKind]func(d *Decoder) Response{
	KindGameteCreationResponse: func(d *Decoder) Response {
		r := &GameteCreationResponse{}
		r.Updates = decodeUpdates(d, 1)
		r.Gamete = decodeStorageRef(d, 2)
		return r
	},
	KindInitialPackageInstallResponse: func(d *Decoder) Response {
		return &InitialPackageInstallResponse{InstrumentedPackage: d.RawBytes(1)}
	},
	KindInitializationResponse: func(d *Decoder) Response {
		r := &InitializationResponse{}
		r.Updates = decodeUpdates(d, 1)
		return r
	},
	KindPackageInstallSuccess: func(d *Decoder) Response {
		r := &PackageInstallSuccessResponse{}
		r.Updates = decodeUpdates(d, 1)
		r.GasConsumed = decodeGas(d, 2)
		r.InstrumentedPackage = d.RawBytes(3)
		r.Dependencies = decodeTxRefs(d, 4)
		r.VerificationVersion = d.Uvarint(5)
		return r
	},
	KindPackageInstallFailed: func(d *Decoder) Response {
		r := &PackageInstallFailedResponse{}
		r.Updates, r.GasConsumed, r.Failure = decodeFailedBody(d)
		return r
	},
	KindConstructorCallSuccess: func(d *Decoder) Response {
		r := &ConstructorCallSuccessResponse{}
		r.Updates = decodeUpdates(d, 1)
		r.Events = decodeStorageRefs(d, 2)
		r.GasConsumed = decodeGas(d, 3)
		r.NewObject = decodeStorageRef(d, 4)
		return r
	},
	KindConstructorCallException: func(d *Decoder) Response {
		r := &ConstructorCallExceptionResponse{}
		r.Updates, r.Events, r.GasConsumed, r.Cause = decodeExceptionBody(d)
		return r
	},
	KindConstructorCallFailed: func(d *Decoder) Response {
		r := &ConstructorCallFailedResponse{}
		r.Updates, r.GasConsumed, r.Failure = decodeFailedBody(d)
		return r
	},
	KindMethodCallVoidSuccess: func(d *Decoder) Response {
		r := &MethodCallVoidSuccessResponse{}
		r.Updates = decodeUpdates(d, 1)
		r.Events = decodeStorageRefs(d, 2)
		r.GasConsumed = decodeGas(d, 3)
		return r
	},
	KindMethodCallValueSuccess: func(d *Decoder) Response {
		r := &MethodCallValueSuccessResponse{}
		r.Updates = decodeUpdates(d, 1)
		r.Events = decodeStorageRefs(d, 2)
		r.GasConsumed = decodeGas(d, 3)
		r.Result = decodeValue(d, 4)
		return r
	},
	KindMethodCallException: func(d *Decoder) Response {
		r := &MethodCallExceptionResponse{}
		r.Updates, r.Events, r.GasConsumed, r.Cause = decodeExceptionBody(d)
		return r
	},
	KindMethodCallFailed: func(d *Decoder) Response {
		r := &MethodCallFailedResponse{}
		r.Updates, r.GasConsumed, r.Failure = decodeFailedBody(d)
		return r
	},
}

func MarshalResponse(resp Response) []byte {
	e := NewEncoder()
	e.Uvarint(1, uint64(resp.ResponseKind()))
	e.Message(2, resp.encodeBody)
	return e.Bytes()
}

func UnmarshalResponse(b []byte) (Response, error) {
	d := NewDecoder(b)
	kind := ResponseKind(d.Uvarint(1))
	if d.Err() != nil {
		return nil, d.Err()
	}
	dec, ok := responseDecoders[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "response kind %d", kind)
	}
	var resp Response
	d.Message(2, func(body *Decoder) {
		resp = dec(body)
	})
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return resp, nil
}

func ResponsesEqual(a, b Response) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return bytes.Equal(MarshalResponse(a), MarshalResponse(b))
}

func IsFailed(resp Response) bool {
	_, ok := resp.(FailedResponse)
	return ok
}

// TransactionRecord 存储中以请求引用为键的一条交易
type TransactionRecord struct {
	Reference TransactionReference
	Request   Request
	Response  Response
}
