package protocol

import (
	"encoding/json"
	"math/big"

	"github.com/pkg/errors"
)

// Envelope 对外的JSON形式：判别名加上各变体自己的字段
type Envelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

type valueJSON struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

var valueKindsByName = func() map[string]ValueKind {
	m := make(map[string]ValueKind, len(valueKindNames))
	for k, name := range valueKindNames {
		m[name] = k
	}
	return m
}()

func marshalValueJSON(v StorageValue) ([]byte, error) {
	v = valueOrNull(v)
	raw, err := json.Marshal(v.jsonValue())
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Type: v.Kind().String(), Value: raw})
}

func unmarshalValueJSON(data []byte) (StorageValue, error) {
	var vj valueJSON
	if err := json.Unmarshal(data, &vj); err != nil {
		return nil, err
	}
	kind, ok := valueKindsByName[vj.Type]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "value type %q", vj.Type)
	}
	if kind == KindNull {
		return Null, nil
	}

	var err error
	unmarshal := func(dst interface{}) {
		err = json.Unmarshal(vj.Value, dst)
	}
	var v StorageValue
	switch kind {
	case KindBoolean:
		var b bool
		unmarshal(&b)
		v = BooleanValue(b)
	case KindByte:
		var b int8
		unmarshal(&b)
		v = ByteValue(b)
	case KindChar:
		var c uint16
		unmarshal(&c)
		v = CharValue(c)
	case KindShort:
		var s int16
		unmarshal(&s)
		v = ShortValue(s)
	case KindInt:
		var i int32
		unmarshal(&i)
		v = IntValue(i)
	case KindLong:
		var s string
		unmarshal(&s)
		if err == nil {
			i, ok := new(big.Int).SetString(s, 10)
			if !ok || !i.IsInt64() {
				return nil, errors.Wrapf(ErrMalformed, "long %q", s)
			}
			v = LongValue(i.Int64())
		}
	case KindFloat:
		var f float32
		unmarshal(&f)
		v = FloatValue(f)
	case KindDouble:
		var f float64
		unmarshal(&f)
		v = DoubleValue(f)
	case KindBigInteger:
		var s string
		unmarshal(&s)
		if err == nil {
			i, ok := new(big.Int).SetString(s, 10)
			if !ok {
				return nil, errors.Wrapf(ErrMalformed, "big integer %q", s)
			}
			v = BigIntegerOf(i)
		}
	case KindString:
		var s string
		unmarshal(&s)
		v = StringValue(s)
	case KindEnum:
		var e EnumValue
		unmarshal(&e)
		v = e
	case KindReference:
		var r StorageReference
		unmarshal(&r)
		v = r
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s value", vj.Type)
	}
	return v, nil
}

// StorageValues JSON中每个元素都带类型名
type StorageValues []StorageValue

func (vs StorageValues) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, len(vs))
	for i, v := range vs {
		raw, err := marshalValueJSON(v)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return json.Marshal(out)
}

func (vs *StorageValues) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(StorageValues, 0, len(raws))
	for _, raw := range raws {
		v, err := unmarshalValueJSON(raw)
		if err != nil {
			return err
		}
		out = append(out, v)
	}
	*vs = out
	return nil
}

func MarshalValueJSON(v StorageValue) ([]byte, error) {
	return marshalValueJSON(v)
}

func UnmarshalValueJSON(data []byte) (StorageValue, error) {
	return unmarshalValueJSON(data)
}

type fieldUpdateJSON struct {
	Object StorageReference `json:"object"`
	Field  FieldSignature   `json:"field"`
	Value  json.RawMessage  `json:"value"`
}

func (u FieldUpdate) MarshalJSON() ([]byte, error) {
	raw, err := marshalValueJSON(u.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fieldUpdateJSON{u.Object, u.Field, raw})
}

func (u *FieldUpdate) UnmarshalJSON(data []byte) error {
	var fj fieldUpdateJSON
	if err := json.Unmarshal(data, &fj); err != nil {
		return err
	}
	v, err := unmarshalValueJSON(fj.Value)
	if err != nil {
		return err
	}
	*u = FieldUpdate{Object: fj.Object, Field: fj.Field, Value: v}
	return nil
}

var updateKindNames = map[UpdateKind]string{
	KindClassTag:      "classTag",
	KindUpdateOfField: "field",
}

// StorageReferences 空列表编码为[]，与从存储解码出的nil一致
type StorageReferences []StorageReference

func (rs StorageReferences) MarshalJSON() ([]byte, error) {
	if rs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]StorageReference(rs))
}

// Updates JSON中每个元素都是Envelope
type Updates []Update

func (us Updates) MarshalJSON() ([]byte, error) {
	out := make([]Envelope, len(us))
	for i, u := range us {
		body, err := json.Marshal(u)
		if err != nil {
			return nil, err
		}
		out[i] = Envelope{Type: updateKindNames[u.UpdateKind()], Body: body}
	}
	return json.Marshal(out)
}

func (us *Updates) UnmarshalJSON(data []byte) error {
	var envs []Envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return err
	}
	out := make(Updates, 0, len(envs))
	for _, env := range envs {
		switch env.Type {
		case updateKindNames[KindClassTag]:
			var u ClassTag
			if err := json.Unmarshal(env.Body, &u); err != nil {
				return err
			}
			out = append(out, u)
		case updateKindNames[KindUpdateOfField]:
			var u FieldUpdate
			if err := json.Unmarshal(env.Body, &u); err != nil {
				return err
			}
			out = append(out, u)
		default:
			return errors.Wrapf(ErrUnknownKind, "update type %q", env.Type)
		}
	}
	*us = out
	return nil
}

type valueSuccessJSON MethodCallValueSuccessResponse

func (r *MethodCallValueSuccessResponse) MarshalJSON() ([]byte, error) {
	raw, err := marshalValueJSON(r.Result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		*valueSuccessJSON
		Result json.RawMessage `json:"result"`
	}{(*valueSuccessJSON)(r), raw})
}

func (r *MethodCallValueSuccessResponse) UnmarshalJSON(data []byte) error {
	aux := struct {
		*valueSuccessJSON
		Result json.RawMessage `json:"result"`
	}{valueSuccessJSON: (*valueSuccessJSON)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	v, err := unmarshalValueJSON(aux.Result)
	if err != nil {
		return err
	}
	r.Result = v
	return nil
}

var requestFactories = map[RequestKind]func() Request{
	KindInitialPackageInstall:    func() Request { return &InitialPackageInstallRequest{} },
	KindGameteCreation:           func() Request { return &GameteCreationRequest{} },
	KindInitialization:           func() Request { return &InitializationRequest{} },
	KindPackageInstall:           func() Request { return &PackageInstallRequest{} },
	KindConstructorCall:          func() Request { return &ConstructorCallRequest{} },
	KindInstanceMethodCall:       func() Request { return &InstanceMethodCallRequest{} },
	KindStaticMethodCall:         func() Request { return &StaticMethodCallRequest{} },
	KindInstanceSystemMethodCall: func() Request { return &InstanceSystemMethodCallRequest{} },
}

var responseFactories = map[ResponseKind]func() Response{
	KindGameteCreationResponse:        func() Response { return &GameteCreationResponse{} },
	KindInitialPackageInstallResponse: func() Response { return &InitialPackageInstallResponse{} },
	KindInitializationResponse:        func() Response { return &InitializationResponse{} },
	KindPackageInstallSuccess:         func() Response { return &PackageInstallSuccessResponse{} },
	KindPackageInstallFailed:          func() Response { return &PackageInstallFailedResponse{} },
	KindConstructorCallSuccess:        func() Response { return &ConstructorCallSuccessResponse{} },
	KindConstructorCallException:      func() Response { return &ConstructorCallExceptionResponse{} },
	KindConstructorCallFailed:         func() Response { return &ConstructorCallFailedResponse{} },
	KindMethodCallVoidSuccess:         func() Response { return &MethodCallVoidSuccessResponse{} },
	KindMethodCallValueSuccess:        func() Response { return &MethodCallValueSuccessResponse{} },
	KindMethodCallException:           func() Response { return &MethodCallExceptionResponse{} },
	KindMethodCallFailed:              func() Response { return &MethodCallFailedResponse{} },
}

func MarshalRequestJSON(req Request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: req.RequestKind().String(), Body: body})
}

func UnmarshalRequestJSON(data []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	for kind, factory := range requestFactories {
		if kind.String() != env.Type {
			continue
		}
		req := factory()
		if err := json.Unmarshal(env.Body, req); err != nil {
			return nil, errors.Wrapf(err, "decode %s", env.Type)
		}
		return req, nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "request type %q", env.Type)
}

func MarshalResponseJSON(resp Response) ([]byte, error) {
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: resp.ResponseKind().String(), Body: body})
}

func UnmarshalResponseJSON(data []byte) (Response, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	for kind, factory := range responseFactories {
		if kind.String() != env.Type {
			continue
		}
		resp := factory()
		if err := json.Unmarshal(env.Body, resp); err != nil {
			return nil, errors.Wrapf(err, "decode %s", env.Type)
		}
		return resp, nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "response type %q", env.Type)
}
