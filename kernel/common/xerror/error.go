package xerror

import (
	"fmt"
)

const (
	// 处理成功类
	ErrStatusSucc = 200
	// 拒绝处理类错误状态
	ErrStatusRefused = 400
	// 内部错误类错误状态
	ErrStatusInternalErr = 500
)

type Error struct {
	// 用于统计和监控的错误分类（类似http的2xx、4xx、5xx）
	Status int
	// 用于标识具体错误的详细错误码
	Code int
	// 用于说明具体错误的说明信息
	Msg string
}

func CastError(err error) *Error {
	return CastErrorDefault(err, ErrUnknown)
}

func CastErrorDefault(err error, defaultErr *Error) *Error {
	if err == nil {
		return nil
	}
	if defErr, ok := err.(*Error); ok {
		return defErr
	}

	return defaultErr.More("%s", err.Error())
}

func (t *Error) Error() string {
	return fmt.Sprintf("Err:%d-%d-%s", t.Status, t.Code, t.Msg)
}

func (t *Error) More(format string, args ...interface{}) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	return &Error{t.Status, t.Code, t.Msg + "+" + msg}
}

// Is 按错误码比较，使errors.Is可以匹配More派生出的错误
func (t *Error) Is(target error) bool {
	rhs, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Equal(rhs)
}

func (t *Error) Equal(rhs *Error) bool {
	if rhs == nil {
		return false
	}

	return t.Code == rhs.Code
}

// define std error
var (
	ErrSuccess      = &Error{ErrStatusSucc, 0, "success"}
	ErrInternal     = &Error{ErrStatusInternalErr, 50000, "internal error"}
	ErrUnknown      = &Error{ErrStatusInternalErr, 50001, "unknown error"}
	ErrForbidden    = &Error{ErrStatusRefused, 40300, "forbidden"}
	ErrUnauthorized = &Error{ErrStatusRefused, 40100, "unauthorized"}
	ErrParameter    = &Error{ErrStatusRefused, 40001, "param error"}

	// request
	ErrMalformedRequest = &Error{ErrStatusRefused, 40010, "malformed request"}
	ErrChainID          = &Error{ErrStatusRefused, 40011, "chain id mismatch"}
	ErrSignature        = &Error{ErrStatusRefused, 40012, "invalid signature"}
	ErrNonce            = &Error{ErrStatusRefused, 40013, "incorrect nonce"}
	ErrGasLimit         = &Error{ErrStatusRefused, 40014, "gas limit out of range"}
	ErrGasPrice         = &Error{ErrStatusRefused, 40015, "gas price too low"}
	ErrNotExported      = &Error{ErrStatusRefused, 40016, "value not exported"}
	ErrInsufficientGas  = &Error{ErrStatusRefused, 40017, "payer cannot afford gas"}
	ErrCaller           = &Error{ErrStatusRefused, 40018, "illegal caller"}
	ErrInitialized      = &Error{ErrStatusRefused, 40019, "node already initialized"}
	ErrNotInitialized   = &Error{ErrStatusRefused, 40020, "node not initialized"}
	ErrClasspath        = &Error{ErrStatusRefused, 40021, "classpath cannot be loaded"}
	ErrReqAlreadyExist  = &Error{ErrStatusRefused, 40022, "request already handled"}
	ErrConflict         = &Error{ErrStatusRefused, 40023, "read set conflict"}
	ErrNotExist         = &Error{ErrStatusRefused, 40400, "not exist"}

	// node
	ErrStoreFailed  = &Error{ErrStatusInternalErr, 50010, "store failed"}
	ErrNodeStopped  = &Error{ErrStatusInternalErr, 50011, "node stopped"}
	ErrLoadConfFail = &Error{ErrStatusInternalErr, 50012, "load config failed"}
)
