package response

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/common/xerror"
	"github.com/xuperchain/objcore/kernel/gas"
	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/sandbox"
	"github.com/xuperchain/objcore/kernel/security"
)

// classVerificationError 安装的包没有通过校验
const classVerificationError = "lang.VerificationError"

// RejectedError 请求被拒绝，不产生响应也不消耗gas
type RejectedError struct {
	Err *xerror.Error
}

func (e *RejectedError) Error() string {
	return e.Err.Error()
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// Reason 用于统计的拒绝原因
func (e *RejectedError) Reason() string {
	return strconv.Itoa(e.Err.Code)
}

func reject(e *xerror.Error, format string, args ...interface{}) *RejectedError {
	return &RejectedError{Err: e.More(format, args...)}
}

func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// causeOf 失败原因映射为运行时异常类名
func causeOf(err error) protocol.Cause {
	var (
		exc      *code.Exception
		illegal  *security.IllegalCallError
		panicked *sandbox.PanicError
	)
	switch {
	case errors.As(err, &exc):
		return protocol.Cause{ClassNameOfCause: exc.ClassName, MessageOfCause: exc.Message, Where: exc.Where}
	case errors.Is(err, gas.ErrOutOfGas):
		return protocol.Cause{ClassNameOfCause: protocol.ClassOutOfGasError, MessageOfCause: err.Error()}
	case errors.As(err, &illegal):
		return protocol.Cause{ClassNameOfCause: protocol.ClassIllegalCallError, MessageOfCause: illegal.Msg, Where: illegal.Callable}
	case errors.Is(err, code.ErrCallableNotFound), errors.Is(err, code.ErrClassNotFound),
		errors.Is(err, sandbox.ErrTypeMismatch), errors.Is(err, sandbox.ErrForeignObject),
		errors.Is(err, sandbox.ErrNoSuchField):
		return protocol.Cause{ClassNameOfCause: protocol.ClassIllegalCallError, MessageOfCause: err.Error()}
	case errors.Is(err, sandbox.ErrDeserialization):
		return protocol.Cause{ClassNameOfCause: protocol.ClassDeserializationError, MessageOfCause: err.Error()}
	case errors.As(err, &panicked):
		return protocol.Cause{
			ClassNameOfCause: protocol.ClassInternalError,
			MessageOfCause:   fmt.Sprintf("%v", panicked.Value),
			Where:            panicked.Where,
		}
	}
	return protocol.Cause{ClassNameOfCause: protocol.ClassInternalError, MessageOfCause: err.Error()}
}
