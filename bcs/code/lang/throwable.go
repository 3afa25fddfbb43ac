package lang

import (
	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/protocol"
)

// 父类必须先于子类加入
var throwableOrder = []string{
	protocol.ClassThrowable,
	protocol.ClassException,
	protocol.ClassRuntimeException,
	protocol.ClassError,
	protocol.ClassIllegalArgumentException,
	protocol.ClassIllegalStateException,
	protocol.ClassInsufficientFundsError,
	protocol.ClassOutOfGasError,
	protocol.ClassIllegalCallError,
	protocol.ClassInternalError,
	protocol.ClassDeserializationError,
}

func addThrowables(p *code.Package) {
	for _, name := range throwableOrder {
		p.AddClass(&code.Class{Name: name, Superclass: protocol.BuiltinSuperclasses[name], Exported: true})
	}
}
