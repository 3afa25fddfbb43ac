package response_test

import (
	"github.com/xuperchain/objcore/bcs/code/lang"
	"github.com/xuperchain/objcore/bcs/code/native"
	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/protocol"
)

// 测试包：构造函数和方法覆盖受检异常、不受检异常、view违规和事件
const (
	classShop       = "test.Shop"
	classOutOfStock = "test.OutOfStockException"
)

var (
	fieldStock = protocol.FieldSignature{DefiningClass: classShop, Name: "stock", Type: protocol.TypeInt}

	newShop = protocol.ConstructorSignature{
		DefiningClass: classShop,
		Formals:       []protocol.StorageType{protocol.TypeInt},
	}
	getStock = protocol.MethodSignature{DefiningClass: classShop, Name: "getStock", Returns: protocol.TypeInt}
	peek     = protocol.MethodSignature{DefiningClass: classShop, Name: "peek", Returns: protocol.TypeInt}
	restock  = protocol.MethodSignature{
		DefiningClass: classShop,
		Name:          "restock",
		Formals:       []protocol.StorageType{protocol.TypeInt},
	}
	announce = protocol.MethodSignature{DefiningClass: classShop, Name: "announce"}

	// 嵌套调用：被调用方违反标签或panic，调用方吞掉错误后正常返回
	guard = protocol.MethodSignature{
		DefiningClass: classShop,
		Name:          "guard",
		Formals:       []protocol.StorageType{protocol.TypeBoolean},
	}
	explode        = protocol.MethodSignature{DefiningClass: classShop, Name: "explode"}
	swallowIllegal = protocol.MethodSignature{DefiningClass: classShop, Name: "swallowIllegal"}
	swallowPanic   = protocol.MethodSignature{DefiningClass: classShop, Name: "swallowPanic"}
	relayIllegal   = protocol.MethodSignature{DefiningClass: classShop, Name: "relayIllegal"}
)

func init() {
	native.Register("shop", "1.0", newShopPackage)
}

func shopManifest() []byte {
	m := &native.Manifest{Name: "shop", Version: "1.0", Dependencies: []string{lang.PackageName}}
	return m.Marshal()
}

func newShopPackage() *code.Package {
	p := code.NewPackage("shop", "1.0")
	p.AddClass(&code.Class{
		Name:       classShop,
		Superclass: protocol.ClassContract,
		Exported:   true,
		Fields:     []protocol.FieldSignature{fieldStock},
	})
	p.AddClass(&code.Class{Name: classOutOfStock, Superclass: protocol.ClassException, Exported: true})

	p.AddCallable(&code.Callable{
		DefiningClass: classShop,
		Formals:       newShop.Formals,
		Tags:          code.Tags{code.TagThrowsExceptions},
		Entry: func(ctx code.Context, this code.Object, args []code.Value) (code.Value, error) {
			n := args[0].(int32)
			switch {
			case n < 0:
				return nil, code.Throw(classOutOfStock, "negative stock %d", n)
			case n == 0:
				return nil, code.Throw(protocol.ClassIllegalArgumentException, "empty shop")
			}
			return nil, ctx.Set(this, fieldStock, n)
		},
	})
	p.AddCallable(&code.Callable{
		DefiningClass: classShop,
		Name:          getStock.Name,
		Returns:       protocol.TypeInt,
		Tags:          code.Tags{code.TagView},
		Entry: func(ctx code.Context, this code.Object, _ []code.Value) (code.Value, error) {
			return ctx.Get(this, fieldStock)
		},
	})
	// peek 声明为view却修改了字段
	p.AddCallable(&code.Callable{
		DefiningClass: classShop,
		Name:          peek.Name,
		Returns:       protocol.TypeInt,
		Tags:          code.Tags{code.TagView},
		Entry: func(ctx code.Context, this code.Object, _ []code.Value) (code.Value, error) {
			v, err := ctx.Get(this, fieldStock)
			if err != nil {
				return nil, err
			}
			n := v.(int32) + 1
			return n, ctx.Set(this, fieldStock, n)
		},
	})
	p.AddCallable(&code.Callable{
		DefiningClass: classShop,
		Name:          restock.Name,
		Formals:       restock.Formals,
		Tags:          code.Tags{code.TagThrowsExceptions},
		Entry: func(ctx code.Context, this code.Object, args []code.Value) (code.Value, error) {
			n := args[0].(int32)
			if n < 0 {
				return nil, code.Throw(classOutOfStock, "cannot restock %d", n)
			}
			v, err := ctx.Get(this, fieldStock)
			if err != nil {
				return nil, err
			}
			return nil, ctx.Set(this, fieldStock, v.(int32)+n)
		},
	})
	p.AddCallable(&code.Callable{
		DefiningClass: classShop,
		Name:          announce.Name,
		Entry: func(ctx code.Context, this code.Object, _ []code.Value) (code.Value, error) {
			ev, err := ctx.Construct(lang.NewEvent)
			if err != nil {
				return nil, err
			}
			return nil, ctx.Event(ev)
		},
	})
	p.AddCallable(&code.Callable{
		DefiningClass: classShop,
		Name:          guard.Name,
		Formals:       guard.Formals,
		ParamTags:     map[int]code.Tags{0: {code.TagMustBeFalse}},
		Entry: func(code.Context, code.Object, []code.Value) (code.Value, error) {
			return nil, nil
		},
	})
	p.AddCallable(&code.Callable{
		DefiningClass: classShop,
		Name:          explode.Name,
		Entry: func(code.Context, code.Object, []code.Value) (code.Value, error) {
			panic("shop exploded")
		},
	})
	p.AddCallable(&code.Callable{
		DefiningClass: classShop,
		Name:          swallowIllegal.Name,
		Entry: func(ctx code.Context, this code.Object, _ []code.Value) (code.Value, error) {
			_, _ = ctx.Call(this, guard, true)
			return nil, nil
		},
	})
	p.AddCallable(&code.Callable{
		DefiningClass: classShop,
		Name:          swallowPanic.Name,
		Entry: func(ctx code.Context, this code.Object, _ []code.Value) (code.Value, error) {
			_, _ = ctx.Call(this, explode)
			return nil, nil
		},
	})
	// relayIllegal 声明了ThrowsExceptions，非法调用也不能变成异常结果
	p.AddCallable(&code.Callable{
		DefiningClass: classShop,
		Name:          relayIllegal.Name,
		Tags:          code.Tags{code.TagThrowsExceptions},
		Entry: func(ctx code.Context, this code.Object, _ []code.Value) (code.Value, error) {
			_, err := ctx.Call(this, guard, true)
			return nil, err
		},
	})
	return p
}
