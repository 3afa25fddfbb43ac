// Package lang 运行时基础包：账户、合约、事件、清单以及异常层次
package lang

import (
	"math/big"

	"github.com/xuperchain/objcore/bcs/code/native"
	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/protocol"
)

const (
	PackageName    = "lang"
	PackageVersion = "1.0"
)

var (
	typeContract = protocol.ClassType(protocol.ClassContract)
	typeDummy    = protocol.ClassType(protocol.ClassDummy)
	typeGamete   = protocol.ClassType(protocol.ClassGamete)
)

// 客户端常用的签名
var (
	// Receive 向合约转账
	Receive = protocol.MethodSignature{
		DefiningClass: protocol.ClassContract,
		Name:          "receive",
		Formals:       []protocol.StorageType{protocol.TypeBigInteger},
	}
	ReceiveLong = protocol.MethodSignature{
		DefiningClass: protocol.ClassContract,
		Name:          "receive",
		Formals:       []protocol.StorageType{protocol.TypeLong},
	}
	GetBalance = protocol.MethodSignature{
		DefiningClass: protocol.ClassContract,
		Name:          "getBalance",
		Returns:       protocol.TypeBigInteger,
	}
	// NewAccount 创建外部账户：初始金额和base58公钥
	NewAccount = protocol.ConstructorSignature{
		DefiningClass: protocol.ClassExternallyOwnedAccount,
		Formals:       []protocol.StorageType{protocol.TypeBigInteger, protocol.TypeString},
	}
	GetNonce = protocol.MethodSignature{
		DefiningClass: protocol.ClassExternallyOwnedAccount,
		Name:          "getNonce",
		Returns:       protocol.TypeBigInteger,
	}
	// Faucet 创世账户向目标合约发放金额
	Faucet = protocol.MethodSignature{
		DefiningClass: protocol.ClassGamete,
		Name:          "faucet",
		Formals:       []protocol.StorageType{typeContract, protocol.TypeBigInteger},
	}
	NewManifest = protocol.ConstructorSignature{
		DefiningClass: protocol.ClassManifest,
		Formals:       []protocol.StorageType{protocol.TypeString, typeGamete},
	}
	GetChainID = protocol.MethodSignature{
		DefiningClass: protocol.ClassManifest,
		Name:          "getChainId",
		Returns:       protocol.TypeString,
	}
	GetGamete = protocol.MethodSignature{
		DefiningClass: protocol.ClassManifest,
		Name:          "getGamete",
		Returns:       typeGamete,
	}
	NewEvent = protocol.ConstructorSignature{
		DefiningClass: protocol.ClassEvent,
	}
)

func init() {
	native.Register(PackageName, PackageVersion, New)
}

// Manifest 安装本包的清单
func Manifest() []byte {
	m := &native.Manifest{Name: PackageName, Version: PackageVersion}
	return m.Marshal()
}

// fromContract 在形参后追加隐式调用方
func fromContract(formals ...protocol.StorageType) []protocol.StorageType {
	return append(formals, typeContract, typeDummy)
}

func New() *code.Package {
	p := code.NewPackage(PackageName, PackageVersion)
	addThrowables(p)

	p.AddClass(&code.Class{Name: protocol.ClassObject})
	p.AddClass(&code.Class{Name: protocol.ClassDummy, Superclass: protocol.ClassObject})
	p.AddClass(&code.Class{Name: protocol.ClassStorage, Superclass: protocol.ClassObject, Exported: true})
	p.AddClass(&code.Class{
		Name:       protocol.ClassContract,
		Superclass: protocol.ClassStorage,
		Exported:   true,
		Fields:     []protocol.FieldSignature{protocol.FieldBalance},
	})
	p.AddClass(&code.Class{
		Name:       protocol.ClassExternallyOwnedAccount,
		Superclass: protocol.ClassContract,
		Exported:   true,
		Fields:     []protocol.FieldSignature{protocol.FieldNonce, protocol.FieldPublicKey},
	})
	p.AddClass(&code.Class{Name: protocol.ClassGamete, Superclass: protocol.ClassExternallyOwnedAccount, Exported: true})
	p.AddClass(&code.Class{
		Name:       protocol.ClassEvent,
		Superclass: protocol.ClassStorage,
		Fields:     []protocol.FieldSignature{protocol.FieldEventCreator},
	})
	p.AddClass(&code.Class{
		Name:       protocol.ClassManifest,
		Superclass: protocol.ClassStorage,
		Exported:   true,
		Fields:     []protocol.FieldSignature{protocol.FieldManifestChainID, protocol.FieldManifestGamete},
	})

	// 转账本身由运行时完成
	p.AddCallable(&code.Callable{
		DefiningClass: protocol.ClassContract,
		Name:          Receive.Name,
		Formals:       fromContract(protocol.TypeBigInteger),
		Tags:          code.Tags{code.TagFromContract, code.TagPayable},
		Entry:         nop,
	})
	p.AddCallable(&code.Callable{
		DefiningClass: protocol.ClassContract,
		Name:          ReceiveLong.Name,
		Formals:       fromContract(protocol.TypeLong),
		Tags:          code.Tags{code.TagFromContract, code.TagPayable},
		Entry:         nop,
	})
	p.AddCallable(&code.Callable{
		DefiningClass: protocol.ClassContract,
		Name:          GetBalance.Name,
		Returns:       protocol.TypeBigInteger,
		Tags:          code.Tags{code.TagView},
		Entry:         getter(protocol.FieldBalance),
	})

	p.AddCallable(&code.Callable{
		DefiningClass: protocol.ClassExternallyOwnedAccount,
		Formals:       fromContract(protocol.TypeBigInteger, protocol.TypeString),
		Tags:          code.Tags{code.TagFromContract, code.TagPayable},
		Entry:         newAccount,
	})
	p.AddCallable(&code.Callable{
		DefiningClass: protocol.ClassExternallyOwnedAccount,
		Name:          GetNonce.Name,
		Returns:       protocol.TypeBigInteger,
		Tags:          code.Tags{code.TagView},
		Entry:         getter(protocol.FieldNonce),
	})

	p.AddCallable(&code.Callable{
		DefiningClass: protocol.ClassGamete,
		Name:          Faucet.Name,
		Formals:       Faucet.Formals,
		Tags:          code.Tags{code.TagThrowsExceptions},
		Entry:         faucet,
	})

	p.AddCallable(&code.Callable{
		DefiningClass: protocol.ClassEvent,
		Formals:       fromContract(),
		Tags:          code.Tags{code.TagFromContract},
		Entry:         newEvent,
	})

	p.AddCallable(&code.Callable{
		DefiningClass: protocol.ClassManifest,
		Formals:       NewManifest.Formals,
		Entry:         newManifest,
	})
	p.AddCallable(&code.Callable{
		DefiningClass: protocol.ClassManifest,
		Name:          GetChainID.Name,
		Returns:       protocol.TypeString,
		Tags:          code.Tags{code.TagView},
		Entry:         getter(protocol.FieldManifestChainID),
	})
	p.AddCallable(&code.Callable{
		DefiningClass: protocol.ClassManifest,
		Name:          GetGamete.Name,
		Returns:       typeGamete,
		Tags:          code.Tags{code.TagView},
		Entry:         getter(protocol.FieldManifestGamete),
	})
	return p
}

func nop(code.Context, code.Object, []code.Value) (code.Value, error) {
	return nil, nil
}

func getter(f protocol.FieldSignature) code.Entry {
	return func(ctx code.Context, this code.Object, _ []code.Value) (code.Value, error) {
		return ctx.Get(this, f)
	}
}

// newAccount 金额已经由运行时从调用方转入
func newAccount(ctx code.Context, this code.Object, args []code.Value) (code.Value, error) {
	key, _ := args[1].(string)
	if key == "" {
		return nil, code.Throw(protocol.ClassIllegalArgumentException, "public key cannot be empty")
	}
	return nil, ctx.Set(this, protocol.FieldPublicKey, key)
}

func newEvent(ctx code.Context, this code.Object, args []code.Value) (code.Value, error) {
	return nil, ctx.Set(this, protocol.FieldEventCreator, args[0])
}

func newManifest(ctx code.Context, this code.Object, args []code.Value) (code.Value, error) {
	chainID, _ := args[0].(string)
	if chainID == "" {
		return nil, code.Throw(protocol.ClassIllegalArgumentException, "chain id cannot be empty")
	}
	if args[1] == nil {
		return nil, code.Throw(protocol.ClassIllegalArgumentException, "gamete cannot be null")
	}
	if err := ctx.Set(this, protocol.FieldManifestChainID, chainID); err != nil {
		return nil, err
	}
	return nil, ctx.Set(this, protocol.FieldManifestGamete, args[1])
}

// faucet 只有创世账户自己可以调用
func faucet(ctx code.Context, this code.Object, args []code.Value) (code.Value, error) {
	caller := ctx.Caller()
	if caller == nil || caller.Reference() != this.Reference() {
		return nil, code.Throw(protocol.ClassIllegalStateException, "only the gamete can use its faucet")
	}
	dest, ok := args[0].(code.Object)
	if !ok || dest == nil {
		return nil, code.Throw(protocol.ClassIllegalArgumentException, "faucet destination cannot be null")
	}
	amount, _ := args[1].(*big.Int)
	if amount == nil || amount.Sign() < 0 {
		return nil, code.Throw(protocol.ClassIllegalArgumentException, "faucet amount must be non-negative")
	}
	if dest.Reference() == this.Reference() {
		return nil, nil
	}

	v, err := ctx.Get(this, protocol.FieldBalance)
	if err != nil {
		return nil, err
	}
	balance := bigOf(v)
	if balance.Cmp(amount) < 0 {
		return nil, code.Throw(protocol.ClassInsufficientFundsError, "faucet cannot pay %s", amount)
	}
	if err := ctx.Set(this, protocol.FieldBalance, new(big.Int).Sub(balance, amount)); err != nil {
		return nil, err
	}
	v, err = ctx.Get(dest, protocol.FieldBalance)
	if err != nil {
		return nil, err
	}
	return nil, ctx.Set(dest, protocol.FieldBalance, new(big.Int).Add(bigOf(v), amount))
}

func bigOf(v code.Value) *big.Int {
	if i, ok := v.(*big.Int); ok && i != nil {
		return i
	}
	return new(big.Int)
}
