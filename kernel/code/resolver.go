package code

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/xuperchain/objcore/kernel/protocol"
)

const DefaultCacheSize = 256

var ErrNotPackage = errors.New("transaction did not install a package")

// Loader 把已插桩的包字节实例化为解析表
type Loader interface {
	Load(ref protocol.TransactionReference, instrumented []byte, deps []protocol.TransactionReference) (*Package, error)
}

// Instrumenter 校验并插桩提交的包，返回插桩后的字节和校验版本
type Instrumenter interface {
	Instrument(pkg []byte, deps []*Package) (instrumented []byte, version uint64, err error)
}

// TransactionSource 读取已提交交易，store.Reader满足该接口
type TransactionSource interface {
	Request(ref protocol.TransactionReference) (protocol.Request, error)
	Response(ref protocol.TransactionReference) (protocol.Response, error)
}

// Resolver 按交易引用加载classpath，已安装的包不可变，所以可以跨交易缓存
type Resolver struct {
	loader Loader
	cache  *lru.Cache
	group  singleflight.Group
}

func NewResolver(loader Loader, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{loader: loader, cache: cache}, nil
}

func (r *Resolver) Loader() Loader {
	return r.loader
}

// Classpath 加载ref安装的包以及它的依赖闭包
func (r *Resolver) Classpath(src TransactionSource, ref protocol.TransactionReference) (*Classpath, error) {
	if cp, ok := r.cache.Get(ref); ok {
		return cp.(*Classpath), nil
	}

	v, err, _ := r.group.Do(ref.String(), func() (interface{}, error) {
		if cp, ok := r.cache.Get(ref); ok {
			return cp, nil
		}
		pkgs, err := r.load(src, ref)
		if err != nil {
			return nil, err
		}
		cp, err := NewClasspath(ref, pkgs)
		if err != nil {
			return nil, err
		}
		r.cache.Add(ref, cp)
		return cp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Classpath), nil
}

// Packages 批量加载多个依赖，用于安装包时的校验
func (r *Resolver) Packages(src TransactionSource, refs []protocol.TransactionReference) ([]*Package, error) {
	var pkgs []*Package
	for _, ref := range refs {
		cp, err := r.Classpath(src, ref)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, cp.Packages()...)
	}
	return pkgs, nil
}

// load 依赖在前；依赖的classpath同样走缓存
func (r *Resolver) load(src TransactionSource, ref protocol.TransactionReference) ([]*Package, error) {
	instrumented, deps, err := installedPackage(src, ref)
	if err != nil {
		return nil, err
	}
	pkgs, err := r.Packages(src, deps)
	if err != nil {
		return nil, err
	}
	pkg, err := r.loader.Load(ref, instrumented, deps)
	if err != nil {
		return nil, errors.Wrapf(err, "load package %s", ref)
	}
	return append(pkgs, pkg), nil
}

func installedPackage(src TransactionSource, ref protocol.TransactionReference) ([]byte, []protocol.TransactionReference, error) {
	resp, err := src.Response(ref)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read response of %s", ref)
	}

	switch r := resp.(type) {
	case *protocol.PackageInstallSuccessResponse:
		return r.InstrumentedPackage, r.Dependencies, nil
	case *protocol.InitialPackageInstallResponse:
		req, err := src.Request(ref)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "read request of %s", ref)
		}
		install, ok := req.(*protocol.InitialPackageInstallRequest)
		if !ok {
			return nil, nil, errors.Wrapf(ErrNotPackage, "request %s", ref)
		}
		return r.InstrumentedPackage, install.Dependencies, nil
	}
	return nil, nil, errors.Wrapf(ErrNotPackage, "response %s is %s", ref, resp.ResponseKind())
}
