// Package native 进程内注册的代码包。交易中安装的包字节是一份YAML清单，
// 按名字和版本找到注册的包定义
package native

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/protocol"
)

// VerificationVersion 当前校验规则的版本，写入安装成功的响应
const VerificationVersion uint64 = 1

var (
	ErrVerification   = errors.New("package verification failed")
	ErrUnknownPackage = errors.New("package not registered")
)

// NewPackageFunc 每次调用返回一份新的包定义，加载器会把引用绑定到其中的类上
type NewPackageFunc func() *code.Package

var (
	pkgsMu   sync.RWMutex
	packages = make(map[string]NewPackageFunc)
)

func packageKey(name, version string) string {
	return name + "@" + version
}

func Register(name, version string, f NewPackageFunc) {
	pkgsMu.Lock()
	defer pkgsMu.Unlock()

	if f == nil {
		panic("native: Register package func is nil")
	}
	key := packageKey(name, version)
	if _, dup := packages[key]; dup {
		panic("native: Register called twice for package " + key)
	}
	packages[key] = f
}

// Drivers 已注册的包，name@version形式
func Drivers() []string {
	pkgsMu.RLock()
	defer pkgsMu.RUnlock()
	list := make([]string, 0, len(packages))
	for key := range packages {
		list = append(list, key)
	}
	sort.Strings(list)
	return list
}

func getPackageFunc(name, version string) (NewPackageFunc, error) {
	pkgsMu.RLock()
	defer pkgsMu.RUnlock()
	f, ok := packages[packageKey(name, version)]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPackage, "%s", packageKey(name, version))
	}
	return f, nil
}

// Manifest 安装交易中携带的包描述
type Manifest struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// Dependencies 依赖包的名字，必须出现在安装请求的依赖中
	Dependencies []string `yaml:"dependencies,omitempty"`
}

func (m *Manifest) Marshal() []byte {
	b, err := yaml.Marshal(m)
	if err != nil {
		// 只有基本字段，不会失败
		panic(fmt.Sprintf("marshal manifest: %v", err))
	}
	return b
}

func ParseManifest(b []byte) (*Manifest, error) {
	m := new(Manifest)
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, errors.Wrapf(ErrVerification, "bad manifest: %v", err)
	}
	if m.Name == "" || m.Version == "" {
		return nil, errors.Wrap(ErrVerification, "manifest without name or version")
	}
	return m, nil
}

// Instrumenter 校验清单：包已注册，声明的依赖都提供了，类层次在依赖闭包中完整
type Instrumenter struct{}

var _ code.Instrumenter = Instrumenter{}

func (Instrumenter) Instrument(pkg []byte, deps []*code.Package) ([]byte, uint64, error) {
	m, err := ParseManifest(pkg)
	if err != nil {
		return nil, 0, err
	}
	f, err := getPackageFunc(m.Name, m.Version)
	if err != nil {
		return nil, 0, errors.Wrap(ErrVerification, err.Error())
	}

	provided := make(map[string]bool, len(deps))
	for _, d := range deps {
		provided[d.Name] = true
	}
	for _, name := range m.Dependencies {
		if !provided[name] {
			return nil, 0, errors.Wrapf(ErrVerification, "missing dependency %s", name)
		}
	}

	p := f()
	var zero protocol.TransactionReference
	p.Bind(zero, len(pkg), nil)
	if _, err := code.NewClasspath(zero, append(append([]*code.Package(nil), deps...), p)); err != nil {
		return nil, 0, errors.Wrap(ErrVerification, err.Error())
	}
	return m.Marshal(), VerificationVersion, nil
}

// Loader 按清单实例化注册的包定义
type Loader struct{}

var _ code.Loader = Loader{}

func (Loader) Load(ref protocol.TransactionReference, instrumented []byte, deps []protocol.TransactionReference) (*code.Package, error) {
	m, err := ParseManifest(instrumented)
	if err != nil {
		return nil, err
	}
	f, err := getPackageFunc(m.Name, m.Version)
	if err != nil {
		return nil, err
	}
	p := f()
	p.Bind(ref, len(instrumented), deps)
	return p, nil
}
