package code

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/protocol"
)

var (
	ErrClassNotFound    = errors.New("class not found")
	ErrCallableNotFound = errors.New("callable not found")
	ErrDuplicateClass   = errors.New("class defined in more than one package")
)

// Classpath 一个包及其依赖闭包合并后的解析上下文，创建后只读，可以被多个builder共享
type Classpath struct {
	root      protocol.TransactionReference
	packages  []*Package
	classes   map[string]*Class
	callables map[string]*Callable
	size      int
}

// NewClasspath 依赖在前，同一个包只出现一次
func NewClasspath(root protocol.TransactionReference, pkgs []*Package) (*Classpath, error) {
	cp := &Classpath{
		root:      root,
		classes:   make(map[string]*Class),
		callables: make(map[string]*Callable),
	}
	seen := make(map[protocol.TransactionReference]bool)
	for _, p := range pkgs {
		if seen[p.Reference] {
			continue
		}
		seen[p.Reference] = true
		cp.packages = append(cp.packages, p)
		cp.size += p.Size

		for name, c := range p.classes {
			if _, dup := cp.classes[name]; dup {
				return nil, errors.Wrapf(ErrDuplicateClass, "class %s in package %s", name, p.Name)
			}
			cp.classes[name] = c
		}
		for key, c := range p.callables {
			cp.callables[key] = c
		}
	}

	for name, c := range cp.classes {
		if c.Superclass == "" {
			continue
		}
		if _, ok := cp.classes[c.Superclass]; !ok {
			return nil, errors.Wrapf(ErrClassNotFound, "superclass %s of %s", c.Superclass, name)
		}
	}
	return cp, nil
}

func (cp *Classpath) Reference() protocol.TransactionReference {
	return cp.root
}

// Size 闭包中所有包的字节数，用于计算类加载费用
func (cp *Classpath) Size() int {
	return cp.size
}

func (cp *Classpath) Packages() []*Package {
	return cp.packages
}

func (cp *Classpath) Class(name string) (*Class, error) {
	c, ok := cp.classes[name]
	if !ok {
		return nil, errors.Wrapf(ErrClassNotFound, "class %s", name)
	}
	return c, nil
}

// Ancestors 从类自身到根类
func (cp *Classpath) Ancestors(name string) []string {
	var chain []string
	for name != "" {
		c, ok := cp.classes[name]
		if !ok {
			break
		}
		chain = append(chain, name)
		name = c.Superclass
	}
	return chain
}

func (cp *Classpath) IsSubclass(name, super string) bool {
	for _, a := range cp.Ancestors(name) {
		if a == super {
			return true
		}
	}
	return false
}

// Fields 整个继承链上的字段，父类在前，同一个类内按字段名排序
func (cp *Classpath) Fields(name string) []protocol.FieldSignature {
	chain := cp.Ancestors(name)
	var fields []protocol.FieldSignature
	for i := len(chain) - 1; i >= 0; i-- {
		declared := append([]protocol.FieldSignature(nil), cp.classes[chain[i]].Fields...)
		sort.Slice(declared, func(a, b int) bool {
			return declared[a].Compare(declared[b]) < 0
		})
		fields = append(fields, declared...)
	}
	return fields
}

func (cp *Classpath) HasTag(className string, tag Tag) bool {
	c, ok := cp.classes[className]
	return ok && c.Tags.Has(tag)
}

// ResolveConstructor 先精确匹配，失败后按FromContract扩展签名再试一次。
// fromContract为true时调用方需要在实参后追加调用方和nil占位
func (cp *Classpath) ResolveConstructor(sig protocol.ConstructorSignature) (c *Callable, fromContract bool, err error) {
	if c, ok := cp.callables[sig.String()]; ok && c.IsConstructor() {
		return c, false, nil
	}
	if c, ok := cp.callables[sig.FromContract().String()]; ok && c.IsConstructor() && c.Tags.Has(TagFromContract) {
		return c, true, nil
	}
	return nil, false, errors.Wrapf(ErrCallableNotFound, "constructor %s", sig)
}

// ResolveMethod 在定义类及其父类中查找
func (cp *Classpath) ResolveMethod(sig protocol.MethodSignature) (*Callable, bool, error) {
	return cp.ResolveMethodFrom(sig.DefiningClass, sig)
}

// ResolveMethodFrom 从className开始沿继承链查找，用于按接收者的实际类分派
func (cp *Classpath) ResolveMethodFrom(className string, sig protocol.MethodSignature) (*Callable, bool, error) {
	if c := cp.lookupMethod(className, sig); c != nil {
		return c, false, nil
	}
	if c := cp.lookupMethod(className, sig.FromContract()); c != nil && c.Tags.Has(TagFromContract) {
		return c, true, nil
	}
	return nil, false, errors.Wrapf(ErrCallableNotFound, "method %s", sig)
}

func (cp *Classpath) lookupMethod(className string, sig protocol.MethodSignature) *Callable {
	for _, name := range cp.Ancestors(className) {
		sig.DefiningClass = name
		if c, ok := cp.callables[sig.String()]; ok && !c.IsConstructor() {
			return c
		}
	}
	return nil
}
