package code

import (
	"fmt"
	"sort"

	"github.com/xuperchain/objcore/kernel/protocol"
)

// Package 一个代码包的解析表：类元数据和签名到可调用对象的映射
type Package struct {
	Name    string
	Version string
	// 以下由加载器填写
	Reference    protocol.TransactionReference
	Size         int
	Dependencies []protocol.TransactionReference

	classes   map[string]*Class
	callables map[string]*Callable
}

func NewPackage(name, version string) *Package {
	return &Package{
		Name:      name,
		Version:   version,
		classes:   make(map[string]*Class),
		callables: make(map[string]*Callable),
	}
}

// AddClass 重复定义时panic，包定义属于程序错误
func (p *Package) AddClass(c *Class) *Package {
	if _, dup := p.classes[c.Name]; dup {
		panic(fmt.Sprintf("class %s defined twice in package %s", c.Name, p.Name))
	}
	for _, f := range c.Fields {
		if f.DefiningClass != c.Name {
			panic(fmt.Sprintf("field %s declared in class %s", f, c.Name))
		}
	}
	p.classes[c.Name] = c
	return p
}

func (p *Package) AddCallable(c *Callable) *Package {
	key := c.Key()
	if _, dup := p.callables[key]; dup {
		panic(fmt.Sprintf("callable %s defined twice in package %s", key, p.Name))
	}
	if c.Entry == nil {
		panic(fmt.Sprintf("callable %s has no entry", key))
	}
	p.callables[key] = c
	return p
}

func (p *Package) Class(name string) (*Class, bool) {
	c, ok := p.classes[name]
	return c, ok
}

// Classes 按类名排序
func (p *Package) Classes() []*Class {
	list := make([]*Class, 0, len(p.classes))
	for _, c := range p.classes {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func (p *Package) Callables() []*Callable {
	list := make([]*Callable, 0, len(p.callables))
	for _, c := range p.callables {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key() < list[j].Key() })
	return list
}

// Bind 加载器在包定义实例化之后调用，把包引用写入类元数据
func (p *Package) Bind(ref protocol.TransactionReference, size int, deps []protocol.TransactionReference) {
	p.Reference = ref
	p.Size = size
	p.Dependencies = deps
	for _, c := range p.classes {
		c.Package = ref
	}
}
