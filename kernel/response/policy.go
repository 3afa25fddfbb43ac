package response

import (
	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/protocol"
)

// CheckPolicy 决定代码中抛出的异常是否受检。属于不受检家族的异常总是导致失败
type CheckPolicy struct {
	Version           int
	UncheckedFamilies []string
}

var CheckPolicyV1 = &CheckPolicy{
	Version:           1,
	UncheckedFamilies: []string{protocol.ClassRuntimeException, protocol.ClassError},
}

var checkPolicies = map[int]*CheckPolicy{
	CheckPolicyV1.Version: CheckPolicyV1,
}

var ErrUnknownCheckPolicy = errors.New("unknown check policy version")

func GetCheckPolicy(version int) (*CheckPolicy, error) {
	p, ok := checkPolicies[version]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCheckPolicy, "version %d", version)
	}
	return p, nil
}

// IsChecked 沿继承链向上查找，classpath中没有的类使用内置的异常层次
func (p *CheckPolicy) IsChecked(cp *code.Classpath, className string) bool {
	seen := make(map[string]bool)
	for name := className; name != "" && !seen[name]; name = superclassOf(cp, name) {
		seen[name] = true
		for _, family := range p.UncheckedFamilies {
			if name == family {
				return false
			}
		}
	}
	return true
}

func superclassOf(cp *code.Classpath, name string) string {
	if cp != nil {
		if c, err := cp.Class(name); err == nil {
			return c.Superclass
		}
	}
	return protocol.BuiltinSuperclasses[name]
}
