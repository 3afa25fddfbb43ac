package engines

import (
	"errors"
	"path/filepath"
	"testing"

	xconf "github.com/xuperchain/objcore/kernel/common/xconfig"
)

type fakeEngine struct {
	inited bool
	fail   bool
}

func (e *fakeEngine) Init(*xconf.EnvConf) error {
	if e.fail {
		return errFake
	}
	e.inited = true
	return nil
}

func (e *fakeEngine) Run()  {}
func (e *fakeEngine) Exit() {}

var errFake = errors.New("init failed")

func TestCreateBCEngine(t *testing.T) {
	Register("fake", func() BCEngine { return &fakeEngine{} })
	Register("fake-fail", func() BCEngine { return &fakeEngine{fail: true} })

	envCfg := xconf.GetDefEnvConf()
	envCfg.RootPath = t.TempDir()
	envCfg.LogDir = filepath.Join(envCfg.RootPath, "logs")

	tests := []struct {
		name   string
		engine string
		envCfg *xconf.EnvConf
		ok     bool
	}{
		{"succ", "fake", envCfg, true},
		{"initFail", "fake-fail", envCfg, false},
		{"notExist", "nothing", envCfg, false},
		{"noEnv", "fake", nil, false},
		{"noName", "", envCfg, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := CreateBCEngine(tt.engine, tt.envCfg)
			if tt.ok != (err == nil) {
				t.Fatalf("unexpected err %v", err)
			}
			if tt.ok && !engine.(*fakeEngine).inited {
				t.Errorf("engine not inited")
			}
		})
	}

	found := false
	for _, name := range Engines() {
		found = found || name == "fake"
	}
	if !found {
		t.Errorf("fake engine not listed: %v", Engines())
	}
}
