package xconfig

import (
	"path/filepath"
	"testing"

	"github.com/xuperchain/objcore/lib/utils"
)

func TestLoadEnvConf(t *testing.T) {
	envCfg, err := LoadEnvConf(getConfFile())
	if err != nil {
		t.Fatal(err)
	}

	if envCfg.RootPath != "/tmp/objcore" || !envCfg.MetricSwitch {
		t.Errorf("unexpected env conf: %+v", envCfg)
	}
	if got := envCfg.GenConfFilePath(envCfg.NodeConf); got != "/tmp/objcore/conf/node.yaml" {
		t.Errorf("unexpected node conf path %s", got)
	}
	if got := envCfg.GenDataAbsPath("store"); got != "/tmp/objcore/data/store" {
		t.Errorf("unexpected data path %s", got)
	}
	// 未配置项使用默认值
	if envCfg.LogConf != "log.yaml" || envCfg.MetricAddr != ":9100" {
		t.Errorf("default value lost: %+v", envCfg)
	}
}

func TestLoadEnvConfMissing(t *testing.T) {
	if _, err := LoadEnvConf(""); err == nil {
		t.Errorf("expect error for empty path")
	}
}

func getConfFile() string {
	dir := utils.GetCurFileDir()
	return filepath.Join(dir, "conf/env.yaml")
}
