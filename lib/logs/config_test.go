package logs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefLogConf(t *testing.T) {
	cfg := GetDefLogConf()
	if cfg.Module != "objcore" || cfg.Level != "debug" {
		t.Errorf("unexpected default log conf: %+v", cfg)
	}
}

func TestLoadLogConf(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "log.yaml")
	content := []byte("module: node\nfilename: node\nlevel: warn\nfmt: json\nconsole: false\n")
	if err := os.WriteFile(cfgFile, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadLogConf(cfgFile)
	if err != nil {
		t.Fatalf("load log config failed.err:%v", err)
	}
	if cfg.Module != "node" || cfg.Level != "warn" || cfg.Fmt != "json" || cfg.Console {
		t.Errorf("unexpected log conf: %+v", cfg)
	}
	// 未配置的字段保持默认值
	if cfg.RotateBackups != 168 {
		t.Errorf("expect default rotate backups, got %d", cfg.RotateBackups)
	}

	if _, err := LoadLogConf(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("expect error for missing config file")
	}
}
