package utils

import (
	"os"
	"sync"
	"testing"
)

func TestFileIsExist(t *testing.T) {
	if !FileIsExist(GetCurFileDir()) {
		t.Errorf("current source dir should exist")
	}
	if FileIsExist("/objcore/not/exist/dir") {
		t.Errorf("unexpected existing dir")
	}
}

// 并发生成log id，不应出现重复
func TestGenLogId(t *testing.T) {
	const total = 10000

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = make(map[string]struct{}, total)
	)
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := GenLogId()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Errorf("expect %d distinct log ids, got %d", total, len(seen))
	}
}

func TestGetFuncCall(t *testing.T) {
	file, fc := GetFuncCall(1)
	if file == "???:0" || fc == "???" {
		t.Errorf("get func call failed: %s %s", file, fc)
	}
}

func TestGetRootPath(t *testing.T) {
	dir := t.TempDir()
	os.Setenv(EnvVarRootPath, dir)
	defer os.Unsetenv(EnvVarRootPath)

	if got := GetRootPath(); got != dir {
		t.Errorf("expect %s got %s", dir, got)
	}
}
