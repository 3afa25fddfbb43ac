package logs

import (
	"sync"
	"testing"
)

type recordDriver struct {
	mu    sync.Mutex
	lines [][]interface{}
}

func (d *recordDriver) record(msg string, ctx ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, append([]interface{}{msg}, ctx...))
}

func (d *recordDriver) Error(msg string, ctx ...interface{}) { d.record(msg, ctx...) }
func (d *recordDriver) Warn(msg string, ctx ...interface{})  { d.record(msg, ctx...) }
func (d *recordDriver) Info(msg string, ctx ...interface{})  { d.record(msg, ctx...) }
func (d *recordDriver) Trace(msg string, ctx ...interface{}) { d.record(msg, ctx...) }
func (d *recordDriver) Debug(msg string, ctx ...interface{}) { d.record(msg, ctx...) }

func TestConcurrentOutput(t *testing.T) {
	driver := &recordDriver{}
	log, err := NewLogFitter(driver, "")
	if err != nil {
		t.Fatalf("new logger fail.err:%v", err)
	}

	wg := &sync.WaitGroup{}
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(num int) {
			defer wg.Done()
			log.Info("info", "a", 1, "num", num)
			log.Debug("debug", "num", num)
			log.SetCommField("worker", num)
		}(i)
	}
	wg.Wait()

	log.Warn("odd args", 1)
	if len(driver.lines) != 7 {
		t.Fatalf("expect 7 lines, got %d", len(driver.lines))
	}
	last := driver.lines[6]
	if last[len(last)-2] != "unknow" || last[len(last)-1] != 1 {
		t.Errorf("odd value not keyed: %v", last)
	}
}

func TestLogIdOverride(t *testing.T) {
	driver := &recordDriver{}
	log, _ := NewLogFitter(driver, "origin")
	if log.GetLogId() != "origin" {
		t.Fatalf("unexpected log id %s", log.GetLogId())
	}

	log.SetCommField("tx", "abc")
	log.Debug("msg", "log_id", "123456")
	line := driver.lines[0]
	// msg, log_id, value, call, value, pid, value, tx, value
	if line[1] != CommFieldLogId || line[2] != "123456" {
		t.Errorf("log id not replaced: %v", line)
	}
	if line[3] != CommFieldCall || line[4] == "???:0" {
		t.Errorf("caller not resolved: %v", line)
	}
	if line[7] != "tx" || line[8] != "abc" {
		t.Errorf("common field missing: %v", line)
	}
}

func TestWith(t *testing.T) {
	driver := &recordDriver{}
	parent, _ := NewLogFitter(driver, "id")
	parent.SetCommField(CommFieldSubMod, "test")

	child := parent.With("kind", "call")
	child.Info("child")
	parent.Info("parent")

	if len(driver.lines[0]) != 11 || driver.lines[0][9] != "kind" {
		t.Errorf("child field missing: %v", driver.lines[0])
	}
	if len(driver.lines[1]) != 9 {
		t.Errorf("parent should not carry child fields: %v", driver.lines[1])
	}
	if child.GetLogId() != "id" {
		t.Errorf("child should keep log id")
	}
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("", "test")
	if err != nil {
		t.Fatal(err)
	}
	if log.GetLogId() == "" {
		t.Errorf("log id should be generated")
	}
	log.Info("message that is filtered by level")
}
