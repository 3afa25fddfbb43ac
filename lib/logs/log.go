package logs

import (
	"fmt"
	"os"
	"sync"

	log "github.com/xuperchain/log15"
)

// LogBufSize define log buffer channel size
const LogBufSize = 102400

// OpenLog create and open log stream using LogConfig
func OpenLog(lc *LogConfig) (LogDriver, error) {
	infoFile := lc.Filepath + "/" + lc.Filename + ".log"
	wfFile := lc.Filepath + "/" + lc.Filename + ".log.wf"
	os.MkdirAll(lc.Filepath, os.ModePerm)

	lfmt := log.LogfmtFormat()
	switch lc.Fmt {
	case "json":
		lfmt = log.JsonFormat()
	}

	xlog := log.New("module", lc.Module)
	lvLevel, err := log.LvlFromString(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("log level error.err:%v", err)
	}
	// set lowest level as level limit, this may improve performance
	xlog.SetLevelLimit(lvLevel)

	// init normal and warn/fault log file handler, RotateFileHandler
	// only valid if `RotateInterval` and `RotateBackups` greater than 0
	var (
		nmHandler log.Handler
		wfHandler log.Handler
	)
	if lc.RotateInterval > 0 && lc.RotateBackups > 0 {
		nmHandler = log.Must.RotateFileHandler(
			infoFile, lfmt, lc.RotateInterval, lc.RotateBackups)
		wfHandler = log.Must.RotateFileHandler(
			wfFile, lfmt, lc.RotateInterval, lc.RotateBackups)
	} else {
		nmHandler = log.Must.FileHandler(infoFile, lfmt)
		wfHandler = log.Must.FileHandler(wfFile, lfmt)
	}

	if lc.Async {
		nmHandler = log.BufferedHandler(LogBufSize, nmHandler)
		wfHandler = log.BufferedHandler(LogBufSize, wfHandler)
	}

	// prints log level between `lvLevel` to Info to common log
	nmfileh := log.BoundLvlFilterHandler(lvLevel, log.LvlError, nmHandler)

	// prints log level greater or equal to Warn to wf log
	wffileh := log.LvlFilterHandler(log.LvlWarn, wfHandler)

	var lhd log.Handler
	if lc.Console {
		hstd := log.StreamHandler(os.Stderr, lfmt)
		lhd = log.SyncHandler(log.MultiHandler(hstd, nmfileh, wffileh))
	} else {
		lhd = log.SyncHandler(log.MultiHandler(nmfileh, wffileh))
	}
	xlog.SetHandler(lhd)

	return xlog, err
}

// OpenConsoleLog 只输出到标准错误，用于命令行工具和单测
func OpenConsoleLog(module, level string) (LogDriver, error) {
	lvLevel, err := log.LvlFromString(level)
	if err != nil {
		return nil, fmt.Errorf("log level error.err:%v", err)
	}

	xlog := log.New("module", module)
	xlog.SetLevelLimit(lvLevel)
	xlog.SetHandler(log.LvlFilterHandler(lvLevel, log.StreamHandler(os.Stderr, log.LogfmtFormat())))
	return xlog, nil
}

var (
	driverMu  sync.RWMutex
	logDriver LogDriver
)

// InitLog 进程启动时调用一次，之后NewLogger创建的日志都写到这里
func InitLog(cfgFile, logDir string) error {
	lc, err := LoadLogConf(cfgFile)
	if err != nil {
		lc = GetDefLogConf()
	}
	if logDir != "" {
		lc.Filepath = logDir
	}

	driver, err := OpenLog(lc)
	if err != nil {
		return fmt.Errorf("open log failed.err:%v", err)
	}

	driverMu.Lock()
	defer driverMu.Unlock()
	logDriver = driver
	return nil
}

func getDriver() LogDriver {
	driverMu.RLock()
	driver := logDriver
	driverMu.RUnlock()
	if driver != nil {
		return driver
	}

	// 未初始化时退化为只输出warn以上级别的控制台日志
	driver, _ = OpenConsoleLog("objcore", "warn")
	return driver
}

// NewLogger 基于进程日志创建带log_id和子模块名的日志对象
func NewLogger(logId, subMod string) (Logger, error) {
	lf, err := NewLogFitter(getDriver(), logId)
	if err != nil {
		return nil, err
	}
	if subMod != "" {
		lf.SetCommField(CommFieldSubMod, subMod)
	}

	return lf, nil
}

// NewTestLogger 单测使用，日志只输出到控制台
func NewTestLogger(subMod string) Logger {
	driver, _ := OpenConsoleLog("objcore-test", "error")
	lf, _ := NewLogFitter(driver, "")
	lf.SetCommField(CommFieldSubMod, subMod)
	return lf
}
