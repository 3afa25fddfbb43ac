package utils

import (
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/google/uuid"
)

// EnvVarRootPath 设置后统一从这个目录加载配置和数据
const EnvVarRootPath = "OBJCORE_ROOT_PATH"

// FileIsExist reports whether the named file or directory exists.
func FileIsExist(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}

	return true
}

// GenLogId generate log id for a request or a transaction build
func GenLogId() string {
	return uuid.New().String()
}

// Get call method by runtime.Caller
func GetFuncCall(callDepth int) (string, string) {
	pc, file, line, ok := runtime.Caller(callDepth)
	if !ok {
		return "???:0", "???"
	}

	f := runtime.FuncForPC(pc)
	_, function := path.Split(f.Name())
	_, filename := path.Split(file)

	fline := filename + ":" + strconv.Itoa(line)
	return fline, function
}

// 获取当前源文件目录
func GetCurFileDir() string {
	_, filename, _, _ := runtime.Caller(1)
	return path.Dir(filename)
}

// 获取当前执行目录
func GetCurExecDir() string {
	curDir, _ := filepath.Abs(filepath.Dir(os.Args[0]))
	return curDir
}

// GetRootPath 优先使用环境变量，其次使用当前执行目录
func GetRootPath() string {
	rtPath := os.Getenv(EnvVarRootPath)
	if rtPath != "" && FileIsExist(rtPath) {
		return rtPath
	}

	return GetCurExecDir()
}

func GetHostName() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "127.0.0.1"
	}

	return hostname
}
