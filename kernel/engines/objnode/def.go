package objnode

import (
	"time"
)

const (
	BCEngineName = "objnode"

	// 已处理请求缓存的清理周期
	HandledCacheGcTime = time.Minute
	// 提交遇到读集冲突时的最大重建次数
	MaxCommitRetry = 3
	// 单次提交超过该耗时打印告警
	SlowCommitTime = time.Second
)
