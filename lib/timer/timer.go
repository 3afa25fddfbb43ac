package timer

import (
	"fmt"
	"strings"
	"time"
)

type markPoint struct {
	tag  string
	cost time.Duration
}

// XTimer 记录一次处理过程中各阶段的耗时，非并发安全
type XTimer struct {
	born   time.Time
	latest time.Time
	points []markPoint
}

func NewXTimer() *XTimer {
	now := time.Now()
	return &XTimer{born: now, latest: now}
}

// Mark 记录距上一个标记点的耗时
func (t *XTimer) Mark(tag string) {
	now := time.Now()
	t.points = append(t.points, markPoint{tag: tag, cost: now.Sub(t.latest)})
	t.latest = now
}

// Cost 返回标记点的耗时，同名标记取最后一次
func (t *XTimer) Cost(tag string) (time.Duration, bool) {
	for i := len(t.points) - 1; i >= 0; i-- {
		if t.points[i].tag == tag {
			return t.points[i].cost, true
		}
	}
	return 0, false
}

func (t *XTimer) Elapsed() time.Duration {
	return time.Since(t.born)
}

// Print 输出形如 check:0.12ms,execute:1.30ms,total:1.50ms
func (t *XTimer) Print() string {
	msg := make([]string, 0, len(t.points)+1)
	for _, p := range t.points {
		msg = append(msg, fmt.Sprintf("%s:%.2fms", p.tag, toMs(p.cost)))
	}
	msg = append(msg, fmt.Sprintf("total:%.2fms", toMs(t.Elapsed())))
	return strings.Join(msg, ",")
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
