package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xuperchain/objcore/lib/logs"
	"github.com/xuperchain/objcore/lib/metrics"
)

const (
	SubModName  = "metrics"
	MetricsPath = "/metrics"

	shutdownTimeout = 5 * time.Second
)

// MetricServ 以http方式暴露prometheus指标
type MetricServ struct {
	addr     string
	log      logs.Logger
	servHD   *http.Server
	exitOnce *sync.Once
}

func NewMetricServ(addr string) (*MetricServ, error) {
	if addr == "" {
		return nil, fmt.Errorf("param error")
	}

	metrics.RegisterMetrics()
	log, _ := logs.NewLogger("", SubModName)
	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.Handler())
	return &MetricServ{
		addr:     addr,
		log:      log,
		servHD:   &http.Server{Addr: addr, Handler: mux},
		exitOnce: &sync.Once{},
	}, nil
}

// 阻塞直到退出
func (t *MetricServ) Run() error {
	lis, err := net.Listen("tcp", t.addr)
	if err != nil {
		t.log.Error("failed to listen", "err", err.Error(), "addr", t.addr)
		return fmt.Errorf("failed to listen")
	}
	return t.Serve(lis)
}

func (t *MetricServ) Serve(lis net.Listener) error {
	t.log.Trace("run metric server", "addr", lis.Addr().String())
	err := t.servHD.Serve(lis)
	if err != nil && err != http.ErrServerClosed {
		t.log.Error("metric server exit abnormally", "err", err.Error())
		return err
	}

	t.log.Trace("metric server exit")
	return nil
}

func (t *MetricServ) Exit() {
	t.exitOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		t.servHD.Shutdown(ctx)
	})
}
