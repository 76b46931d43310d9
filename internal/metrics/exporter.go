package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/util/logger"
)

var log = logger.Logger("metrics")

// ErrExporterRunning 导出器已启动
var ErrExporterRunning = errors.New("metrics: exporter already running")

// Exporter Prometheus HTTP 导出器
type Exporter struct {
	cfg      config.MetricsConfig
	gatherer prometheus.Gatherer

	mu     sync.Mutex
	ln     net.Listener
	server *http.Server
	done   chan struct{}
}

// NewExporter 创建导出器
func NewExporter(cfg config.MetricsConfig, gatherer prometheus.Gatherer) *Exporter {
	return &Exporter{cfg: cfg, gatherer: gatherer}
}

// Start 绑定地址并开始提供 /metrics
func (e *Exporter) Start(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.server != nil {
		return ErrExporterRunning
	}

	ln, err := net.Listen("tcp", e.cfg.ListenAddr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(e.cfg.Path, promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{}))

	e.ln = ln
	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	e.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics exporter stopped", "err", err)
		}
	}(e.server, e.done)

	log.Info("metrics exporter listening", "addr", ln.Addr(), "path", e.cfg.Path)
	return nil
}

// Addr 返回实际监听地址，未启动时为 nil
func (e *Exporter) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln == nil {
		return nil
	}
	return e.ln.Addr()
}

// Stop 关闭 HTTP 服务
func (e *Exporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	srv, done := e.server, e.done
	e.server, e.ln, e.done = nil, nil, nil
	e.mu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	<-done
	return err
}
