package server

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/directory/handler"
	"github.com/dep2p/go-peershare/internal/directory/liveness"
	"github.com/dep2p/go-peershare/internal/directory/store"
)

// StoreParams 注册表依赖
type StoreParams struct {
	fx.In

	Clock clock.Clock `optional:"true"`
}

// ProvideStore 提供目录注册表
func ProvideStore(p StoreParams) *store.Store {
	return store.New(p.Clock)
}

// ProvideHandler 提供控制协议处理器
func ProvideHandler(st *store.Store) *handler.Handler {
	return handler.New(st)
}

// ServerParams 服务依赖
type ServerParams struct {
	fx.In

	Config     *config.Config
	Handler    *handler.Handler
	Store      *store.Store
	Registerer prometheus.Registerer `optional:"true"`
}

// ProvideServer 提供控制通道服务
func ProvideServer(p ServerParams) *Server {
	var m *Metrics
	if p.Registerer != nil {
		m = NewMetrics(p.Registerer, p.Store)
	}
	return New(p.Config.Directory, p.Handler, m)
}

// ProvideProber 使用控制通道套接字发送存活探测
func ProvideProber(s *Server) liveness.Prober {
	return s
}

// ProvideDemoteHook 把存活监测的降级计入指标
func ProvideDemoteHook(s *Server) liveness.DemoteHook {
	return s.metrics.demoted
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("directory",
		fx.Provide(
			ProvideStore,
			ProvideHandler,
			ProvideServer,
			ProvideProber,
			ProvideDemoteHook,
		),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop: func(_ context.Context) error {
			return s.Stop()
		},
	})
}
