package liveness

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/directory/store"
)

// DemoteHook 接收每轮清理中被降级的节点身份
type DemoteHook func(identities []string)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config     *config.Config
	Store      *store.Store
	Prober     Prober
	Clock      clock.Clock `optional:"true"`
	DemoteHook DemoteHook  `optional:"true"`
}

// ProvideMonitor 提供存活监测器
func ProvideMonitor(in ModuleInput) *Monitor {
	return NewMonitor(in.Config.Liveness, in.Store, in.Prober,
		WithClock(in.Clock),
		WithDemoteHook(in.DemoteHook))
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("liveness",
		fx.Provide(ProvideMonitor),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, m *Monitor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return m.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return m.Stop()
		},
	})
}
