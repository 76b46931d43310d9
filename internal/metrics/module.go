package metrics

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"github.com/dep2p/go-peershare/config"
)

// Params 注册表模块输入依赖
type Params struct {
	fx.In

	Config *config.Config
}

// Output 注册表模块输出
type Output struct {
	fx.Out

	Registry   *prometheus.Registry
	Registerer prometheus.Registerer
	Exporter   *Exporter
}

// Provide 创建实例独立的注册表和导出器
func Provide(p Params) (Output, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return Output{}, err
	}

	return Output{
		Registry:   reg,
		Registerer: reg,
		Exporter:   NewExporter(p.Config.Metrics, reg),
	}, nil
}

// CounterParams 传输计数器输入依赖
type CounterParams struct {
	fx.In

	Registerer prometheus.Registerer
	Clock      clock.Clock `optional:"true"`
}

// ProvideCounter 创建传输计数器并注册到实例注册表
func ProvideCounter(p CounterParams) (*TransferCounter, error) {
	counter := NewTransferCounter(p.Clock)
	if err := p.Registerer.Register(counter); err != nil {
		return nil, err
	}
	return counter, nil
}

// Module 返回注册表与导出器的 fx 模块配置
//
// 导出器只在 Metrics.Enable 时随应用启动。
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// TransferModule 返回传输计数器的 fx 模块配置，依赖 Module 提供的注册表
//
// 空闲资源统计的清理任务在 TrimInterval > 0 时启动。
func TransferModule() fx.Option {
	return fx.Module("metrics/transfer",
		fx.Provide(ProvideCounter),
		fx.Invoke(registerTrim),
	)
}

func registerTrim(lc fx.Lifecycle, cfg *config.Config, c *TransferCounter) {
	interval := cfg.Metrics.TrimInterval.Duration()
	if interval <= 0 {
		return
	}

	var stop func()
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			stop = c.StartTrim(interval, cfg.Metrics.IdleTimeout.Duration())
			return nil
		},
		OnStop: func(context.Context) error {
			stop()
			return nil
		},
	})
}

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, e *Exporter) {
	if !cfg.Metrics.Enable {
		return
	}
	lc.Append(fx.Hook{
		OnStart: e.Start,
		OnStop:  e.Stop,
	})
}
