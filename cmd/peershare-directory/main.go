// Package main 提供 peershare 目录服务命令行入口
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-peershare"
	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/util/logger"
)

var log = logger.Logger("cmd/directory")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
// 优先级：命令行参数 > 环境变量 (PEERSHARE_*) > 配置文件 > 默认值
var (
	configFile    = flag.String("config", "", "配置文件路径 (JSON)")
	listenAddr    = flag.String("listen", "", "控制通道监听地址（默认 :12345）")
	probeInterval = flag.Duration("probe-interval", 0, "存活探测周期（默认 5s）")
	timeout       = flag.Duration("timeout", 0, "存活超时（默认 15s）")
	metricsAddr   = flag.String("metrics", "", "Prometheus 导出地址（为空不导出）")
	statsInterval = flag.Duration("stats-interval", time.Minute, "状态日志周期（0 = 关闭）")
	logLevel      = flag.String("log-level", "", "日志级别 (debug/info/warn/error)")
	showVersion   = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(peershare.VersionInfo())
		return nil
	}

	if *logLevel != "" {
		level, ok := logger.ParseLevel(*logLevel)
		if !ok {
			return fmt.Errorf("无效的日志级别: %s", *logLevel)
		}
		logger.SetGlobalLevel(level)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	opts := []peershare.Option{peershare.WithConfig(cfg)}
	if *listenAddr != "" {
		opts = append(opts, peershare.WithDirectoryListenAddr(*listenAddr))
	}
	if *probeInterval > 0 || *timeout > 0 {
		interval, to := cfg.Liveness.ProbeInterval.Duration(), cfg.Liveness.Timeout.Duration()
		if *probeInterval > 0 {
			interval = *probeInterval
		}
		if *timeout > 0 {
			to = *timeout
		}
		opts = append(opts, peershare.WithLiveness(interval, to))
	}
	if *metricsAddr != "" {
		opts = append(opts, peershare.WithMetrics(*metricsAddr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting directory", "version", peershare.Version)
	dir, err := peershare.StartDirectory(ctx, opts...)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = dir.Close() }()

	fmt.Printf("📦 %s\n", peershare.VersionInfo())
	fmt.Printf("目录服务监听 %s (UDP)\n", dir.Addr())
	if addr := dir.MetricsAddr(); addr != nil {
		fmt.Printf("指标导出 http://%s%s\n", addr, cfg.Metrics.Path)
	}
	fmt.Println("按 Ctrl+C 退出")

	g, gctx := errgroup.WithContext(ctx)
	if *statsInterval > 0 {
		g.Go(func() error {
			reportStats(gctx, dir, *statsInterval)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err = g.Wait()

	fmt.Println("\n正在关闭目录服务...")
	return err
}

// loadConfig 加载配置文件并应用环境变量
func loadConfig(path string) (*config.Config, error) {
	cfg := config.NewConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}
	config.ApplyEnv(cfg)
	return cfg, nil
}

// reportStats 周期性记录目录状态
func reportStats(ctx context.Context, dir *peershare.Directory, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			peers := dir.Peers()
			log.Info("directory status",
				"peers", len(peers),
				"active", len(dir.ActivePeers()),
				"resources", len(dir.Resources()))
		}
	}
}
