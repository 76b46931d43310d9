// Package main 提供 peershare 节点命令行入口
//
// 用法:
//
//	peershare-peer [flags] <directory_host[:port]> <username>
//
// 启动后发布共享目录中的全部文件，然后进入交互式菜单。
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/dep2p/go-peershare"
	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/util/logger"
)

var log = logger.Logger("cmd/peer")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
var (
	// ─────────────────────────────────────────────────────────────────────────
	// 身份与目录
	// ─────────────────────────────────────────────────────────────────────────
	configFile    = flag.String("config", "", "配置文件路径 (JSON)")
	identity      = flag.String("identity", "", "节点名称（也可作为第二个位置参数）")
	directoryAddr = flag.String("directory", "", "目录服务地址 host[:port]（也可作为第一个位置参数）")

	// ─────────────────────────────────────────────────────────────────────────
	// 文件
	// ─────────────────────────────────────────────────────────────────────────
	shareDir       = flag.String("share", "", "共享目录（未配置时交互式询问）")
	downloadDir    = flag.String("download", "", "下载目录（默认当前目录）")
	transferListen = flag.String("transfer-listen", "", "文件服务器监听地址（默认 :0）")

	// ─────────────────────────────────────────────────────────────────────────
	// 运维
	// ─────────────────────────────────────────────────────────────────────────
	metricsAddr = flag.String("metrics", "", "Prometheus 导出地址（为空不导出）")
	logLevel    = flag.String("log-level", "", "日志级别 (debug/info/warn/error)")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <directory_host> <username>\n", os.Args[0])
		flag.PrintDefaults()
	}
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
	if err := applyArgs(cfg, flag.Args()); err != nil {
		flag.Usage()
		return err
	}

	stdin := bufio.NewReader(os.Stdin)
	if *shareDir != "" {
		cfg.Peer.ShareDir = *shareDir
	} else if *configFile == "" && os.Getenv(config.EnvPrefix+config.EnvShareDir) == "" {
		dir, err := promptLine(stdin, os.Stdout, "Enter the path to the sharing folder: ")
		if err != nil {
			return fmt.Errorf("读取共享目录: %w", err)
		}
		if dir != "" {
			cfg.Peer.ShareDir = dir
		}
	}

	opts := []peershare.Option{peershare.WithConfig(cfg)}
	if *downloadDir != "" {
		opts = append(opts, peershare.WithDownloadDir(*downloadDir))
	}
	if *transferListen != "" {
		opts = append(opts, peershare.WithTransferListenAddr(*transferListen))
	}
	if *metricsAddr != "" {
		opts = append(opts, peershare.WithMetrics(*metricsAddr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := peershare.StartPeer(ctx, opts...)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = p.Close() }()

	fmt.Printf("Registered with server as %s.\n", p.Identity())
	fmt.Printf("File server listening on TCP port %d\n", p.TransferPort())
	if addr := p.MetricsAddr(); addr != nil {
		log.Info("metrics exporter started", "addr", addr)
	}

	names, err := p.AnnounceShared(ctx)
	for _, name := range names {
		fmt.Printf("Announced resource: %s\n", name)
	}
	if err != nil {
		// 部分文件发布失败不影响进入菜单
		fmt.Fprintf(os.Stderr, "发布共享文件: %v\n", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		newMenu(p, stdin, os.Stdout).run(ctx)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		fmt.Println()
	}
	fmt.Println("Exiting...")
	return nil
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

// applyArgs 应用目录地址与身份，命令行参数优先于位置参数
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("多余的参数: %v", args[2:])
	}
	if len(args) > 0 {
		cfg.Peer.DirectoryAddr = args[0]
	}
	if len(args) > 1 {
		cfg.Peer.Identity = args[1]
	}
	if *directoryAddr != "" {
		cfg.Peer.DirectoryAddr = *directoryAddr
	}
	if *identity != "" {
		cfg.Peer.Identity = *identity
	}

	if cfg.Peer.DirectoryAddr == "" || cfg.Peer.Identity == "" {
		return errors.New("需要目录地址和节点名称")
	}
	cfg.Peer.DirectoryAddr = withDefaultPort(cfg.Peer.DirectoryAddr)
	return nil
}

// withDefaultPort 为不带端口的主机名补上目录服务知名端口
func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	host := strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(config.DefaultDirectoryPort))
}

// promptLine 输出提示并读取一行
func promptLine(r *bufio.Reader, w io.Writer, text string) (string, error) {
	fmt.Fprint(w, text)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
