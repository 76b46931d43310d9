package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// 环境变量
const (
	// EnvPrefix 环境变量前缀
	EnvPrefix = "PEERSHARE_"

	EnvDirectoryListenAddr = "DIRECTORY_LISTEN_ADDR"
	EnvProbeInterval       = "PROBE_INTERVAL"
	EnvLivenessTimeout     = "LIVENESS_TIMEOUT"
	EnvIdentity            = "IDENTITY"
	EnvDirectoryAddr       = "DIRECTORY_ADDR"
	EnvShareDir            = "SHARE_DIR"
	EnvDownloadDir         = "DOWNLOAD_DIR"
	EnvTransferListenAddr  = "TRANSFER_LISTEN_ADDR"
	EnvMaxConcurrent       = "MAX_CONCURRENT"
	EnvMetricsAddr         = "METRICS_ADDR"
)

// ApplyEnv 应用环境变量覆盖
//
// 环境变量优先级高于配置文件，低于命令行参数。无法解析的值被忽略。
//   - PEERSHARE_DIRECTORY_LISTEN_ADDR
//   - PEERSHARE_PROBE_INTERVAL, PEERSHARE_LIVENESS_TIMEOUT（如 "5s"）
//   - PEERSHARE_IDENTITY, PEERSHARE_DIRECTORY_ADDR, PEERSHARE_SHARE_DIR
//   - PEERSHARE_DOWNLOAD_DIR, PEERSHARE_TRANSFER_LISTEN_ADDR, PEERSHARE_MAX_CONCURRENT
//   - PEERSHARE_METRICS_ADDR（设置即启用导出）
func ApplyEnv(cfg *Config) {
	if v := getenv(EnvDirectoryListenAddr); v != "" {
		cfg.Directory.ListenAddr = v
	}
	if d, ok := envDuration(EnvProbeInterval); ok {
		cfg.Liveness.ProbeInterval = Duration(d)
	}
	if d, ok := envDuration(EnvLivenessTimeout); ok {
		cfg.Liveness.Timeout = Duration(d)
	}
	if v := getenv(EnvIdentity); v != "" {
		cfg.Peer.Identity = v
	}
	if v := getenv(EnvDirectoryAddr); v != "" {
		cfg.Peer.DirectoryAddr = v
	}
	if v := getenv(EnvShareDir); v != "" {
		cfg.Peer.ShareDir = v
	}
	if v := getenv(EnvDownloadDir); v != "" {
		cfg.Transfer.DownloadDir = v
	}
	if v := getenv(EnvTransferListenAddr); v != "" {
		cfg.Transfer.ListenAddr = v
	}
	if v := getenv(EnvMaxConcurrent); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Transfer.MaxConcurrent = n
		}
	}
	if v := getenv(EnvMetricsAddr); v != "" {
		cfg.Metrics.Enable = true
		cfg.Metrics.ListenAddr = v
	}
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

func envDuration(name string) (time.Duration, bool) {
	v := getenv(name)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
