package config

import (
	"errors"
	"net"
	"strings"
	"unicode"
)

// PeerConfig 节点配置
type PeerConfig struct {
	// Identity 节点名称（目录键）
	Identity string `json:"identity"`

	// DirectoryAddr 目录服务控制通道地址 host:port
	DirectoryAddr string `json:"directory_addr"`

	// ControlListenAddr 本地控制通道 UDP 绑定地址
	ControlListenAddr string `json:"control_listen_addr"`

	// ShareDir 共享目录
	ShareDir string `json:"share_dir"`

	// RequestTimeout 单个控制请求等待响应的上限，0 表示一直等待
	RequestTimeout Duration `json:"request_timeout"`
}

// DefaultPeerConfig 默认节点配置
func DefaultPeerConfig() PeerConfig {
	return PeerConfig{
		ControlListenAddr: ":0",
		ShareDir:          ".",
	}
}

// Validate 验证节点配置中已设置的字段
func (c PeerConfig) Validate() error {
	if strings.IndexFunc(c.Identity, unicode.IsSpace) >= 0 {
		return errors.New("identity must not contain whitespace")
	}
	if c.DirectoryAddr != "" {
		if _, _, err := net.SplitHostPort(c.DirectoryAddr); err != nil {
			return err
		}
	}
	if c.ControlListenAddr == "" {
		return errors.New("control listen address is required")
	}
	if c.RequestTimeout < 0 {
		return errors.New("request timeout must be non-negative")
	}
	return nil
}
