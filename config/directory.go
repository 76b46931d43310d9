package config

import (
	"errors"
	"net"
)

// DefaultDirectoryPort 目录服务的知名控制端口
const DefaultDirectoryPort = 12345

// DirectoryConfig 目录服务配置
type DirectoryConfig struct {
	// ListenAddr 控制通道 UDP 监听地址
	ListenAddr string `json:"listen_addr"`
}

// DefaultDirectoryConfig 默认目录服务配置
func DefaultDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		ListenAddr: ":12345",
	}
}

// Validate 验证目录服务配置
func (c DirectoryConfig) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return err
	}
	return nil
}
