package peershare

import (
	"errors"

	"github.com/dep2p/go-peershare/internal/peer/control"
	"github.com/dep2p/go-peershare/internal/peer/downloader"
	"github.com/dep2p/go-peershare/pkg/protocol"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrClosed 节点已关闭
	ErrClosed = control.ErrClientClosed

	// ErrIdentityRequired 节点必须配置身份
	ErrIdentityRequired = errors.New("peershare: identity is required")

	// ErrDirectoryRequired 节点必须配置目录服务地址
	ErrDirectoryRequired = errors.New("peershare: directory address is required")

	// ────────────────────────────────────────────────────────────────────────
	// 控制通道错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrRegistrationRejected 目录服务拒绝注册，节点启动失败
	ErrRegistrationRejected = control.ErrRegistrationRejected

	// ErrResourceNotFound 目录中没有该资源的活跃持有者
	ErrResourceNotFound = protocol.ErrResourceNotFound

	// ────────────────────────────────────────────────────────────────────────
	// 传输错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNoOwners 下载时没有可选的持有者
	ErrNoOwners = downloader.ErrNoOwners

	// ErrInvalidSelection 选择的持有者序号无效
	ErrInvalidSelection = downloader.ErrInvalidSelection

	// ErrRemoteNotFound 持有者没有该文件
	ErrRemoteNotFound = downloader.ErrRemoteNotFound
)
