package downloader

import "errors"

var (
	// ErrNoOwners 目录中没有该资源的活跃持有者
	ErrNoOwners = errors.New("downloader: no active owners")

	// ErrInvalidSelection 选择的持有者序号超出范围
	ErrInvalidSelection = errors.New("downloader: invalid owner selection")

	// ErrRemoteNotFound 持有者的共享目录中没有该文件
	ErrRemoteNotFound = errors.New("downloader: file not found on owner")

	// ErrInvalidName 资源名或持有者名不能用作本地文件名
	ErrInvalidName = errors.New("downloader: invalid name")
)
