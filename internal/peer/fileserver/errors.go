package fileserver

import "errors"

var (
	// ErrAlreadyStarted 文件服务器已启动
	ErrAlreadyStarted = errors.New("fileserver: already started")

	// ErrInvalidPath 请求的名称不是共享目录内的普通文件名
	ErrInvalidPath = errors.New("fileserver: invalid path")

	// ErrNotRegularFile 请求的名称不是普通文件
	ErrNotRegularFile = errors.New("fileserver: not a regular file")
)
