package server

import "errors"

var (
	// ErrAlreadyStarted 服务已启动
	ErrAlreadyStarted = errors.New("directory: server already started")

	// ErrNotStarted 服务未启动
	ErrNotStarted = errors.New("directory: server not started")
)
