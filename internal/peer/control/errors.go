package control

import "errors"

var (
	// ErrClientClosed 客户端已关闭
	ErrClientClosed = errors.New("control: client closed")

	// ErrNotStarted 客户端未启动
	ErrNotStarted = errors.New("control: client not started")

	// ErrAlreadyStarted 客户端已启动
	ErrAlreadyStarted = errors.New("control: client already started")

	// ErrRegistrationRejected 目录服务未返回注册成功
	ErrRegistrationRejected = errors.New("control: registration rejected")

	// ErrNotRegistered 发布资源前必须先注册
	ErrNotRegistered = errors.New("control: not registered")

	// ErrUnexpectedResponse 响应内容与请求不符
	ErrUnexpectedResponse = errors.New("control: unexpected response")
)
