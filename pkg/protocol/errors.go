package protocol

import "errors"

// 预定义错误
var (
	// ErrUnknownCommand 无法识别的控制命令
	ErrUnknownCommand = errors.New("protocol: unknown command")

	// ErrMalformedRequest 命令可识别但参数缺失或无效
	ErrMalformedRequest = errors.New("protocol: malformed request")

	// ErrMalformedResponse 响应无法解码
	ErrMalformedResponse = errors.New("protocol: malformed response")

	// ErrResourceNotFound 目录中没有该资源的活跃持有者
	ErrResourceNotFound = errors.New("protocol: resource not found")

	// ErrInvalidName 名称为空或包含空白字符，无法在文本协议中传递
	ErrInvalidName = errors.New("protocol: invalid name")
)
