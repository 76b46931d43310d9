package protocol

import (
	"fmt"
	"strings"
)

// FileNotFound 文件服务器找不到请求资源时发送的完整响应
const FileNotFound = "Error: File not found.\n"

// MaxTransferRequestSize 传输请求行的最大长度
const MaxTransferRequestSize = 4096

// TransferRequest 编码传输请求行
func TransferRequest(resource string) string {
	return CmdGet + " " + resource + "\n"
}

// ParseTransferRequest 解码传输请求行，返回资源名
//
// 只识别 "get <name>"，名称取第一个字段。
func ParseTransferRequest(line string) (string, error) {
	rest, ok := strings.CutPrefix(strings.TrimLeft(line, " \t"), CmdGet+" ")
	if !ok {
		return "", fmt.Errorf("%w: transfer request %q", ErrUnknownCommand, line)
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: transfer request without resource", ErrMalformedRequest)
	}
	return fields[0], nil
}
