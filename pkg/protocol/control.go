package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// 控制通道命令与固定响应文本
const (
	CmdRegister = "register"
	CmdAnnounce = "announce"
	CmdQuery    = "query"
	CmdGet      = "get"

	QueryResources = "resources"
	QueryUsers     = "users"
	ResourceInfo   = "resource_info"

	// Hello 目录发往节点的存活探测
	Hello = "hello"
	// HelloResponse 节点对探测的应答
	HelloResponse = "hello response"

	RegistrationSuccessful = "Registration successful"
	ResourceAnnounced      = "Resource announced successfully"
	NoResources            = "No resources available."
	ResourcesHeader        = "Resources:\n"
	NoActiveUsers          = "No active users."
	ActiveUsersHeader      = "Active users:\n"
)

// MaxDatagramSize 读取控制报文的缓冲大小
const MaxDatagramSize = 64 * 1024

// MaxPayloadSize 单个 UDP 数据报可承载的最大负载（IPv4: 65535 - 20 - 8）
//
// 列表响应在行边界处截断到此大小，超出的条目不出现在响应中。
const MaxPayloadSize = 65507

// Kind 控制请求类型
type Kind int

const (
	KindUnknown Kind = iota
	KindRegister
	KindAnnounce
	KindQueryResources
	KindQueryUsers
	KindLivenessProbe
	KindLivenessReply
	KindResourceInfo
)

// String 返回请求类型名称，用作日志字段和指标标签
func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindAnnounce:
		return "announce"
	case KindQueryResources:
		return "query_resources"
	case KindQueryUsers:
		return "query_users"
	case KindLivenessProbe:
		return "hello"
	case KindLivenessReply:
		return "hello_response"
	case KindResourceInfo:
		return "resource_info"
	default:
		return "unknown"
	}
}

// Request 解码后的控制请求
//
// 各字段是否有效取决于 Kind：
//   - KindRegister: Identity, TransferPort
//   - KindAnnounce: Resource, Identity
//   - KindResourceInfo: Resource
type Request struct {
	Kind         Kind
	Identity     string
	Resource     string
	TransferPort int
}

// RegisterRequest 构造注册请求
func RegisterRequest(identity string, transferPort int) Request {
	return Request{Kind: KindRegister, Identity: identity, TransferPort: transferPort}
}

// AnnounceRequest 构造资源发布请求
func AnnounceRequest(resource, identity string) Request {
	return Request{Kind: KindAnnounce, Resource: resource, Identity: identity}
}

// ResourceInfoRequest 构造资源持有者查询请求
func ResourceInfoRequest(resource string) Request {
	return Request{Kind: KindResourceInfo, Resource: resource}
}

// Encode 编码为线上文本
func (r Request) Encode() string {
	switch r.Kind {
	case KindRegister:
		return fmt.Sprintf("%s %s %d", CmdRegister, r.Identity, r.TransferPort)
	case KindAnnounce:
		return fmt.Sprintf("%s %s %s", CmdAnnounce, r.Resource, r.Identity)
	case KindQueryResources:
		return CmdQuery + " " + QueryResources
	case KindQueryUsers:
		return CmdQuery + " " + QueryUsers
	case KindLivenessProbe:
		return Hello
	case KindLivenessReply:
		return HelloResponse
	case KindResourceInfo:
		return fmt.Sprintf("%s %s %s", CmdGet, ResourceInfo, r.Resource)
	default:
		return ""
	}
}

// ParseRequest 解码一个控制报文
//
// 多余的参数被忽略。无法识别的命令返回 ErrUnknownCommand，
// 参数缺失或端口无效返回 ErrMalformedRequest。
func ParseRequest(payload []byte) (Request, error) {
	s := strings.TrimSpace(string(payload))

	switch s {
	case HelloResponse:
		return Request{Kind: KindLivenessReply}, nil
	case Hello:
		return Request{Kind: KindLivenessProbe}, nil
	}

	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Request{}, ErrUnknownCommand
	}

	switch fields[0] {
	case CmdRegister:
		if len(fields) < 3 {
			return Request{}, fmt.Errorf("%w: register needs identity and port", ErrMalformedRequest)
		}
		port, err := strconv.Atoi(fields[2])
		if err != nil || port <= 0 || port > 65535 {
			return Request{}, fmt.Errorf("%w: invalid transfer port %q", ErrMalformedRequest, fields[2])
		}
		return RegisterRequest(fields[1], port), nil

	case CmdAnnounce:
		if len(fields) < 3 {
			return Request{}, fmt.Errorf("%w: announce needs resource and owner", ErrMalformedRequest)
		}
		return AnnounceRequest(fields[1], fields[2]), nil

	case CmdQuery:
		if len(fields) >= 2 {
			switch fields[1] {
			case QueryResources:
				return Request{Kind: KindQueryResources}, nil
			case QueryUsers:
				return Request{Kind: KindQueryUsers}, nil
			}
		}
		return Request{}, ErrUnknownCommand

	case CmdGet:
		if len(fields) < 2 || fields[1] != ResourceInfo {
			return Request{}, ErrUnknownCommand
		}
		if len(fields) < 3 {
			return Request{}, fmt.Errorf("%w: resource_info needs a resource name", ErrMalformedRequest)
		}
		return ResourceInfoRequest(fields[2]), nil
	}

	return Request{}, ErrUnknownCommand
}

// ValidateName 检查名称能否作为单个协议字段传递
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
	}
	return nil
}
