// Package handler 解析控制数据报并执行对应的注册表操作
//
// Handler 不接触网络：输入是来源地址和原始负载，输出是是否需要回复以及回复内容。
// 无法识别或格式错误的数据报被丢弃，不产生任何回复。
package handler

import (
	"net/netip"

	"github.com/dep2p/go-peershare/internal/util/logger"
	"github.com/dep2p/go-peershare/pkg/protocol"
	"github.com/dep2p/go-peershare/pkg/types"
)

var log = logger.Logger("directory/handler")

// Store 控制处理所需的注册表操作
type Store interface {
	Register(identity string, addr netip.AddrPort, transferPort int)
	AddResource(name, owner string)
	MarkAlive(addr netip.AddrPort) bool
	ActivePeers() []string
	Resources() []types.ResourceEntry
	Owners(name string) []types.Owner
}

// Result 处理结果
type Result struct {
	// Kind 识别出的请求类型，无法识别时为 KindUnknown
	Kind protocol.Kind

	// Reply 是否需要向来源地址回复
	Reply bool

	// Payload 回复内容
	Payload string
}

// Handler 控制协议处理器
type Handler struct {
	store Store
}

// New 创建处理器
func New(store Store) *Handler {
	return &Handler{store: store}
}

// Handle 处理一个来自 src 的数据报
func (h *Handler) Handle(src netip.AddrPort, payload []byte) Result {
	req, err := protocol.ParseRequest(payload)
	if err != nil {
		log.Debug("dropping datagram", "from", src, "err", err)
		return Result{Kind: protocol.KindUnknown}
	}

	switch req.Kind {
	case protocol.KindRegister:
		h.store.Register(req.Identity, src, req.TransferPort)
		log.Info("peer registered",
			"identity", req.Identity,
			"addr", src,
			"transferPort", req.TransferPort)
		return reply(req.Kind, protocol.RegistrationSuccessful)

	case protocol.KindAnnounce:
		h.store.AddResource(req.Resource, req.Identity)
		log.Info("resource announced", "resource", req.Resource, "owner", req.Identity)
		return reply(req.Kind, protocol.ResourceAnnounced)

	case protocol.KindQueryResources:
		return reply(req.Kind, protocol.FormatResources(h.store.Resources()))

	case protocol.KindQueryUsers:
		return reply(req.Kind, protocol.FormatUsers(h.store.ActivePeers()))

	case protocol.KindResourceInfo:
		return reply(req.Kind, protocol.FormatOwners(req.Resource, h.store.Owners(req.Resource)))

	case protocol.KindLivenessReply:
		if !h.store.MarkAlive(src) {
			log.Debug("liveness reply from unknown address", "from", src)
		}
		return Result{Kind: req.Kind}

	default:
		// 目录服务只发出 hello，不应答收到的 hello
		log.Debug("ignoring datagram", "from", src, "kind", req.Kind)
		return Result{Kind: req.Kind}
	}
}

func reply(kind protocol.Kind, payload string) Result {
	return Result{Kind: kind, Reply: true, Payload: payload}
}
